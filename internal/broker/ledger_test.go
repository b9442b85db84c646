package broker_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/quantbench/internal/broker"
)

const sym = "BTC/USDT"

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func buy(amount float64) broker.OrderRequest {
	return broker.OrderRequest{Symbol: sym, Side: broker.OrderSideBuy, Type: broker.OrderTypeMarket, Amount: amount}
}

func sell(amount float64) broker.OrderRequest {
	return broker.OrderRequest{Symbol: sym, Side: broker.OrderSideSell, Type: broker.OrderTypeMarket, Amount: amount}
}

func TestLedger_SubmitHasNoEffect(t *testing.T) {
	l := broker.NewLedger(10000, 0.001)

	o, err := l.Submit(buy(1000), t0)
	require.NoError(t, err)

	assert.Equal(t, broker.OrderStatusPending, o.Status)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 10000.0, l.Cash())
	assert.Zero(t, l.Position(sym).Amount)
	assert.Len(t, l.OpenOrders(), 1)
}

func TestLedger_BuyDebitsCostPlusFee(t *testing.T) {
	l := broker.NewLedger(10000, 0.001)

	o, err := l.Execute(buy(98), 100, t0)
	require.NoError(t, err)
	require.Equal(t, broker.OrderStatusFilled, o.Status)

	// cash' = cash - amt*p*(1+f)
	assert.InDelta(t, 10000-98*100*1.001, l.Cash(), 1e-9)
	assert.InDelta(t, 9.8, o.Fee, 1e-9)

	pos := l.Position(sym)
	assert.Equal(t, 98.0, pos.Amount)
	assert.Equal(t, 100.0, pos.EntryPrice)

	trades := l.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, o.ID, trades[0].OrderID)
	assert.InDelta(t, 9800, trades[0].Cost, 1e-9)
	assert.Equal(t, t0, trades[0].Timestamp)
}

func TestLedger_BuyRejectedOnInsufficientCash(t *testing.T) {
	l := broker.NewLedger(100, 0.001)

	// cost 100 + fee 0.1 > 100
	o, err := l.Execute(buy(1), 100, t0)
	require.NoError(t, err)

	assert.Equal(t, broker.OrderStatusRejected, o.Status)
	assert.NotEmpty(t, o.RejectionReason)
	assert.Equal(t, 100.0, l.Cash())
	assert.Zero(t, l.Position(sym).Amount)
	assert.Empty(t, l.Trades())
}

func TestLedger_WeightedAverageEntry(t *testing.T) {
	l := broker.NewLedger(1_000_000, 0)

	_, err := l.Execute(buy(1), 100, t0)
	require.NoError(t, err)
	_, err = l.Execute(buy(1), 200, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.InDelta(t, 150, l.Position(sym).EntryPrice, 1e-9)
}

func TestLedger_OversellRejected(t *testing.T) {
	l := broker.NewLedger(10000, 0.001)
	_, err := l.Execute(buy(10), 100, t0)
	require.NoError(t, err)
	cash := l.Cash()

	o, err := l.Execute(sell(11), 100, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, broker.OrderStatusRejected, o.Status)
	assert.Equal(t, cash, l.Cash())
	assert.Equal(t, 10.0, l.Position(sym).Amount)
	assert.Len(t, l.Trades(), 1)
}

func TestLedger_SellCreditsCostMinusFee(t *testing.T) {
	l := broker.NewLedger(10000, 0.001)
	_, err := l.Execute(buy(10), 100, t0)
	require.NoError(t, err)
	cash := l.Cash()

	o, err := l.Execute(sell(10), 120, t0.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, o.IsFilled())

	assert.InDelta(t, cash+1200-1.2, l.Cash(), 1e-9)
	pos := l.Position(sym)
	assert.Zero(t, pos.Amount)
	assert.Zero(t, pos.EntryPrice)
	assert.Zero(t, l.Equity()-l.Cash())
	assert.InDelta(t, 200, l.RealizedPL(), 1e-9)
}

func TestLedger_AmountNeverNegative(t *testing.T) {
	l := broker.NewLedger(10000, 0.001)
	prices := []float64{100, 101, 99, 105, 98}
	for i, p := range prices {
		ts := t0.Add(time.Duration(i) * time.Hour)
		_, err := l.Execute(buy(10), p, ts)
		require.NoError(t, err)
		_, err = l.Execute(sell(15), p, ts)
		require.NoError(t, err)
		_, err = l.Execute(sell(l.Position(sym).Amount+1e-12), p, ts)
		require.NoError(t, err)

		pos := l.Position(sym)
		assert.GreaterOrEqual(t, pos.Amount, 0.0)
		if pos.Amount == 0 {
			assert.Zero(t, pos.EntryPrice)
		}
	}
}

func TestLedger_FillTwiceErrors(t *testing.T) {
	l := broker.NewLedger(10000, 0)
	o, err := l.Submit(buy(1), t0)
	require.NoError(t, err)

	_, err = l.Fill(o.ID, 100, t0)
	require.NoError(t, err)

	_, err = l.Fill(o.ID, 100, t0)
	assert.ErrorIs(t, err, broker.ErrOrderNotPending)
	assert.Len(t, l.Trades(), 1)
}

func TestLedger_FillUnknownOrder(t *testing.T) {
	l := broker.NewLedger(10000, 0)
	_, err := l.Fill("missing", 100, t0)
	assert.ErrorIs(t, err, broker.ErrOrderNotFound)
}

func TestLedger_FillInvalidPrice(t *testing.T) {
	l := broker.NewLedger(10000, 0)
	o, err := l.Submit(buy(1), t0)
	require.NoError(t, err)

	_, err = l.Fill(o.ID, 0, t0)
	assert.ErrorIs(t, err, broker.ErrInvalidPrice)
	assert.Equal(t, 10000.0, l.Cash())
}

func TestLedger_IDsAreReproducible(t *testing.T) {
	replay := func(opts ...broker.Option) []broker.Trade {
		l := broker.NewLedger(10000, 0.001, opts...)
		_, err := l.Execute(buy(10), 100, t0)
		require.NoError(t, err)
		_, err = l.Execute(buy(1000), 100, t0)
		require.NoError(t, err)
		_, err = l.Execute(sell(10), 110, t0.Add(time.Hour))
		require.NoError(t, err)
		return l.Trades()
	}

	a, b := replay(), replay()
	require.Len(t, a, 2)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a[0].ID, a[1].ID)
	assert.NotEqual(t, a[0].OrderID, a[1].OrderID)

	other := replay(broker.WithIDNamespace(uuid.NewSHA1(uuid.NameSpaceOID, []byte("other"))))
	assert.NotEqual(t, a[0].ID, other[0].ID)
}

func TestLedger_OnBarMatchesPending(t *testing.T) {
	l := broker.NewLedger(10000, 0)

	mkt, err := l.Submit(buy(1), t0)
	require.NoError(t, err)
	lim, err := l.Submit(broker.OrderRequest{
		Symbol: sym, Side: broker.OrderSideBuy, Type: broker.OrderTypeLimit, Amount: 1, Price: 90,
	}, t0)
	require.NoError(t, err)

	done, err := l.OnBar(sym, 100, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, mkt.ID, done[0].ID)
	assert.Equal(t, 100.0, done[0].FillPrice)

	done, err = l.OnBar(sym, 89, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, lim.ID, done[0].ID)
	assert.Equal(t, 90.0, done[0].FillPrice)

	pos := l.Position(sym)
	assert.Equal(t, 2.0, pos.Amount)
	assert.InDelta(t, 95, pos.EntryPrice, 1e-9)
	assert.Equal(t, 89.0, pos.CurrentPrice)
}

func TestLedger_OnBarSellLimit(t *testing.T) {
	l := broker.NewLedger(10000, 0)
	_, err := l.Execute(buy(1), 100, t0)
	require.NoError(t, err)

	_, err = l.Submit(broker.OrderRequest{
		Symbol: sym, Side: broker.OrderSideSell, Type: broker.OrderTypeLimit, Amount: 1, Price: 110,
	}, t0)
	require.NoError(t, err)

	done, err := l.OnBar(sym, 105, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, done)

	done, err = l.OnBar(sym, 111, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, 110.0, done[0].FillPrice)
	assert.InDelta(t, 10010, l.Cash(), 1e-9)
}

func TestLedger_EquityAndHook(t *testing.T) {
	var seen []broker.OrderStatus
	l := broker.NewLedger(1000, 0, broker.WithFillHook(func(_ broker.OrderSide, s broker.OrderStatus) {
		seen = append(seen, s)
	}))

	_, err := l.Execute(buy(5), 100, t0)
	require.NoError(t, err)
	_, err = l.Execute(buy(50), 100, t0)
	require.NoError(t, err)

	l.MarkToMarket(sym, 120, t0.Add(time.Hour))
	assert.InDelta(t, 500+5*120, l.Equity(), 1e-9)
	assert.Equal(t, []broker.OrderStatus{broker.OrderStatusFilled, broker.OrderStatusRejected}, seen)
}
