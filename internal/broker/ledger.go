package broker

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FillHook observes every fill attempt with its final status.
type FillHook func(side OrderSide, status OrderStatus)

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the ledger logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithIDNamespace sets the namespace order and trade ids are derived from.
func WithIDNamespace(ns uuid.UUID) Option {
	return func(l *Ledger) {
		l.ns = ns
	}
}

// WithFillHook registers a hook called after each fill attempt.
func WithFillHook(hook FillHook) Option {
	return func(l *Ledger) {
		l.hook = hook
	}
}

// DefaultIDNamespace seeds the name-based ids of a ledger.
var DefaultIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("quantbench/broker"))

// Ledger owns the quote-currency cash balance, the positions and the order
// and trade logs of one simulation. Fills are all-or-nothing at the given
// price with a single fee rate. Order and trade ids are version 5 UUIDs over
// a per-ledger sequence, so replaying the same orders yields the same ids.
// A Ledger is not safe for concurrent use.
type Ledger struct {
	cash    float64
	feeRate float64
	book    *PositionBook
	orders  map[string]*Order
	pending []string
	trades  []Trade
	ns      uuid.UUID
	seq     int
	logger  *zap.Logger
	hook    FillHook
}

// NewLedger creates a ledger funded with initialCash.
func NewLedger(initialCash, feeRate float64, opts ...Option) *Ledger {
	l := &Ledger{
		cash:    initialCash,
		feeRate: feeRate,
		book:    NewPositionBook(),
		orders:  make(map[string]*Order),
		ns:      DefaultIDNamespace,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cash returns the available cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// FeeRate returns the commission rate applied to every fill.
func (l *Ledger) FeeRate() float64 {
	return l.feeRate
}

// Position returns a copy of the position for symbol.
func (l *Ledger) Position(symbol string) Position {
	return l.book.Get(symbol)
}

// Equity is cash plus the marked value of all positions.
func (l *Ledger) Equity() float64 {
	return l.cash + l.book.MarketValue()
}

// RealizedPL is the realized profit across all symbols, before fees.
func (l *Ledger) RealizedPL() float64 {
	return l.book.TotalRealizedPL()
}

// Trades returns a copy of the trade log in fill order.
func (l *Ledger) Trades() []Trade {
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// OpenOrders returns pending orders in submission order.
func (l *Ledger) OpenOrders() []Order {
	out := make([]Order, 0, len(l.pending))
	for _, id := range l.pending {
		out = append(out, *l.orders[id])
	}
	return out
}

// Submit registers a pending order. It performs no funds check and has no
// effect on cash or positions.
func (l *Ledger) Submit(req OrderRequest, ts time.Time) (Order, error) {
	if err := req.Validate(); err != nil {
		return Order{}, err
	}
	o := &Order{
		ID:        l.nextID("order"),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Amount:    req.Amount,
		Price:     req.Price,
		Status:    OrderStatusPending,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	l.orders[o.ID] = o
	l.pending = append(l.pending, o.ID)
	return *o, nil
}

// MarkToMarket updates the mark price and unrealized P&L of symbol.
func (l *Ledger) MarkToMarket(symbol string, price float64, ts time.Time) {
	l.book.Mark(symbol, price, ts)
}

// Fill executes a pending order at price. Insufficient cash or assets is
// not an error: the order is returned with status REJECTED and the ledger
// is left unchanged. Callers must inspect the returned status.
func (l *Ledger) Fill(id string, price float64, ts time.Time) (Order, error) {
	o, ok := l.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if !o.IsOpen() {
		return *o, fmt.Errorf("%w: %s is %s", ErrOrderNotPending, id, o.Status)
	}
	if !finitePositive(price) {
		return *o, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}

	cost := o.Amount * price
	fee := cost * l.feeRate
	o.UpdatedAt = ts
	l.dropPending(id)

	switch o.Side {
	case OrderSideBuy:
		if l.cash < cost+fee {
			l.reject(o, fmt.Sprintf("insufficient funds: need %.8f, have %.8f", cost+fee, l.cash))
			return *o, nil
		}
		l.cash -= cost + fee
		l.book.ApplyBuy(o.Symbol, o.Amount, price, ts)
	case OrderSideSell:
		held := l.book.Get(o.Symbol).Amount
		if held < o.Amount {
			l.reject(o, fmt.Sprintf("insufficient position: need %.8f, have %.8f", o.Amount, held))
			return *o, nil
		}
		l.cash += cost - fee
		l.book.ApplySell(o.Symbol, o.Amount, price, ts)
	}

	o.Status = OrderStatusFilled
	o.FillPrice = price
	o.Fee = fee
	l.trades = append(l.trades, Trade{
		ID:        l.nextID("trade"),
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Amount:    o.Amount,
		Price:     price,
		Cost:      cost,
		Fee:       fee,
		Timestamp: ts,
	})
	l.logger.Debug("order filled",
		zap.String("order_id", o.ID),
		zap.String("side", string(o.Side)),
		zap.Float64("amount", o.Amount),
		zap.Float64("price", price),
		zap.Float64("fee", fee),
		zap.Float64("cash", l.cash),
	)
	l.observe(o)
	return *o, nil
}

// Execute submits a market order and fills it immediately at price.
func (l *Ledger) Execute(req OrderRequest, price float64, ts time.Time) (Order, error) {
	req.Type = OrderTypeMarket
	o, err := l.Submit(req, ts)
	if err != nil {
		return o, err
	}
	return l.Fill(o.ID, price, ts)
}

// OnBar marks symbol at price and matches its pending orders: market orders
// fill at price, a buy limit fills at its limit when price <= limit and a
// sell limit fills at its limit when price >= limit. Returns the orders that
// reached a terminal state.
func (l *Ledger) OnBar(symbol string, price float64, ts time.Time) ([]Order, error) {
	l.MarkToMarket(symbol, price, ts)

	var done []Order
	for _, id := range append([]string(nil), l.pending...) {
		o := l.orders[id]
		if o.Symbol != symbol {
			continue
		}
		fillAt, ok := matchPrice(o, price)
		if !ok {
			continue
		}
		filled, err := l.Fill(id, fillAt, ts)
		if err != nil {
			return done, err
		}
		done = append(done, filled)
	}
	return done, nil
}

func matchPrice(o *Order, price float64) (float64, bool) {
	switch o.Type {
	case OrderTypeMarket:
		return price, true
	case OrderTypeLimit:
		if o.Side == OrderSideBuy && price <= o.Price {
			return o.Price, true
		}
		if o.Side == OrderSideSell && price >= o.Price {
			return o.Price, true
		}
	}
	return 0, false
}

func (l *Ledger) nextID(kind string) string {
	l.seq++
	return uuid.NewSHA1(l.ns, []byte(fmt.Sprintf("%s-%d", kind, l.seq))).String()
}

func (l *Ledger) reject(o *Order, reason string) {
	o.Status = OrderStatusRejected
	o.RejectionReason = reason
	l.logger.Warn("order rejected",
		zap.String("order_id", o.ID),
		zap.String("side", string(o.Side)),
		zap.String("reason", reason),
	)
	l.observe(o)
}

func (l *Ledger) observe(o *Order) {
	if l.hook != nil {
		l.hook(o.Side, o.Status)
	}
}

func (l *Ledger) dropPending(id string) {
	for i, pid := range l.pending {
		if pid == id {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return
		}
	}
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
