package broker

import (
	"math"
	"sort"
	"time"
)

// PositionBook holds per-symbol positions and applies fills to them.
// It is owned by a single Ledger and is not safe for concurrent use.
type PositionBook struct {
	positions map[string]*Position
}

// NewPositionBook creates an empty book.
func NewPositionBook() *PositionBook {
	return &PositionBook{positions: make(map[string]*Position)}
}

// Get returns a copy of the position for symbol.
// If no position exists, returns an empty Position with zero amount.
func (pb *PositionBook) Get(symbol string) Position {
	if pos, exists := pb.positions[symbol]; exists {
		return *pos
	}
	return Position{Symbol: symbol}
}

// All returns open positions ordered by symbol.
func (pb *PositionBook) All() []Position {
	out := make([]Position, 0, len(pb.positions))
	for _, pos := range pb.positions {
		if pos.Amount > 0 {
			out = append(out, *pos)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Mark updates the current price and unrealized P&L. Cash is untouched.
func (pb *PositionBook) Mark(symbol string, price float64, ts time.Time) {
	pos, exists := pb.positions[symbol]
	if !exists {
		return
	}
	pos.CurrentPrice = price
	if pos.Amount > 0 {
		pos.UnrealizedPL = (price - pos.EntryPrice) * pos.Amount
	} else {
		pos.UnrealizedPL = 0
	}
	pos.UpdatedAt = ts
}

// ApplyBuy adds amount at price and recomputes the weighted average entry:
// new entry = (old_entry * old_amt + price * amt) / (old_amt + amt)
func (pb *PositionBook) ApplyBuy(symbol string, amount, price float64, ts time.Time) {
	pos := pb.ensure(symbol)
	total := pos.Amount*pos.EntryPrice + amount*price
	pos.Amount += amount
	if pos.Amount > 0 {
		pos.EntryPrice = total / pos.Amount
	}
	pb.Mark(symbol, price, ts)
}

// ApplySell removes amount at price. The entry price is unchanged unless the
// residual falls to dust, in which case the position snaps to zero/zero.
func (pb *PositionBook) ApplySell(symbol string, amount, price float64, ts time.Time) {
	pos := pb.ensure(symbol)
	pos.RealizedPL += (price - pos.EntryPrice) * amount
	pos.Amount -= amount
	if pos.Amount <= Epsilon || math.IsNaN(pos.Amount) {
		pos.Amount = 0
		pos.EntryPrice = 0
	}
	pb.Mark(symbol, price, ts)
}

// MarketValue sums the marked value of all positions.
func (pb *PositionBook) MarketValue() float64 {
	var total float64
	for _, pos := range pb.positions {
		total += pos.Amount * pos.CurrentPrice
	}
	return total
}

// TotalRealizedPL returns the sum of realized P&L across all positions.
func (pb *PositionBook) TotalRealizedPL() float64 {
	var total float64
	for _, pos := range pb.positions {
		total += pos.RealizedPL
	}
	return total
}

func (pb *PositionBook) ensure(symbol string) *Position {
	pos, exists := pb.positions[symbol]
	if !exists {
		pos = &Position{Symbol: symbol}
		pb.positions[symbol] = pos
	}
	return pos
}
