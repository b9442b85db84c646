// Package broker provides the simulated account ledger and fill engine used
// by the backtest engine.
package broker

import (
	"errors"
	"time"
)

// Broker-specific errors.
var (
	// ErrOrderNotFound indicates the order was not found.
	ErrOrderNotFound = errors.New("broker: order not found")
	// ErrInvalidSymbol indicates an invalid or empty symbol.
	ErrInvalidSymbol = errors.New("broker: invalid symbol")
	// ErrInvalidAmount indicates a non-positive or non-finite amount.
	ErrInvalidAmount = errors.New("broker: invalid amount")
	// ErrInvalidPrice indicates an invalid fill or limit price.
	ErrInvalidPrice = errors.New("broker: invalid price")
	// ErrInvalidOrderType indicates an unsupported order type.
	ErrInvalidOrderType = errors.New("broker: invalid order type")
	// ErrOrderNotPending indicates the order already reached a terminal state.
	ErrOrderNotPending = errors.New("broker: order is not pending")
)

// Epsilon is the residual position size treated as flat.
const Epsilon = 1e-8

// OrderSide represents the direction of an order.
type OrderSide string

const (
	// OrderSideBuy represents a buy order.
	OrderSideBuy OrderSide = "BUY"
	// OrderSideSell represents a sell order.
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the type of order execution.
type OrderType string

const (
	// OrderTypeMarket executes at current market price.
	OrderTypeMarket OrderType = "MARKET"
	// OrderTypeLimit executes at specified price or better.
	OrderTypeLimit OrderType = "LIMIT"
)

// OrderStatus represents the lifecycle status of an order.
type OrderStatus string

const (
	// OrderStatusPending indicates order is awaiting a fill.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusFilled indicates order has been completely filled.
	OrderStatusFilled OrderStatus = "FILLED"
	// OrderStatusCancelled indicates order was cancelled.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusRejected indicates the ledger could not cover the order.
	OrderStatusRejected OrderStatus = "REJECTED"
)

// OrderRequest represents a request to place a new order.
type OrderRequest struct {
	Symbol string    `json:"symbol"`
	Side   OrderSide `json:"side"`
	Type   OrderType `json:"type"`
	// Amount is the quantity of the base asset.
	Amount float64 `json:"amount"`
	// Price is the limit price (required for LIMIT orders).
	Price float64 `json:"price,omitempty"`
}

// Validate checks if the order request has valid required fields.
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return ErrInvalidSymbol
	}
	if !finitePositive(r.Amount) {
		return ErrInvalidAmount
	}
	switch r.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if !finitePositive(r.Price) {
			return ErrInvalidPrice
		}
	default:
		return ErrInvalidOrderType
	}
	if r.Side != OrderSideBuy && r.Side != OrderSideSell {
		return ErrInvalidOrderType
	}
	return nil
}

// Order is an order tracked by the ledger. Only the ledger mutates it.
type Order struct {
	ID     string      `json:"id"`
	Symbol string      `json:"symbol"`
	Side   OrderSide   `json:"side"`
	Type   OrderType   `json:"type"`
	Amount float64     `json:"amount"`
	Price  float64     `json:"price,omitempty"`
	Status OrderStatus `json:"status"`
	// FillPrice is set once the order is filled.
	FillPrice float64 `json:"fill_price,omitempty"`
	// Fee is the commission charged on the fill.
	Fee             float64   `json:"fee,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
}

// IsFilled returns true if the order is completely filled.
func (o Order) IsFilled() bool {
	return o.Status == OrderStatusFilled
}

// IsOpen returns true if the order is still active.
func (o Order) IsOpen() bool {
	return o.Status == OrderStatusPending
}

// IsTerminal returns true if the order is in a final state.
func (o Order) IsTerminal() bool {
	return o.Status == OrderStatusFilled ||
		o.Status == OrderStatusCancelled ||
		o.Status == OrderStatusRejected
}

// Trade is the immutable record of a single fill.
type Trade struct {
	ID      string    `json:"id"`
	OrderID string    `json:"order_id"`
	Symbol  string    `json:"symbol"`
	Side    OrderSide `json:"side"`
	Amount  float64   `json:"amount"`
	Price   float64   `json:"price"`
	// Cost is Amount * Price; fees are tracked separately.
	Cost      float64   `json:"cost"`
	Fee       float64   `json:"fee"`
	Timestamp time.Time `json:"timestamp"`
}

// Position represents a long holding in one symbol.
type Position struct {
	Symbol string `json:"symbol"`
	// Amount is never negative.
	Amount float64 `json:"amount"`
	// EntryPrice is the weighted average entry, zero when flat.
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	UnrealizedPL float64   `json:"unrealized_pl"`
	RealizedPL   float64   `json:"realized_pl"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsOpen reports whether the position holds more than dust.
func (p Position) IsOpen() bool {
	return p.Amount > Epsilon
}

// MarketValue is the position valued at the last mark.
func (p Position) MarketValue() float64 {
	return p.Amount * p.CurrentPrice
}

// UnrealizedPLPercent is the open P&L relative to the entry price.
func (p Position) UnrealizedPLPercent() float64 {
	if p.EntryPrice <= 0 || p.Amount <= 0 {
		return 0
	}
	return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
}
