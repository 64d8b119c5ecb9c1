package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderStatus tracks the simulated order lifecycle.
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// SimulatedOrder is a limit order owned by the execution simulator. IDs are
// sequential within a run so that replays of the same event log produce
// identical order and fill records. Strategies never mutate orders; they
// observe Fill notifications only.
type SimulatedOrder struct {
	ID         string
	StrategyID string
	Platform   Platform
	MarketID   string
	Side       OrderSide
	Price      float64
	Size       float64
	Remaining  float64
	Status     OrderStatus
	CreatedAt  time.Time
}

// Fill is one execution against a simulated order. Append-only; an order may
// produce zero or more fills.
type Fill struct {
	OrderID    string
	StrategyID string
	Platform   Platform
	MarketID   string
	Side       OrderSide
	Price      float64
	Size       float64
	FilledAt   time.Time
}
