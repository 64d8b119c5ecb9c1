package domain

import "time"

// SignalType is the action a strategy requests from the execution simulator.
type SignalType string

const (
	SignalBuy  SignalType = "buy"
	SignalSell SignalType = "sell"
)

// Side maps the signal action onto an order side.
func (t SignalType) Side() OrderSide {
	if t == SignalSell {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Signal is a strategy's request to place a limit order. Strategies emit
// signals from Handle; they never touch the ledger or the book directly.
// Price is a probability in (0, 1); Size is in contracts.
type Signal struct {
	StrategyID string
	Platform   Platform
	MarketID   string
	Type       SignalType
	Price      float64
	Size       float64
	// Confidence is the strategy's conviction in [0, 1]. The executor rejects
	// values outside the range; it does not scale sizing by it.
	Confidence float64
	// Reason is free-form strategy context for logs and debugging, never
	// interpreted.
	Reason    string
	CreatedAt time.Time
}
