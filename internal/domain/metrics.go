package domain

import "time"

// ClosedTrade is one round trip: recorded when a strategy's net position in a
// market returns to zero or flips sign. PnL is computed against the
// average-cost basis of the closed quantity.
type ClosedTrade struct {
	StrategyID string
	Platform   Platform
	MarketID   string
	Side       OrderSide // side of the opening leg
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	ClosedAt   time.Time
}

// PerformanceSnapshot is the analytics engine's view of a run at a point in
// time. SharpeRatio and ProfitFactor are pointers because both are undefined
// in legitimate states (fewer than two return samples, zero return stdev,
// zero gross loss); nil means "undefined", never zero.
type PerformanceSnapshot struct {
	RunID      string
	StrategyID string // empty for the aggregate snapshot

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64

	RealizedPnL   float64
	UnrealizedPnL float64
	TotalPnL      float64
	// TotalReturn is TotalPnL over the initial balance.
	TotalReturn float64

	SharpeRatio  *float64
	MaxDrawdown  float64
	ProfitFactor *float64

	GrossProfit float64
	GrossLoss   float64

	Equity    float64
	Cash      float64
	EventTime time.Time
	TakenAt   time.Time
}
