package domain

import "time"

// OrderBookState is the tracked top-of-book for one (platform, market).
// It is derived entirely from MarketEvent history and is only ever mutated
// by the book tracker.
type OrderBookState struct {
	Platform Platform
	MarketID string

	BestBid float64
	BestAsk float64
	BidSize float64
	AskSize float64

	// LastTradePrice is advisory: updated by trade events without touching
	// the book sides.
	LastTradePrice float64

	LastUpdate time.Time
}

// HasBid reports whether the bid side has been populated.
func (s OrderBookState) HasBid() bool { return s.BestBid > 0 }

// HasAsk reports whether the ask side has been populated.
func (s OrderBookState) HasAsk() bool { return s.BestAsk > 0 }

// MidPrice returns the bid/ask midpoint, or 0 when either side is missing.
func (s OrderBookState) MidPrice() float64 {
	if !s.HasBid() || !s.HasAsk() {
		return 0
	}
	return (s.BestBid + s.BestAsk) / 2
}

// Spread returns best_ask - best_bid, or 0 when either side is missing.
func (s OrderBookState) Spread() float64 {
	if !s.HasBid() || !s.HasAsk() {
		return 0
	}
	return s.BestAsk - s.BestBid
}

// Crossed reports whether both sides are populated and best_bid exceeds
// best_ask. Real feeds produce this transiently; it is logged, not fatal.
func (s OrderBookState) Crossed() bool {
	return s.HasBid() && s.HasAsk() && s.BestBid > s.BestAsk
}
