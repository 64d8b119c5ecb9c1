// Package domain defines the core data types shared across the simulator:
// market events, order book state, signals, simulated orders, fills, and
// performance snapshots. Types here carry no behavior beyond small accessors;
// all mutation happens in the packages that own each type.
package domain

import "time"

// Platform identifies a prediction-market venue.
type Platform string

const (
	PlatformPolymarket Platform = "polymarket"
	PlatformKalshi     Platform = "kalshi"
)

// EventKind distinguishes the two market-data event types the simulator
// consumes. The string values match the historical event-log contract.
type EventKind string

const (
	EventKindBookUpdate EventKind = "orderbook_update"
	EventKindTrade      EventKind = "trade"
)

// BookLevel is a single price+size entry in an orderbook.
type BookLevel struct {
	Price float64
	Size  float64
}

// BookUpdate is the payload of an orderbook_update event: the venue's current
// bids and asks, best-first.
type BookUpdate struct {
	Bids []BookLevel
	Asks []BookLevel
}

// BestBid returns the top bid level, if present.
func (b BookUpdate) BestBid() (BookLevel, bool) {
	if len(b.Bids) == 0 {
		return BookLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask level, if present.
func (b BookUpdate) BestAsk() (BookLevel, bool) {
	if len(b.Asks) == 0 {
		return BookLevel{}, false
	}
	return b.Asks[0], true
}

// TradeEvent is the payload of a trade event: an execution reported by the
// venue's public feed.
type TradeEvent struct {
	Price float64
	Size  float64
	Side  OrderSide
}

// MarketEvent is one normalized market-data event. Events are immutable once
// created; Seq is the arrival sequence number assigned at ingestion and
// tie-breaks events with equal venue timestamps.
type MarketEvent struct {
	Platform  Platform
	MarketID  string
	Timestamp time.Time
	Seq       uint64
	Kind      EventKind
	Book      *BookUpdate
	Trade     *TradeEvent
}

// StreamKey identifies the (platform, market) stream this event belongs to.
// Timestamp monotonicity is enforced per stream, per source.
func (e MarketEvent) StreamKey() string {
	return string(e.Platform) + ":" + e.MarketID
}

// Before reports whether e orders strictly before other by (timestamp, seq).
func (e MarketEvent) Before(other MarketEvent) bool {
	if !e.Timestamp.Equal(other.Timestamp) {
		return e.Timestamp.Before(other.Timestamp)
	}
	return e.Seq < other.Seq
}
