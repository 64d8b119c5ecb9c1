// Package book maintains derived order-book state per (platform, market)
// stream from the normalized event flow. The tracker is the single writer of
// OrderBookState; everything downstream reads copies.
package book

import (
	"log/slog"
	"time"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// Tracker folds MarketEvents into per-stream OrderBookState. It is not
// goroutine-safe: the run loop owns it exclusively.
type Tracker struct {
	books  map[string]*domain.OrderBookState
	logger *slog.Logger
}

// NewTracker returns an empty tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{
		books:  make(map[string]*domain.OrderBookState),
		logger: logger.With(slog.String("component", "book_tracker")),
	}
}

// Apply folds one event into the tracked state and returns a copy of the
// stream's state after the update. Applying the same event twice yields the
// same state: updates replace, never accumulate.
func (t *Tracker) Apply(event domain.MarketEvent) domain.OrderBookState {
	key := event.StreamKey()
	state, ok := t.books[key]
	if !ok {
		state = &domain.OrderBookState{
			Platform: event.Platform,
			MarketID: event.MarketID,
		}
		t.books[key] = state
	}

	switch event.Kind {
	case domain.EventKindBookUpdate:
		t.applyBook(state, event)
	case domain.EventKindTrade:
		// Trades touch advisory fields only; the book sides are owned by
		// orderbook_update events.
		state.LastTradePrice = event.Trade.Price
	}
	t.touch(state, event.Timestamp)

	if state.Crossed() {
		t.logger.Warn("crossed book",
			slog.String("platform", string(state.Platform)),
			slog.String("market_id", state.MarketID),
			slog.Float64("best_bid", state.BestBid),
			slog.Float64("best_ask", state.BestAsk))
	}
	return *state
}

func (t *Tracker) applyBook(state *domain.OrderBookState, event domain.MarketEvent) {
	if bid, ok := event.Book.BestBid(); ok {
		state.BestBid = bid.Price
		state.BidSize = bid.Size
	} else {
		state.BestBid = 0
		state.BidSize = 0
	}
	if ask, ok := event.Book.BestAsk(); ok {
		state.BestAsk = ask.Price
		state.AskSize = ask.Size
	} else {
		state.BestAsk = 0
		state.AskSize = 0
	}
}

func (t *Tracker) touch(state *domain.OrderBookState, ts time.Time) {
	if ts.After(state.LastUpdate) {
		state.LastUpdate = ts
	}
}

// Get returns a copy of the tracked state for a stream.
func (t *Tracker) Get(platform domain.Platform, marketID string) (domain.OrderBookState, bool) {
	state, ok := t.books[string(platform)+":"+marketID]
	if !ok {
		return domain.OrderBookState{}, false
	}
	return *state, true
}

// Streams returns the number of streams seen so far.
func (t *Tracker) Streams() int { return len(t.books) }
