package book

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polysim/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bookEvent(marketID string, ts time.Time, seq uint64, bids, asks []domain.BookLevel) domain.MarketEvent {
	return domain.MarketEvent{
		Platform:  domain.PlatformPolymarket,
		MarketID:  marketID,
		Timestamp: ts,
		Seq:       seq,
		Kind:      domain.EventKindBookUpdate,
		Book:      &domain.BookUpdate{Bids: bids, Asks: asks},
	}
}

func tradeEvent(marketID string, ts time.Time, seq uint64, price, size float64) domain.MarketEvent {
	return domain.MarketEvent{
		Platform:  domain.PlatformPolymarket,
		MarketID:  marketID,
		Timestamp: ts,
		Seq:       seq,
		Kind:      domain.EventKindTrade,
		Trade:     &domain.TradeEvent{Price: price, Size: size, Side: domain.OrderSideBuy},
	}
}

func TestApplyBookUpdate(t *testing.T) {
	tr := NewTracker(testLogger())
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	state := tr.Apply(bookEvent("mkt-1", ts, 1,
		[]domain.BookLevel{{Price: 0.52, Size: 100}},
		[]domain.BookLevel{{Price: 0.55, Size: 80}}))

	assert.Equal(t, 0.52, state.BestBid)
	assert.Equal(t, 0.55, state.BestAsk)
	assert.Equal(t, 100.0, state.BidSize)
	assert.Equal(t, 80.0, state.AskSize)
	assert.InDelta(t, 0.535, state.MidPrice(), 1e-9)
	assert.InDelta(t, 0.03, state.Spread(), 1e-9)
	assert.Equal(t, ts, state.LastUpdate)
}

func TestApplyIsIdempotent(t *testing.T) {
	tr := NewTracker(testLogger())
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := bookEvent("mkt-1", ts, 1,
		[]domain.BookLevel{{Price: 0.40, Size: 50}},
		[]domain.BookLevel{{Price: 0.45, Size: 60}})

	first := tr.Apply(ev)
	second := tr.Apply(ev)
	assert.Equal(t, first, second)
}

func TestTradeTouchesAdvisoryFieldsOnly(t *testing.T) {
	tr := NewTracker(testLogger())
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tr.Apply(bookEvent("mkt-1", ts, 1,
		[]domain.BookLevel{{Price: 0.52, Size: 100}},
		[]domain.BookLevel{{Price: 0.55, Size: 80}}))
	state := tr.Apply(tradeEvent("mkt-1", ts.Add(time.Second), 2, 0.53, 10))

	assert.Equal(t, 0.53, state.LastTradePrice)
	assert.Equal(t, 0.52, state.BestBid)
	assert.Equal(t, 0.55, state.BestAsk)
	assert.Equal(t, ts.Add(time.Second), state.LastUpdate)
}

func TestOneSidedBookHasZeroMid(t *testing.T) {
	tr := NewTracker(testLogger())
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	state := tr.Apply(bookEvent("mkt-1", ts, 1,
		[]domain.BookLevel{{Price: 0.52, Size: 100}}, nil))

	assert.True(t, state.HasBid())
	assert.False(t, state.HasAsk())
	assert.Zero(t, state.MidPrice())
	assert.Zero(t, state.Spread())
}

func TestStreamsAreIndependent(t *testing.T) {
	tr := NewTracker(testLogger())
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tr.Apply(bookEvent("mkt-1", ts, 1,
		[]domain.BookLevel{{Price: 0.30, Size: 10}},
		[]domain.BookLevel{{Price: 0.35, Size: 10}}))
	tr.Apply(bookEvent("mkt-2", ts, 2,
		[]domain.BookLevel{{Price: 0.70, Size: 20}},
		[]domain.BookLevel{{Price: 0.72, Size: 20}}))

	require.Equal(t, 2, tr.Streams())
	s1, ok := tr.Get(domain.PlatformPolymarket, "mkt-1")
	require.True(t, ok)
	s2, ok := tr.Get(domain.PlatformPolymarket, "mkt-2")
	require.True(t, ok)
	assert.Equal(t, 0.30, s1.BestBid)
	assert.Equal(t, 0.70, s2.BestBid)
}

func TestCrossedBookIsNotFatal(t *testing.T) {
	tr := NewTracker(testLogger())
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	state := tr.Apply(bookEvent("mkt-1", ts, 1,
		[]domain.BookLevel{{Price: 0.60, Size: 10}},
		[]domain.BookLevel{{Price: 0.55, Size: 10}}))

	assert.True(t, state.Crossed())
}
