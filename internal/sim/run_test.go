package sim

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polysim/internal/analytics"
	"github.com/alanyoungcy/polysim/internal/book"
	"github.com/alanyoungcy/polysim/internal/domain"
	"github.com/alanyoungcy/polysim/internal/strategy"
)

// sliceSource replays a fixed event slice.
type sliceSource struct {
	events []domain.MarketEvent
	pos    int
}

func (s *sliceSource) Next(ctx context.Context) (domain.MarketEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.MarketEvent{}, err
	}
	if s.pos >= len(s.events) {
		return domain.MarketEvent{}, domain.ErrSourceExhausted
	}
	event := s.events[s.pos]
	s.pos++
	return event, nil
}

func (s *sliceSource) Close() error { return nil }

// bidOnWideSpread rests a bid one tick above the best bid whenever the
// spread is wide, at most once per market.
type bidOnWideSpread struct {
	placed map[string]bool
}

func (s *bidOnWideSpread) Name() string                   { return "bidder" }
func (s *bidOnWideSpread) Init(ctx context.Context) error { return nil }
func (s *bidOnWideSpread) Close() error                   { return nil }

func (s *bidOnWideSpread) Handle(ctx context.Context, event domain.MarketEvent, bk domain.OrderBookState) ([]domain.Signal, error) {
	if event.Kind != domain.EventKindBookUpdate || s.placed[event.StreamKey()] {
		return nil, nil
	}
	if !bk.HasBid() || !bk.HasAsk() || bk.Spread() < 0.05 {
		return nil, nil
	}
	s.placed[event.StreamKey()] = true
	return []domain.Signal{{
		Platform:  event.Platform,
		MarketID:  event.MarketID,
		Type:      domain.SignalBuy,
		Price:     bk.BestBid + 0.01,
		Size:      10,
		CreatedAt: event.Timestamp,
	}}, nil
}

func scenarioEvents() []domain.MarketEvent {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []domain.MarketEvent{
		{Platform: domain.PlatformPolymarket, MarketID: "mkt-1", Timestamp: base, Seq: 0,
			Kind: domain.EventKindBookUpdate,
			Book: &domain.BookUpdate{
				Bids: []domain.BookLevel{{Price: 0.45, Size: 100}},
				Asks: []domain.BookLevel{{Price: 0.55, Size: 100}},
			}},
		{Platform: domain.PlatformPolymarket, MarketID: "mkt-1", Timestamp: base.Add(time.Second), Seq: 1,
			Kind:  domain.EventKindTrade,
			Trade: &domain.TradeEvent{Price: 0.44, Size: 6, Side: domain.OrderSideSell}},
		{Platform: domain.PlatformPolymarket, MarketID: "mkt-1", Timestamp: base.Add(2 * time.Second), Seq: 2,
			Kind:  domain.EventKindTrade,
			Trade: &domain.TradeEvent{Price: 0.48, Size: 10, Side: domain.OrderSideBuy}},
	}
}

func runScenario(t *testing.T) (*Loop, *Executor, *analytics.Engine) {
	t.Helper()
	logger := testLogger()

	ledger := NewLedger(10000, 0)
	executor := NewExecutor(ledger, logger)
	tracker := book.NewTracker(logger)
	runner := strategy.NewRunner(logger)
	runner.Register(&bidOnWideSpread{placed: make(map[string]bool)})
	engine := analytics.NewEngine("run-1", analytics.Config{InitialBalance: 10000}, logger)

	loop := NewLoop(&sliceSource{events: scenarioEvents()}, tracker, runner, executor, ledger, engine, logger)
	require.NoError(t, loop.Run(context.Background()))
	return loop, executor, engine
}

func TestLoopFillsRestingOrderFromTrade(t *testing.T) {
	loop, executor, _ := runScenario(t)

	assert.Equal(t, int64(3), loop.Events())
	fills := executor.Fills()
	require.Len(t, fills, 1)
	// The strategy bid 0.46; the second-event print at 0.44 goes through it.
	assert.InDelta(t, 0.44, fills[0].Price, 1e-9)
	assert.Equal(t, 6.0, fills[0].Size)
	assert.Equal(t, "bidder", fills[0].StrategyID)
}

func TestLoopCancelsOpenOrdersAtEnd(t *testing.T) {
	_, executor, _ := runScenario(t)

	order, ok := executor.Order("ord-000001")
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.Equal(t, 4.0, order.Remaining)
}

func TestReplayIsDeterministic(t *testing.T) {
	_, first, firstEngine := runScenario(t)
	_, second, secondEngine := runScenario(t)

	assert.Equal(t, first.Fills(), second.Fills())
	assert.Equal(t, firstEngine.ClosedTrades(), secondEngine.ClosedTrades())

	f1 := firstEngine.Final()
	f2 := secondEngine.Final()
	require.Len(t, f1, len(f2))
	for i := range f1 {
		// TakenAt is wall clock; everything else must match exactly.
		f1[i].TakenAt = time.Time{}
		f2[i].TakenAt = time.Time{}
		assert.Equal(t, f1[i], f2[i])
	}
}

// scriptedSource replays a fixed sequence of (event, error) results, for
// sources that interleave per-event errors with good events.
type scriptedSource struct {
	steps []sourceStep
	pos   int
}

type sourceStep struct {
	event domain.MarketEvent
	err   error
}

func (s *scriptedSource) Next(ctx context.Context) (domain.MarketEvent, error) {
	if s.pos >= len(s.steps) {
		return domain.MarketEvent{}, domain.ErrSourceExhausted
	}
	step := s.steps[s.pos]
	s.pos++
	return step.event, step.err
}

func (s *scriptedSource) Close() error { return nil }

func TestLoopSkipsLateEvents(t *testing.T) {
	logger := testLogger()
	ledger := NewLedger(10000, 0)
	executor := NewExecutor(ledger, logger)
	tracker := book.NewTracker(logger)
	runner := strategy.NewRunner(logger)
	runner.Register(&bidOnWideSpread{placed: make(map[string]bool)})
	engine := analytics.NewEngine("run-1", analytics.Config{InitialBalance: 10000}, logger)

	events := scenarioEvents()
	src := &scriptedSource{steps: []sourceStep{
		{event: events[0]},
		{err: fmt.Errorf("source: behind watermark: %w", domain.ErrLateEvent)},
		{event: events[1]},
		{event: events[2]},
	}}

	loop := NewLoop(src, tracker, runner, executor, ledger, engine, logger)
	require.NoError(t, loop.Run(context.Background()))

	// The late event is skipped, not fatal; the rest of the scenario plays
	// out identically.
	assert.Equal(t, int64(3), loop.Events())
	fills := executor.Fills()
	require.Len(t, fills, 1)
	assert.InDelta(t, 0.44, fills[0].Price, 1e-9)
}

func TestLoopCountsInvalidSignals(t *testing.T) {
	logger := testLogger()
	ledger := NewLedger(10000, 0)
	executor := NewExecutor(ledger, logger)
	tracker := book.NewTracker(logger)
	runner := strategy.NewRunner(logger)
	runner.Register(&badSignaler{})
	engine := analytics.NewEngine("run-1", analytics.Config{InitialBalance: 10000}, logger)

	loop := NewLoop(&sliceSource{events: scenarioEvents()[:1]}, tracker, runner, executor, ledger, engine, logger)
	require.NoError(t, loop.Run(context.Background()))

	assert.Equal(t, int64(1), loop.InvalidSignals())
	assert.Empty(t, executor.Fills())
}

type badSignaler struct{}

func (s *badSignaler) Name() string                   { return "bad" }
func (s *badSignaler) Init(ctx context.Context) error { return nil }
func (s *badSignaler) Close() error                   { return nil }

func (s *badSignaler) Handle(ctx context.Context, event domain.MarketEvent, bk domain.OrderBookState) ([]domain.Signal, error) {
	return []domain.Signal{{
		Platform: event.Platform,
		MarketID: event.MarketID,
		Type:     domain.SignalBuy,
		Price:    1.5, // out of range
		Size:     10,
	}}, nil
}
