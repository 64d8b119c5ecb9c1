package sim

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polysim/internal/analytics"
	"github.com/alanyoungcy/polysim/internal/book"
	"github.com/alanyoungcy/polysim/internal/domain"
	"github.com/alanyoungcy/polysim/internal/source"
	"github.com/alanyoungcy/polysim/internal/strategy"
)

// Loop is the single authoritative event loop: it owns the book tracker,
// the strategy runner, the executor, and the analytics engine, and is the
// only goroutine that touches any of them. Per event the order is fixed:
// apply to the book, fill resting orders, dispatch to strategies, submit
// their signals, fold every fill into analytics.
type Loop struct {
	source    source.EventSource
	tracker   *book.Tracker
	runner    *strategy.Runner
	executor  *Executor
	ledger    *Ledger
	analytics *analytics.Engine
	logger    *slog.Logger

	// DrainTimeout bounds how long the loop keeps consuming buffered events
	// after cancellation. Zero stops immediately (historical replay).
	DrainTimeout time.Duration

	// OnSnapshot, when set, receives the owning strategy's snapshot after
	// every fill. Used by paper mode to publish in-flight performance.
	OnSnapshot func(domain.PerformanceSnapshot)

	events        int64
	invalidSignal int64
}

// NewLoop wires a run loop over its collaborators.
func NewLoop(
	src source.EventSource,
	tracker *book.Tracker,
	runner *strategy.Runner,
	executor *Executor,
	ledger *Ledger,
	engine *analytics.Engine,
	logger *slog.Logger,
) *Loop {
	return &Loop{
		source:    src,
		tracker:   tracker,
		runner:    runner,
		executor:  executor,
		ledger:    ledger,
		analytics: engine,
		logger:    logger.With(slog.String("component", "run_loop")),
	}
}

// Run consumes the source to exhaustion or cancellation. On cancellation
// with a drain timeout, events already buffered upstream are processed
// before finalizing; the executor's open orders are then cancelled so the
// run ends with a closed order book. Returns nil on clean exhaustion and
// ctx.Err() after a cancelled (but drained) run.
func (l *Loop) Run(ctx context.Context) error {
	var cause error
	for {
		event, err := l.source.Next(ctx)
		if err != nil {
			if source.IsExhausted(err) {
				break
			}
			if errors.Is(err, domain.ErrLateEvent) {
				continue // counted by the source, not replayed
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				cause = ctx.Err()
				l.drain()
				break
			}
			return err
		}
		l.process(ctx, event)
	}

	cancelled := l.executor.CancelOpen()
	l.logger.Info("run loop finished",
		slog.Int64("events", l.events),
		slog.Int64("invalid_signals", l.invalidSignal),
		slog.Int("orders_cancelled", cancelled))
	return cause
}

// drain keeps consuming after cancellation until the source is exhausted or
// the drain timeout expires. Live feeds close their channels on the same
// cancellation, so the merge source ends on its own.
func (l *Loop) drain() {
	if l.DrainTimeout <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.DrainTimeout)
	defer cancel()

	for {
		event, err := l.source.Next(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrLateEvent) {
				continue
			}
			if !source.IsExhausted(err) {
				l.logger.Warn("drain ended early", slog.String("error", err.Error()))
			}
			return
		}
		l.process(ctx, event)
	}
}

// process runs one event through the full pipeline.
func (l *Loop) process(ctx context.Context, event domain.MarketEvent) {
	l.events++

	state := l.tracker.Apply(event)
	l.analytics.ObserveEvent(event, state)

	// Resting orders see the trade before strategies do: a strategy's
	// reaction to a print must not jump the queue ahead of orders that were
	// already waiting for it.
	if event.Kind == domain.EventKindTrade {
		l.settle(l.executor.OnTrade(event))
	}

	signals := l.runner.Dispatch(ctx, event, state)
	for _, sig := range signals {
		fills, err := l.executor.Submit(sig, state)
		if err != nil {
			l.invalidSignal++
			l.logger.Warn("signal rejected",
				slog.String("strategy", sig.StrategyID),
				slog.String("market_id", sig.MarketID),
				slog.String("error", err.Error()))
			continue
		}
		l.settle(fills)
	}
}

func (l *Loop) settle(fills []domain.Fill) {
	for _, fill := range fills {
		snap := l.analytics.OnFill(fill, l.ledger.Cash(fill.StrategyID))
		l.runner.ObserveFill(fill)
		if l.OnSnapshot != nil {
			l.OnSnapshot(snap)
		}
	}
}

// Events returns how many events the loop has processed.
func (l *Loop) Events() int64 { return l.events }

// InvalidSignals returns how many signals failed validation.
func (l *Loop) InvalidSignals() int64 { return l.invalidSignal }
