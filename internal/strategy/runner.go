package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// MaxConsecutiveFailures is the per-instance failure budget. The counter
// resets on any successful Handle call; hitting the budget suspends the
// instance for the remainder of the run without touching the others.
const MaxConsecutiveFailures = 3

type instance struct {
	strategy  Strategy
	failures  int
	suspended bool
}

// Runner owns the registered strategy instances and dispatches events to
// them on the run loop. It is not goroutine-safe by design: all calls happen
// from the single loop goroutine.
type Runner struct {
	instances []*instance
	logger    *slog.Logger
}

// NewRunner returns an empty runner.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger.With(slog.String("component", "strategy_runner"))}
}

// Register appends a strategy instance. Dispatch order is registration
// order, which also decides fill priority at equal prices downstream.
func (r *Runner) Register(s Strategy) {
	r.instances = append(r.instances, &instance{strategy: s})
}

// Names returns registered strategy names in dispatch order.
func (r *Runner) Names() []string {
	names := make([]string, len(r.instances))
	for i, inst := range r.instances {
		names[i] = inst.strategy.Name()
	}
	return names
}

// Init initializes every instance. A failing Init is fatal for the run:
// better to refuse to start than to trade with a half-configured set.
func (r *Runner) Init(ctx context.Context) error {
	for _, inst := range r.instances {
		if err := inst.strategy.Init(ctx); err != nil {
			return fmt.Errorf("init strategy %s: %w", inst.strategy.Name(), err)
		}
	}
	return nil
}

// Dispatch delivers one event to every active instance and collects the
// emitted signals in emission order. Instance errors are contained: logged,
// counted, and converted into suspension at the budget — never propagated.
func (r *Runner) Dispatch(ctx context.Context, event domain.MarketEvent, book domain.OrderBookState) []domain.Signal {
	var signals []domain.Signal
	for _, inst := range r.instances {
		if inst.suspended {
			continue
		}
		emitted, err := inst.strategy.Handle(ctx, event, book)
		if err != nil {
			inst.failures++
			r.logger.Error("strategy handler failed",
				slog.String("strategy", inst.strategy.Name()),
				slog.Int("consecutive_failures", inst.failures),
				slog.String("error", err.Error()))
			if inst.failures >= MaxConsecutiveFailures {
				inst.suspended = true
				r.logger.Warn("strategy suspended",
					slog.String("strategy", inst.strategy.Name()))
			}
			continue
		}
		inst.failures = 0
		for i := range emitted {
			if emitted[i].StrategyID == "" {
				emitted[i].StrategyID = inst.strategy.Name()
			}
		}
		signals = append(signals, emitted...)
	}
	return signals
}

// ObserveFill forwards a fill to its owning instance, if it cares.
func (r *Runner) ObserveFill(fill domain.Fill) {
	for _, inst := range r.instances {
		if inst.strategy.Name() != fill.StrategyID {
			continue
		}
		if obs, ok := inst.strategy.(FillObserver); ok {
			obs.ObserveFill(fill)
		}
		return
	}
}

// Status reports the named instance's dispatch state: nil while active,
// domain.ErrStrategySuspended once the failure budget is spent, and
// domain.ErrNotFound for names never registered.
func (r *Runner) Status(name string) error {
	for _, inst := range r.instances {
		if inst.strategy.Name() == name {
			if inst.suspended {
				return fmt.Errorf("strategy %s: %w", name, domain.ErrStrategySuspended)
			}
			return nil
		}
	}
	return fmt.Errorf("strategy %s: %w", name, domain.ErrNotFound)
}

// Close closes every instance, returning the first error after trying all.
func (r *Runner) Close() error {
	var firstErr error
	for _, inst := range r.instances {
		if err := inst.strategy.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close strategy %s: %w", inst.strategy.Name(), err)
		}
	}
	return firstErr
}
