// Package strategy defines the strategy contract and the runner that
// dispatches market events to registered strategy instances. Strategies are
// pure decision-makers: they see events and book state and emit signals; the
// execution simulator owns all orders, fills, and money.
package strategy

import (
	"context"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// Strategy is one trading policy instance. Handle is called on the run loop
// for every event, in registration order across instances; it must not block
// on anything but ctx and must not retain the book state past the call.
// Returning an error counts against the instance's failure budget; returning
// (nil, nil) is the normal no-action case.
type Strategy interface {
	Name() string
	Init(ctx context.Context) error
	Handle(ctx context.Context, event domain.MarketEvent, book domain.OrderBookState) ([]domain.Signal, error)
	Close() error
}

// FillObserver is implemented by strategies that want execution feedback.
// The runner forwards every fill belonging to the instance.
type FillObserver interface {
	ObserveFill(fill domain.Fill)
}
