// Package source provides the event sources the run loop consumes: a
// historical replay source reading collected event logs, and a live merge
// source ordering events from concurrent venue feeds. Both expose the same
// pull interface so the loop is identical across modes.
package source

import (
	"context"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// EventSource yields market events one at a time. Next blocks until an event
// is available, the source is exhausted, or ctx is done. Once it returns
// domain.ErrSourceExhausted every subsequent call does too; sources are not
// restartable.
type EventSource interface {
	Next(ctx context.Context) (domain.MarketEvent, error)
	Close() error
}

// Stats are ingestion counters a source accumulates while running.
type Stats struct {
	Emitted   int64
	Malformed int64
	Late      int64
}
