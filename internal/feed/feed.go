// Package feed connects to the venues' public market-data WebSockets and
// normalizes their messages into domain.MarketEvent. Each feed owns one
// bounded output channel: when the consumer falls behind, the feed blocks on
// the socket side rather than dropping events.
package feed

import (
	"context"
	"sort"
	"time"

	"github.com/alanyoungcy/polysim/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second

	// DefaultQueueSize bounds each feed's output channel.
	DefaultQueueSize = 1024
)

// MarketFeed is a venue connection producing normalized events. Run blocks
// until ctx is cancelled, reconnecting as needed; Events is closed when Run
// returns, which is how downstream consumers learn the feed is done.
type MarketFeed interface {
	Run(ctx context.Context) error
	Events() <-chan domain.MarketEvent
}

// emit delivers one event, blocking while the consumer is behind.
func emit(ctx context.Context, out chan<- domain.MarketEvent, event domain.MarketEvent) bool {
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// backoff doubles delay up to the cap.
func backoff(delay time.Duration) time.Duration {
	delay *= 2
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}

// sortLevels orders a side best-first: bids by descending price, asks by
// ascending. Venues do not agree on wire ordering.
func sortLevels(levels []domain.BookLevel, bids bool) []domain.BookLevel {
	sort.SliceStable(levels, func(i, j int) bool {
		if bids {
			return levels[i].Price > levels[j].Price
		}
		return levels[i].Price < levels[j].Price
	})
	return levels
}
