package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// DefaultMaxSkew is how long the merger waits for a quiet feed before
// releasing events from the others.
const DefaultMaxSkew = 500 * time.Millisecond

// Feed is one upstream event channel feeding the merger. The channel's
// capacity is the feed's bound: producers block when the merger falls
// behind, they never drop. The producer closes Events when it shuts down.
type Feed struct {
	Name   string
	Events <-chan domain.MarketEvent
}

// Merge interleaves N feeds into a single stream ordered by venue timestamp.
// While every open feed has an event buffered, the earliest is emitted; when
// a feed is quiet the merger waits up to maxSkew wall-clock time before
// releasing events from the others. Events older than the emission watermark
// are late: counted and returned as domain.ErrLateEvent, never emitted.
//
// Once every feed channel is closed, remaining buffered events drain through
// Next in order and the source ends with domain.ErrSourceExhausted. The run
// loop relies on this for shutdown: cancel the feeds, keep calling Next.
type Merge struct {
	feeds    []*feedState
	arrivals chan tagged
	maxSkew  time.Duration

	watermark time.Time
	nextSeq   uint64
	stats     Stats
	started   bool
	logger    *slog.Logger
}

type feedState struct {
	name   string
	head   *domain.MarketEvent
	closed bool
}

type tagged struct {
	idx   int
	event domain.MarketEvent
	ok    bool
}

// NewMerge builds a merger over the given feeds.
func NewMerge(feeds []Feed, maxSkew time.Duration, logger *slog.Logger) *Merge {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	m := &Merge{
		arrivals: make(chan tagged),
		maxSkew:  maxSkew,
		logger:   logger.With(slog.String("component", "merge_source")),
	}
	for i, f := range feeds {
		m.feeds = append(m.feeds, &feedState{name: f.Name})
		go m.pump(i, f.Events)
	}
	return m
}

// pump forwards one feed into the shared arrivals channel. The unbuffered
// send preserves upstream backpressure: at most one event per feed is in
// flight beyond the feed channel's own capacity.
func (m *Merge) pump(idx int, events <-chan domain.MarketEvent) {
	for event := range events {
		m.arrivals <- tagged{idx: idx, event: event, ok: true}
	}
	m.arrivals <- tagged{idx: idx}
}

// Next returns the next merged event in timestamp order. Excluded late
// events surface as a domain.ErrLateEvent error; callers skip them and call
// Next again.
func (m *Merge) Next(ctx context.Context) (domain.MarketEvent, error) {
	// Wait until every open feed has a head, a skew timeout expires, or
	// everything is closed.
	if err := m.gather(ctx); err != nil {
		return domain.MarketEvent{}, err
	}

	best := -1
	for i, f := range m.feeds {
		if f.head == nil {
			continue
		}
		if best == -1 || f.head.Before(*m.feeds[best].head) {
			best = i
		}
	}
	if best == -1 {
		return domain.MarketEvent{}, domain.ErrSourceExhausted
	}

	event := *m.feeds[best].head
	m.feeds[best].head = nil

	if m.started && event.Timestamp.Before(m.watermark) {
		m.stats.Late++
		m.logger.Warn("excluding late event",
			slog.String("feed", m.feeds[best].name),
			slog.String("stream", event.StreamKey()),
			slog.Time("timestamp", event.Timestamp),
			slog.Time("watermark", m.watermark))
		return domain.MarketEvent{}, fmt.Errorf("source: %s event %s behind watermark %s: %w",
			m.feeds[best].name, event.Timestamp.Format(time.RFC3339Nano),
			m.watermark.Format(time.RFC3339Nano), domain.ErrLateEvent)
	}

	m.started = true
	if event.Timestamp.After(m.watermark) {
		m.watermark = event.Timestamp
	}
	event.Seq = m.nextSeq
	m.nextSeq++
	m.stats.Emitted++
	return event, nil
}

// gather blocks until every open feed has a buffered head, or — once at
// least one head is available — until maxSkew has elapsed.
func (m *Merge) gather(ctx context.Context) error {
	var timeout <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		waiting := 0
		have := 0
		for _, f := range m.feeds {
			if f.closed {
				continue
			}
			if f.head != nil {
				have++
			} else {
				waiting++
			}
		}
		if waiting == 0 {
			return nil
		}
		if have > 0 && timer == nil {
			timer = time.NewTimer(m.maxSkew)
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			// A feed stayed quiet past the skew window; release what we have.
			return nil
		case arrival := <-m.arrivals:
			f := m.feeds[arrival.idx]
			if !arrival.ok {
				f.closed = true
				continue
			}
			event := arrival.event
			f.head = &event
		}
	}
}

// Close is a no-op: the merger drains once its feeds close their channels.
func (m *Merge) Close() error { return nil }

// Stats returns merge counters.
func (m *Merge) Stats() Stats { return m.stats }
