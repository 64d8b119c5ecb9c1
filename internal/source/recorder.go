package source

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// Recorder accumulates normalized events and writes them out in the
// collected-log shape. A log written by the recorder and replayed through
// the historical source yields the same event sequence.
type Recorder struct {
	mu     sync.Mutex
	events []logEvent
	opened time.Time
	logger *slog.Logger
}

// NewRecorder returns an empty recorder stamped with the collection start.
func NewRecorder(logger *slog.Logger) *Recorder {
	return &Recorder{
		opened: time.Now().UTC(),
		logger: logger.With(slog.String("component", "recorder")),
	}
}

// Record appends one event. Safe for concurrent use: collect mode feeds the
// recorder straight from both venue feed goroutines.
func (r *Recorder) Record(event domain.MarketEvent) error {
	raw, err := encodeEvent(event)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, raw)
	r.mu.Unlock()
	return nil
}

// Count returns the number of recorded events.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// WriteTo serializes the collected log.
func (r *Recorder) WriteTo(w io.Writer) error {
	r.mu.Lock()
	file := logFile{
		CollectedAt: r.opened,
		TotalEvents: len(r.events),
		Events:      r.events,
	}
	r.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&file); err != nil {
		return fmt.Errorf("encode event log: %w", err)
	}
	return nil
}

// WriteFile writes the collected log to path, replacing any existing file.
func (r *Recorder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create event log: %w", err)
	}
	if err := r.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close event log: %w", err)
	}
	r.logger.Info("event log written",
		slog.String("path", path), slog.Int("events", r.Count()))
	return nil
}
