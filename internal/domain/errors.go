package domain

import "errors"

// Sentinel errors shared across packages. Callers classify with errors.Is;
// packages add context with fmt.Errorf("...: %w", err).
var (
	// ErrMalformedEvent marks an event that failed structural or monotonicity
	// validation at ingestion. Malformed events are counted and dropped.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrLateEvent marks a live event that arrived after the merge watermark
	// had passed its timestamp. Late events are counted and excluded.
	ErrLateEvent = errors.New("late event")

	// ErrInvalidSignal is returned by Submit for signals that fail validation
	// (size <= 0, price outside (0, 1), confidence outside [0, 1], unknown
	// platform).
	ErrInvalidSignal = errors.New("invalid signal")

	// ErrStrategySuspended is returned when dispatching to an instance that
	// has been suspended after repeated consecutive failures.
	ErrStrategySuspended = errors.New("strategy suspended")

	// ErrSourceExhausted is returned by EventSource.Next when no further
	// events will ever be produced. Terminal; sources are not restartable.
	ErrSourceExhausted = errors.New("event source exhausted")

	// ErrNotFound is returned by stores for missing records.
	ErrNotFound = errors.New("not found")
)
