package domain

import (
	"context"
	"io"
	"time"
)

// RunStatus tracks a simulation run's lifecycle in the run store.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusFinished  RunStatus = "finished"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunRecord is the persisted summary of one simulation run.
type RunRecord struct {
	ID          string
	Mode        string
	Status      RunStatus
	Strategies  []string
	EventCount  int64
	MalformedCt int64
	LateCt      int64
	StartedAt   time.Time
	FinishedAt  *time.Time
	Final       *PerformanceSnapshot
}

// RunStore persists run records.
type RunStore interface {
	CreateRun(ctx context.Context, run *RunRecord) error
	FinishRun(ctx context.Context, run *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
}

// FillStore persists the append-only fill history of a run.
type FillStore interface {
	SaveFills(ctx context.Context, runID string, fills []Fill) error
	ListFills(ctx context.Context, runID string) ([]Fill, error)
}

// SnapshotBus publishes in-flight performance snapshots to external
// consumers and records final results.
type SnapshotBus interface {
	PublishSnapshot(ctx context.Context, snap *PerformanceSnapshot) error
	AppendResult(ctx context.Context, run *RunRecord) error
	Close() error
}

// Blob archives event logs and run reports to object storage. PutLarge is
// for bodies big enough to want multipart upload; both return the stored key.
type Blob interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	PutLarge(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	ArchiveReport(ctx context.Context, runID, report string) (string, error)
}

// Notifier delivers run-completion messages. Implementations must not block
// the run loop; failures are logged, never fatal.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}
