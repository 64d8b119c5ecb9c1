package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polysim/internal/domain"
)

const (
	// snapshotChannel carries in-flight snapshots over Pub/Sub.
	snapshotChannel = "polysim:snapshots"
	// resultsStream holds final run results, trimmed to streamMaxLen.
	resultsStream = "polysim:results"
	// streamMaxLen is the approximate maximum stream length, enforced via
	// XADD MAXLEN ~.
	streamMaxLen int64 = 10000
)

// SnapshotBus implements domain.SnapshotBus using Redis Pub/Sub for
// ephemeral snapshot fan-out and a Redis Stream for durable run results.
type SnapshotBus struct {
	client *Client
}

var _ domain.SnapshotBus = (*SnapshotBus)(nil)

// NewSnapshotBus creates a SnapshotBus backed by the given Client.
func NewSnapshotBus(c *Client) *SnapshotBus {
	return &SnapshotBus{client: c}
}

// PublishSnapshot fans out one snapshot to live subscribers. Fire-and-forget
// semantics: nobody listening is not an error.
func (b *SnapshotBus) PublishSnapshot(ctx context.Context, snap *domain.PerformanceSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot: %w", err)
	}
	if err := b.client.rdb.Publish(ctx, snapshotChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish snapshot: %w", err)
	}
	return nil
}

// AppendResult appends a finished run's record to the results stream.
func (b *SnapshotBus) AppendResult(ctx context.Context, run *domain.RunRecord) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("redis: marshal run record: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: resultsStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"run_id":  run.ID,
			"payload": payload,
		},
	}
	if err := b.client.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: append result: %w", err)
	}
	return nil
}

// SubscribeSnapshots returns a channel of decoded snapshots. The
// subscription closes when ctx is cancelled.
func (b *SnapshotBus) SubscribeSnapshots(ctx context.Context) (<-chan domain.PerformanceSnapshot, error) {
	pubsub := b.client.rdb.Subscribe(ctx, snapshotChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe snapshots: %w", err)
	}

	out := make(chan domain.PerformanceSnapshot, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var snap domain.PerformanceSnapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases the underlying client.
func (b *SnapshotBus) Close() error { return b.client.Close() }
