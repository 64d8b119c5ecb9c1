package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// RunStore persists run records to the sim_runs table.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a RunStore backed by the given client.
func NewRunStore(client *Client) *RunStore {
	return &RunStore{pool: client.Pool()}
}

// CreateRun inserts the initial row for a run.
func (s *RunStore) CreateRun(ctx context.Context, run *domain.RunRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sim_runs (id, mode, status, strategies, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Mode, run.Status, run.Strategies, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create run: %w", err)
	}
	return nil
}

// FinishRun records the terminal state, counters, and final snapshot.
func (s *RunStore) FinishRun(ctx context.Context, run *domain.RunRecord) error {
	var finalJSON []byte
	if run.Final != nil {
		var err error
		finalJSON, err = json.Marshal(run.Final)
		if err != nil {
			return fmt.Errorf("postgres: marshal final snapshot: %w", err)
		}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE sim_runs
		SET status = $2, event_count = $3, malformed_ct = $4, late_ct = $5,
		    finished_at = $6, final_snapshot = $7
		WHERE id = $1`,
		run.ID, run.Status, run.EventCount, run.MalformedCt, run.LateCt,
		run.FinishedAt, finalJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: finish run %s: %w", run.ID, domain.ErrNotFound)
	}
	return nil
}

// GetRun loads one run record.
func (s *RunStore) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	var (
		run       domain.RunRecord
		finalJSON []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, mode, status, strategies, event_count, malformed_ct,
		       late_ct, started_at, finished_at, final_snapshot
		FROM sim_runs WHERE id = $1`, id,
	).Scan(
		&run.ID, &run.Mode, &run.Status, &run.Strategies, &run.EventCount,
		&run.MalformedCt, &run.LateCt, &run.StartedAt, &run.FinishedAt, &finalJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: run %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get run: %w", err)
	}
	if len(finalJSON) > 0 {
		run.Final = &domain.PerformanceSnapshot{}
		if err := json.Unmarshal(finalJSON, run.Final); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal final snapshot: %w", err)
		}
	}
	return &run, nil
}
