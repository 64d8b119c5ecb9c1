package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysim/internal/domain"
)

// FillStore persists the append-only fill history of runs.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a FillStore backed by the given client.
func NewFillStore(client *Client) *FillStore {
	return &FillStore{pool: client.Pool()}
}

// SaveFills batch-inserts a run's fills, preserving order.
func (s *FillStore) SaveFills(ctx context.Context, runID string, fills []domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, f := range fills {
		batch.Queue(`
			INSERT INTO sim_fills
				(run_id, order_id, strategy_id, platform, market_id, side, price, size, filled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			runID, f.OrderID, f.StrategyID, f.Platform, f.MarketID,
			f.Side, f.Price, f.Size, f.FilledAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range fills {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: save fills: %w", err)
		}
	}
	return nil
}

// ListFills returns a run's fills in insertion order.
func (s *FillStore) ListFills(ctx context.Context, runID string) ([]domain.Fill, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, strategy_id, platform, market_id, side, price, size, filled_at
		FROM sim_fills WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills: %w", err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		if err := rows.Scan(&f.OrderID, &f.StrategyID, &f.Platform, &f.MarketID,
			&f.Side, &f.Price, &f.Size, &f.FilledAt); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list fills: %w", err)
	}
	return fills, nil
}
