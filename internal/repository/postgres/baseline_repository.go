package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/pkg/database"
)

// BaselineRepository handles cost baseline persistence in PostgreSQL
type BaselineRepository struct {
	db *database.PostgresDB
}

// NewBaselineRepository creates a new baseline repository
func NewBaselineRepository(db *database.PostgresDB) *BaselineRepository {
	return &BaselineRepository{db: db}
}

// Upsert writes a baseline, replacing any previous value for the same
// (service, endpoint, window) key.
func (r *BaselineRepository) Upsert(ctx context.Context, b domain.CostBaseline) error {
	query := `
		INSERT INTO cost_baselines (service_name, endpoint, time_window, p50, p95, p99, sample_count, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (service_name, endpoint, time_window) DO UPDATE SET
			p50 = EXCLUDED.p50,
			p95 = EXCLUDED.p95,
			p99 = EXCLUDED.p99,
			sample_count = EXCLUDED.sample_count,
			last_updated = EXCLUDED.last_updated
	`

	_, err := r.db.Pool.Exec(ctx, query,
		b.ServiceName,
		b.Endpoint,
		b.Window,
		b.P50,
		b.P95,
		b.P99,
		b.SampleCount,
		b.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert baseline: %w", err)
	}

	return nil
}

// Get retrieves the baseline for one endpoint and window. Returns nil when
// no baseline has been computed yet.
func (r *BaselineRepository) Get(ctx context.Context, serviceName, endpoint string, window domain.BaselineWindow) (*domain.CostBaseline, error) {
	query := `
		SELECT service_name, endpoint, time_window, p50, p95, p99, sample_count, last_updated
		FROM cost_baselines
		WHERE service_name = $1 AND endpoint = $2 AND time_window = $3
	`

	var b domain.CostBaseline
	err := r.db.Pool.QueryRow(ctx, query, serviceName, endpoint, window).Scan(
		&b.ServiceName,
		&b.Endpoint,
		&b.Window,
		&b.P50,
		&b.P95,
		&b.P99,
		&b.SampleCount,
		&b.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}

	return &b, nil
}

// List retrieves all baselines for a service, or all services when
// serviceName is empty.
func (r *BaselineRepository) List(ctx context.Context, serviceName string) ([]domain.CostBaseline, error) {
	query := `
		SELECT service_name, endpoint, time_window, p50, p95, p99, sample_count, last_updated
		FROM cost_baselines
	`
	var args []interface{}
	if serviceName != "" {
		query += ` WHERE service_name = $1`
		args = append(args, serviceName)
	}
	query += ` ORDER BY service_name, endpoint, time_window`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list baselines: %w", err)
	}
	defer rows.Close()

	var baselines []domain.CostBaseline
	for rows.Next() {
		var b domain.CostBaseline
		if err := rows.Scan(
			&b.ServiceName,
			&b.Endpoint,
			&b.Window,
			&b.P50,
			&b.P95,
			&b.P99,
			&b.SampleCount,
			&b.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		baselines = append(baselines, b)
	}

	return baselines, rows.Err()
}
