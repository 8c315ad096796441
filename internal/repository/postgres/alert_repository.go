package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/pkg/database"
	apperrors "github.com/use-lumina/lumina/internal/pkg/errors"
)

// AlertRepository handles alert persistence in PostgreSQL
type AlertRepository struct {
	db *database.PostgresDB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.PostgresDB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create persists an alert. The unique key on (trace_id, span_id,
// alert_type) makes re-analysis of the same span a no-op; the returned
// bool reports whether a new row was written.
func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) (bool, error) {
	query := `
		INSERT INTO alerts (
			id, trace_id, span_id, service_name, endpoint,
			alert_type, severity, message,
			baseline_value, current_value, threshold, increase_percent,
			status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (trace_id, span_id, alert_type) DO NOTHING
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		alert.ID,
		alert.TraceID,
		alert.SpanID,
		alert.ServiceName,
		alert.Endpoint,
		alert.Type,
		alert.Severity,
		alert.Message,
		alert.BaselineValue,
		alert.CurrentValue,
		alert.Threshold,
		alert.IncreasePct,
		alert.Status,
		alert.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create alert: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

const alertColumns = `
	id, trace_id, span_id, service_name, endpoint,
	alert_type, severity, message,
	baseline_value, current_value, threshold, increase_percent,
	status, created_at, sent_at, acknowledged_at, resolved_at
`

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var a domain.Alert
	err := row.Scan(
		&a.ID,
		&a.TraceID,
		&a.SpanID,
		&a.ServiceName,
		&a.Endpoint,
		&a.Type,
		&a.Severity,
		&a.Message,
		&a.BaselineValue,
		&a.CurrentValue,
		&a.Threshold,
		&a.IncreasePct,
		&a.Status,
		&a.CreatedAt,
		&a.SentAt,
		&a.AcknowledgedAt,
		&a.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID retrieves an alert by its identifier
func (r *AlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	query := fmt.Sprintf(`SELECT %s FROM alerts WHERE id = $1`, alertColumns)

	alert, err := scanAlert(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("alert")
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return alert, nil
}

// List retrieves alerts matching the filter, newest first
func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter, limit, offset int) ([]domain.Alert, int64, error) {
	var conditions []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.Severity != nil {
		add("severity = $%d", *filter.Severity)
	}
	if filter.Type != nil {
		add("alert_type = $%d", *filter.Type)
	}
	if filter.ServiceName != nil {
		add("service_name = $%d", *filter.ServiceName)
	}
	if filter.TraceID != nil {
		add("trace_id = $%d", *filter.TraceID)
	}
	if filter.FromTime != nil {
		add("created_at >= $%d", *filter.FromTime)
	}
	if filter.ToTime != nil {
		add("created_at <= $%d", *filter.ToTime)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM alerts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM alerts%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		alertColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}

	return alerts, total, rows.Err()
}

// ListPending retrieves alerts that have not been dispatched yet
func (r *AlertRepository) ListPending(ctx context.Context, limit int) ([]domain.Alert, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM alerts WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		alertColumns,
	)

	rows, err := r.db.Pool.Query(ctx, query, domain.AlertStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}

	return alerts, rows.Err()
}

// MarkSent marks an alert as delivered. Only pending alerts move; the
// update is a no-op for alerts already past that state.
func (r *AlertRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE alerts SET status = $2, sent_at = $3
		WHERE id = $1 AND status = $4
	`

	if _, err := r.db.Pool.Exec(ctx, query, id, domain.AlertStatusSent, at, domain.AlertStatusPending); err != nil {
		return fmt.Errorf("failed to mark alert sent: %w", err)
	}
	return nil
}

// Acknowledge marks an alert as acknowledged. Acknowledging an already
// acknowledged or resolved alert is a no-op.
func (r *AlertRepository) Acknowledge(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Alert, error) {
	query := `
		UPDATE alerts SET status = $2, acknowledged_at = $3
		WHERE id = $1 AND status IN ($4, $5)
	`

	if _, err := r.db.Pool.Exec(ctx, query, id,
		domain.AlertStatusAcknowledged, at,
		domain.AlertStatusPending, domain.AlertStatusSent,
	); err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	return r.GetByID(ctx, id)
}

// Resolve marks an alert as resolved. Resolving an already resolved alert
// is a no-op.
func (r *AlertRepository) Resolve(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Alert, error) {
	query := `
		UPDATE alerts SET status = $2, resolved_at = $3
		WHERE id = $1 AND status <> $2
	`

	if _, err := r.db.Pool.Exec(ctx, query, id, domain.AlertStatusResolved, at); err != nil {
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}

	return r.GetByID(ctx, id)
}
