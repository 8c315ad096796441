package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/use-lumina/lumina/internal/domain"
	"github.com/use-lumina/lumina/internal/pkg/database"
	apperrors "github.com/use-lumina/lumina/internal/pkg/errors"
)

// maxCostSamples caps the number of cost observations fetched per endpoint
// for a baseline computation.
const maxCostSamples = 10000

// TraceRepository handles trace data operations in PostgreSQL
type TraceRepository struct {
	db *database.PostgresDB
}

// NewTraceRepository creates a new trace repository
func NewTraceRepository(db *database.PostgresDB) *TraceRepository {
	return &TraceRepository{db: db}
}

// InsertBatch upserts a batch of traces. Replaying a span with the same
// (trace_id, span_id) updates its mutable fields instead of duplicating it.
func (r *TraceRepository) InsertBatch(ctx context.Context, traces []domain.Trace) error {
	if len(traces) == 0 {
		return nil
	}

	query := `
		INSERT INTO traces (
			trace_id, span_id, parent_span_id, customer_id, ts,
			service_name, endpoint, environment, provider, model,
			prompt, response, response_hash,
			prompt_tokens, completion_tokens, total_tokens,
			latency_ms, cost_usd, status, error_message, metadata, tags
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (trace_id, span_id) DO UPDATE SET
			parent_span_id = EXCLUDED.parent_span_id,
			customer_id = EXCLUDED.customer_id,
			ts = EXCLUDED.ts,
			service_name = EXCLUDED.service_name,
			endpoint = EXCLUDED.endpoint,
			environment = EXCLUDED.environment,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			prompt = EXCLUDED.prompt,
			response = EXCLUDED.response,
			response_hash = EXCLUDED.response_hash,
			prompt_tokens = EXCLUDED.prompt_tokens,
			completion_tokens = EXCLUDED.completion_tokens,
			total_tokens = EXCLUDED.total_tokens,
			latency_ms = EXCLUDED.latency_ms,
			cost_usd = EXCLUDED.cost_usd,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			metadata = EXCLUDED.metadata,
			tags = EXCLUDED.tags
	`

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin trace insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, t := range traces {
		metadata := t.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		tags := t.Tags
		if tags == nil {
			tags = []string{}
		}
		if _, err := tx.Exec(ctx, query,
			t.TraceID,
			t.SpanID,
			t.ParentSpanID,
			t.CustomerID,
			t.Timestamp,
			t.ServiceName,
			t.Endpoint,
			t.Environment,
			t.Provider,
			t.Model,
			t.Prompt,
			t.Response,
			t.ResponseHash,
			t.PromptTokens,
			t.CompletionTokens,
			t.TotalTokens,
			t.LatencyMs,
			t.CostUSD,
			t.Status,
			t.ErrorMessage,
			metadata,
			tags,
		); err != nil {
			return fmt.Errorf("failed to upsert trace %s/%s: %w", t.TraceID, t.SpanID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit trace insert: %w", err)
	}

	return nil
}

const traceColumns = `
	trace_id, span_id, parent_span_id, customer_id, ts,
	service_name, endpoint, environment, provider, model,
	prompt, response, response_hash,
	prompt_tokens, completion_tokens, total_tokens,
	latency_ms, cost_usd, status, error_message, metadata, tags,
	semantic_score, created_at
`

// buildFilter translates a trace filter into a WHERE clause and args
func buildFilter(filter domain.TraceFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.CustomerID != nil {
		add("customer_id = $%d", *filter.CustomerID)
	}
	if filter.ServiceName != nil {
		add("service_name = $%d", *filter.ServiceName)
	}
	if filter.Endpoint != nil {
		add("endpoint = $%d", *filter.Endpoint)
	}
	if filter.Environment != nil {
		add("environment = $%d", *filter.Environment)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.Model != nil {
		add("model = $%d", *filter.Model)
	}
	if filter.FromTime != nil {
		add("ts >= $%d", *filter.FromTime)
	}
	if filter.ToTime != nil {
		add("ts <= $%d", *filter.ToTime)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Query retrieves traces matching the filter, newest first
func (r *TraceRepository) Query(ctx context.Context, filter domain.TraceFilter, limit, offset int) ([]domain.Trace, error) {
	where, args := buildFilter(filter)

	query := fmt.Sprintf(
		`SELECT %s FROM traces%s ORDER BY ts DESC LIMIT $%d OFFSET $%d`,
		traceColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var traces []domain.Trace
	for rows.Next() {
		var t domain.Trace
		if err := rows.Scan(
			&t.TraceID,
			&t.SpanID,
			&t.ParentSpanID,
			&t.CustomerID,
			&t.Timestamp,
			&t.ServiceName,
			&t.Endpoint,
			&t.Environment,
			&t.Provider,
			&t.Model,
			&t.Prompt,
			&t.Response,
			&t.ResponseHash,
			&t.PromptTokens,
			&t.CompletionTokens,
			&t.TotalTokens,
			&t.LatencyMs,
			&t.CostUSD,
			&t.Status,
			&t.ErrorMessage,
			&t.Metadata,
			&t.Tags,
			&t.SemanticScore,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		traces = append(traces, t)
	}

	return traces, rows.Err()
}

// Count returns the number of traces matching the filter
func (r *TraceRepository) Count(ctx context.Context, filter domain.TraceFilter) (int64, error) {
	where, args := buildFilter(filter)

	var count int64
	err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM traces"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count traces: %w", err)
	}
	return count, nil
}

// GetBySpan retrieves a single span by its identity
func (r *TraceRepository) GetBySpan(ctx context.Context, traceID, spanID string) (*domain.Trace, error) {
	query := fmt.Sprintf(`SELECT %s FROM traces WHERE trace_id = $1 AND span_id = $2`, traceColumns)

	var t domain.Trace
	err := r.db.Pool.QueryRow(ctx, query, traceID, spanID).Scan(
		&t.TraceID,
		&t.SpanID,
		&t.ParentSpanID,
		&t.CustomerID,
		&t.Timestamp,
		&t.ServiceName,
		&t.Endpoint,
		&t.Environment,
		&t.Provider,
		&t.Model,
		&t.Prompt,
		&t.Response,
		&t.ResponseHash,
		&t.PromptTokens,
		&t.CompletionTokens,
		&t.TotalTokens,
		&t.LatencyMs,
		&t.CostUSD,
		&t.Status,
		&t.ErrorMessage,
		&t.Metadata,
		&t.Tags,
		&t.SemanticScore,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("trace")
		}
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}

	return &t, nil
}

// Metrics computes aggregate metrics over the traces matching the filter
func (r *TraceRepository) Metrics(ctx context.Context, filter domain.TraceFilter) (*domain.TraceMetrics, error) {
	where, args := buildFilter(filter)

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'error'),
			COALESCE(SUM(cost_usd), 0),
			COALESCE(SUM(total_tokens), 0),
			COALESCE(AVG(latency_ms), 0)
		FROM traces` + where

	var m domain.TraceMetrics
	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&m.TraceCount,
		&m.ErrorCount,
		&m.TotalCostUSD,
		&m.TotalTokens,
		&m.AvgLatencyMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute trace metrics: %w", err)
	}

	if m.TraceCount > 0 {
		m.ErrorRate = float64(m.ErrorCount) / float64(m.TraceCount)
	}

	return &m, nil
}

// costSamplesQuery feeds baseline percentiles. Only successful traces
// count: error traces carry zero or partial cost and would drag the
// percentiles down.
const costSamplesQuery = `
	SELECT cost_usd, ts
	FROM traces
	WHERE service_name = $1 AND endpoint = $2 AND status = 'success' AND ts >= $3
	ORDER BY ts DESC
	LIMIT $4
`

// GetCostSamples returns recent cost observations for one endpoint within
// the window, newest first, capped at maxCostSamples.
func (r *TraceRepository) GetCostSamples(ctx context.Context, serviceName, endpoint string, since time.Time, limit int) ([]domain.CostSample, error) {
	if limit <= 0 || limit > maxCostSamples {
		limit = maxCostSamples
	}

	rows, err := r.db.Pool.Query(ctx, costSamplesQuery, serviceName, endpoint, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost samples: %w", err)
	}
	defer rows.Close()

	var samples []domain.CostSample
	for rows.Next() {
		var s domain.CostSample
		if err := rows.Scan(&s.CostUSD, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan cost sample: %w", err)
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// ListEndpoints returns the distinct (service, endpoint) pairs that received
// traffic since the given time.
func (r *TraceRepository) ListEndpoints(ctx context.Context, since time.Time) ([]domain.EndpointKey, error) {
	query := `
		SELECT DISTINCT service_name, endpoint
		FROM traces
		WHERE ts >= $1
		ORDER BY service_name, endpoint
	`

	rows, err := r.db.Pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []domain.EndpointKey
	for rows.Next() {
		var e domain.EndpointKey
		if err := rows.Scan(&e.ServiceName, &e.Endpoint); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}
		endpoints = append(endpoints, e)
	}

	return endpoints, rows.Err()
}

// GetRecentResponses returns recent successful responses for one endpoint,
// newest first. Used as the comparison set for quality checks.
func (r *TraceRepository) GetRecentResponses(ctx context.Context, serviceName, endpoint string, limit int) ([]domain.ResponseSample, error) {
	query := `
		SELECT response, response_hash
		FROM traces
		WHERE service_name = $1 AND endpoint = $2 AND status = 'success' AND response_hash <> ''
		ORDER BY ts DESC
		LIMIT $3
	`

	rows, err := r.db.Pool.Query(ctx, query, serviceName, endpoint, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent responses: %w", err)
	}
	defer rows.Close()

	var samples []domain.ResponseSample
	for rows.Next() {
		var s domain.ResponseSample
		if err := rows.Scan(&s.Response, &s.ResponseHash); err != nil {
			return nil, fmt.Errorf("failed to scan response sample: %w", err)
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// UpdateSemanticScore records a semantic similarity score on a span
func (r *TraceRepository) UpdateSemanticScore(ctx context.Context, traceID, spanID string, score float64) error {
	query := `UPDATE traces SET semantic_score = $3 WHERE trace_id = $1 AND span_id = $2`

	if _, err := r.db.Pool.Exec(ctx, query, traceID, spanID, score); err != nil {
		return fmt.Errorf("failed to update semantic score: %w", err)
	}
	return nil
}

// DeleteOlderThan removes traces whose timestamp is before the cutoff and
// returns how many rows were removed.
func (r *TraceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM traces WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired traces: %w", err)
	}
	return tag.RowsAffected(), nil
}
