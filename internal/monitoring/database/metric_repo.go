package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
)

// MetricRepo is the data access layer for uptime rollups.
type MetricRepo struct {
	db *Database
}

func NewMetricRepo(db *Database) *MetricRepo {
	return &MetricRepo{db: db}
}

// UpsertUptimeMetric replaces the rollup for (endpoint, period type, period
// start); recomputation of an open period overwrites instead of duplicating.
func (r *MetricRepo) UpsertUptimeMetric(ctx context.Context, m *model.UptimeMetric) error {
	const q = `INSERT INTO uptime_metrics (endpoint_id, period_start, period_end, period_type,
	               total_checks, successful_checks, uptime_percentage,
	               avg_response_time_ms, min_response_time_ms, max_response_time_ms,
	               p95_response_time_ms, p99_response_time_ms, created_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	           ON CONFLICT (endpoint_id, period_type, period_start) DO UPDATE SET
	               period_end = EXCLUDED.period_end,
	               total_checks = EXCLUDED.total_checks,
	               successful_checks = EXCLUDED.successful_checks,
	               uptime_percentage = EXCLUDED.uptime_percentage,
	               avg_response_time_ms = EXCLUDED.avg_response_time_ms,
	               min_response_time_ms = EXCLUDED.min_response_time_ms,
	               max_response_time_ms = EXCLUDED.max_response_time_ms,
	               p95_response_time_ms = EXCLUDED.p95_response_time_ms,
	               p99_response_time_ms = EXCLUDED.p99_response_time_ms`
	_, err := r.db.ExecContext(ctx, q,
		m.EndpointID, m.PeriodStart, m.PeriodEnd, string(m.PeriodType),
		m.TotalChecks, m.SuccessfulChecks, pgFloat8(m.UptimePercentage),
		pgFloat8(m.AvgResponseTimeMs), pgFloat8(m.MinResponseTimeMs), pgFloat8(m.MaxResponseTimeMs),
		pgFloat8(m.P95ResponseTimeMs), pgFloat8(m.P99ResponseTimeMs), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert uptime metric: %w", err)
	}
	return nil
}

// ListUptimeMetrics returns stored rollups of one period type for an endpoint,
// newest first.
func (r *MetricRepo) ListUptimeMetrics(ctx context.Context, endpointID int64, periodType model.PeriodType, limit int) ([]model.UptimeMetric, error) {
	const q = `SELECT endpoint_id, period_start, period_end, period_type,
	               total_checks, successful_checks, uptime_percentage,
	               avg_response_time_ms, min_response_time_ms, max_response_time_ms,
	               p95_response_time_ms, p99_response_time_ms, created_at
	           FROM uptime_metrics
	           WHERE endpoint_id = $1 AND period_type = $2
	           ORDER BY period_start DESC
	           LIMIT $3`
	rows, err := r.db.QueryContext(ctx, q, endpointID, string(periodType), limit)
	if err != nil {
		return nil, fmt.Errorf("list uptime metrics: %w", err)
	}
	defer rows.Close()
	return scanMetrics(rows)
}

// GetUptimeMetric fetches one rollup or nil when none is stored yet.
func (r *MetricRepo) GetUptimeMetric(ctx context.Context, endpointID int64, periodType model.PeriodType, periodStart time.Time) (*model.UptimeMetric, error) {
	const q = `SELECT endpoint_id, period_start, period_end, period_type,
	               total_checks, successful_checks, uptime_percentage,
	               avg_response_time_ms, min_response_time_ms, max_response_time_ms,
	               p95_response_time_ms, p99_response_time_ms, created_at
	           FROM uptime_metrics
	           WHERE endpoint_id = $1 AND period_type = $2 AND period_start = $3`
	rows, err := r.db.QueryContext(ctx, q, endpointID, string(periodType), periodStart)
	if err != nil {
		return nil, fmt.Errorf("get uptime metric: %w", err)
	}
	defer rows.Close()
	metrics, err := scanMetrics(rows)
	if err != nil {
		return nil, err
	}
	if len(metrics) == 0 {
		return nil, nil
	}
	return &metrics[0], nil
}

func scanMetrics(rows *sql.Rows) ([]model.UptimeMetric, error) {
	var out []model.UptimeMetric
	for rows.Next() {
		var m model.UptimeMetric
		var periodType string
		var uptime, avg, min, max, p95, p99 pgtype.Float8
		if err := rows.Scan(&m.EndpointID, &m.PeriodStart, &m.PeriodEnd, &periodType,
			&m.TotalChecks, &m.SuccessfulChecks, &uptime,
			&avg, &min, &max, &p95, &p99, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan uptime metric: %w", err)
		}
		m.PeriodType = model.PeriodType(periodType)
		m.UptimePercentage = float8Ptr(uptime)
		m.AvgResponseTimeMs = float8Ptr(avg)
		m.MinResponseTimeMs = float8Ptr(min)
		m.MaxResponseTimeMs = float8Ptr(max)
		m.P95ResponseTimeMs = float8Ptr(p95)
		m.P99ResponseTimeMs = float8Ptr(p99)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating uptime metrics: %w", err)
	}
	return out, nil
}
