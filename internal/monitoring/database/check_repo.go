package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
)

// CheckRepo is the data access layer for raw health check rows.
type CheckRepo struct {
	db *Database
}

func NewCheckRepo(db *Database) *CheckRepo {
	return &CheckRepo{db: db}
}

const checkColumns = `id, endpoint_id, checked_at, status_code, response_time_ms, is_successful,
	error_type, error_message, dns_lookup_time_ms, tcp_connect_time_ms, tls_handshake_time_ms,
	response_size_bytes, response_headers`

// SaveCheckResult inserts one probe attempt. Rows are never updated.
func (r *CheckRepo) SaveCheckResult(ctx context.Context, hc *model.HealthCheck) error {
	var headersJSON any
	if hc.ResponseHeaders != nil {
		b, _ := json.Marshal(hc.ResponseHeaders)
		headersJSON = string(b)
	}
	var errType any
	if hc.ErrorType != "" {
		errType = string(hc.ErrorType)
	}
	const q = `INSERT INTO health_checks (id, endpoint_id, checked_at, status_code, response_time_ms, is_successful,
	               error_type, error_message, dns_lookup_time_ms, tcp_connect_time_ms, tls_handshake_time_ms,
	               response_size_bytes, response_headers)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(ctx, q,
		hc.ID, hc.EndpointID, hc.CheckedAt,
		pgInt4(hc.StatusCode), pgFloat8(hc.ResponseTimeMs), hc.IsSuccessful,
		errType, nullIfEmpty(hc.ErrorMessage),
		pgFloat8(hc.DNSLookupTimeMs), pgFloat8(hc.TCPConnectTimeMs), pgFloat8(hc.TLSHandshakeTimeMs),
		pgInt8(hc.ResponseSizeBytes), headersJSON)
	if err != nil {
		return fmt.Errorf("save check result: %w", err)
	}
	return nil
}

// LoadChecksInRange returns checks with checked_at in [start, end), oldest first.
func (r *CheckRepo) LoadChecksInRange(ctx context.Context, endpointID int64, start, end time.Time) ([]model.HealthCheck, error) {
	q := `SELECT ` + checkColumns + `
	      FROM health_checks
	      WHERE endpoint_id = $1 AND checked_at >= $2 AND checked_at < $3
	      ORDER BY checked_at ASC`
	rows, err := r.db.QueryContext(ctx, q, endpointID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load checks in range: %w", err)
	}
	defer rows.Close()
	return scanChecks(rows)
}

// LoadRecentChecks returns the newest n checks, newest first.
func (r *CheckRepo) LoadRecentChecks(ctx context.Context, endpointID int64, n int) ([]model.HealthCheck, error) {
	q := `SELECT ` + checkColumns + `
	      FROM health_checks
	      WHERE endpoint_id = $1
	      ORDER BY checked_at DESC
	      LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, endpointID, n)
	if err != nil {
		return nil, fmt.Errorf("load recent checks: %w", err)
	}
	defer rows.Close()
	return scanChecks(rows)
}

// LatestCheck returns the most recent check or nil when none exists.
func (r *CheckRepo) LatestCheck(ctx context.Context, endpointID int64) (*model.HealthCheck, error) {
	checks, err := r.LoadRecentChecks(ctx, endpointID, 1)
	if err != nil {
		return nil, err
	}
	if len(checks) == 0 {
		return nil, nil
	}
	return &checks[0], nil
}

func scanChecks(rows *sql.Rows) ([]model.HealthCheck, error) {
	var out []model.HealthCheck
	for rows.Next() {
		var hc model.HealthCheck
		var statusCode pgtype.Int4
		var respTime, dnsTime, tcpTime, tlsTime pgtype.Float8
		var respSize pgtype.Int8
		var errType, errMsg, headersJSON sql.NullString
		if err := rows.Scan(&hc.ID, &hc.EndpointID, &hc.CheckedAt, &statusCode, &respTime, &hc.IsSuccessful,
			&errType, &errMsg, &dnsTime, &tcpTime, &tlsTime, &respSize, &headersJSON); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		hc.StatusCode = int4Ptr(statusCode)
		hc.ResponseTimeMs = float8Ptr(respTime)
		hc.DNSLookupTimeMs = float8Ptr(dnsTime)
		hc.TCPConnectTimeMs = float8Ptr(tcpTime)
		hc.TLSHandshakeTimeMs = float8Ptr(tlsTime)
		hc.ResponseSizeBytes = int8Ptr(respSize)
		hc.ErrorType = model.ErrorType(errType.String)
		hc.ErrorMessage = errMsg.String
		if headersJSON.Valid && headersJSON.String != "" {
			_ = json.Unmarshal([]byte(headersJSON.String), &hc.ResponseHeaders)
		}
		out = append(out, hc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checks: %w", err)
	}
	return out, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
