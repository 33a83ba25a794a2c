package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
)

// AlertRepo is the data access layer for alert lifecycle rows.
type AlertRepo struct {
	db *Database
}

func NewAlertRepo(db *Database) *AlertRepo {
	return &AlertRepo{db: db}
}

const alertColumns = `id, endpoint_id, alert_type, severity, title, message, is_active, triggered_at, resolved_at, trigger_data, created_at`

// UpsertAlert inserts a new alert or updates an existing one by id. The
// partial unique index on (endpoint_id, alert_type) WHERE is_active guarantees
// at most one active alert per endpoint and type.
func (r *AlertRepo) UpsertAlert(ctx context.Context, a *model.Alert) error {
	var triggerJSON any
	if a.TriggerData != nil {
		b, _ := json.Marshal(a.TriggerData)
		triggerJSON = string(b)
	}
	const q = `INSERT INTO alerts (id, endpoint_id, alert_type, severity, title, message, is_active, triggered_at, resolved_at, trigger_data, created_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	           ON CONFLICT (id) DO UPDATE SET
	               severity = EXCLUDED.severity,
	               title = EXCLUDED.title,
	               message = EXCLUDED.message,
	               is_active = EXCLUDED.is_active,
	               resolved_at = EXCLUDED.resolved_at,
	               trigger_data = EXCLUDED.trigger_data`
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.EndpointID, string(a.AlertType), string(a.Severity), a.Title, a.Message,
		a.IsActive, a.TriggeredAt, pgTimestamptz(a.ResolvedAt), triggerJSON, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert alert: %w", err)
	}
	return nil
}

// GetActiveAlert returns the single active alert for (endpoint, type) or nil.
func (r *AlertRepo) GetActiveAlert(ctx context.Context, endpointID int64, alertType model.AlertType) (*model.Alert, error) {
	q := `SELECT ` + alertColumns + `
	      FROM alerts
	      WHERE endpoint_id = $1 AND alert_type = $2 AND is_active
	      LIMIT 1`
	rows, err := r.db.QueryContext(ctx, q, endpointID, string(alertType))
	if err != nil {
		return nil, fmt.Errorf("get active alert: %w", err)
	}
	defer rows.Close()
	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return nil, nil
	}
	return &alerts[0], nil
}

// ListAlerts returns alert history for an endpoint (all endpoints when
// endpointID is 0), newest first. activeOnly restricts to unresolved alerts.
func (r *AlertRepo) ListAlerts(ctx context.Context, endpointID int64, activeOnly bool, limit int) ([]model.Alert, error) {
	q := `SELECT ` + alertColumns + ` FROM alerts WHERE ($1 = 0 OR endpoint_id = $1)`
	if activeOnly {
		q += ` AND is_active`
	}
	q += ` ORDER BY triggered_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, endpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func scanAlerts(rows *sql.Rows) ([]model.Alert, error) {
	var out []model.Alert
	for rows.Next() {
		var a model.Alert
		var alertType, severity string
		var resolvedAt pgtype.Timestamptz
		var triggerJSON sql.NullString
		if err := rows.Scan(&a.ID, &a.EndpointID, &alertType, &severity, &a.Title, &a.Message,
			&a.IsActive, &a.TriggeredAt, &resolvedAt, &triggerJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.AlertType = model.AlertType(alertType)
		a.Severity = model.Severity(severity)
		a.ResolvedAt = timePtr(resolvedAt)
		if triggerJSON.Valid && triggerJSON.String != "" {
			_ = json.Unmarshal([]byte(triggerJSON.String), &a.TriggerData)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return out, nil
}
