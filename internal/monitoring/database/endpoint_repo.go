package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// EndpointRepo is the data access layer for monitored endpoints.
type EndpointRepo struct {
	db *Database
}

func NewEndpointRepo(db *Database) *EndpointRepo {
	return &EndpointRepo{db: db}
}

const endpointColumns = `id, name, url, check_interval, is_active, expected_status_code, timeout_seconds, description, tags, created_at, updated_at`

func (r *EndpointRepo) CreateEndpoint(ctx context.Context, c *model.EndpointCreate) (*model.Endpoint, error) {
	tagsJSON, _ := json.Marshal(c.Tags)
	now := time.Now().UTC()
	const q = `INSERT INTO endpoints (name, url, check_interval, is_active, expected_status_code, timeout_seconds, description, tags, created_at, updated_at)
	           VALUES ($1, $2, $3, TRUE, $4, $5, $6, $7, $8, $8)
	           RETURNING id`
	var id int64
	if err := r.db.QueryRowContext(ctx, q, c.Name, c.URL, c.CheckInterval, c.ExpectedStatusCode, c.TimeoutSeconds, c.Description, string(tagsJSON), now).Scan(&id); err != nil {
		return nil, fmt.Errorf("create endpoint: %w", err)
	}
	return &model.Endpoint{
		ID:                 id,
		Name:               c.Name,
		URL:                c.URL,
		CheckInterval:      c.CheckInterval,
		IsActive:           true,
		ExpectedStatusCode: c.ExpectedStatusCode,
		TimeoutSeconds:     c.TimeoutSeconds,
		Description:        c.Description,
		Tags:               c.Tags,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (r *EndpointRepo) GetEndpoint(ctx context.Context, id int64) (*model.Endpoint, error) {
	q := `SELECT ` + endpointColumns + ` FROM endpoints WHERE id = $1`
	row := r.db.QueryRowContext(ctx, q, id)
	ep, err := scanEndpoint(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get endpoint: %w", err)
	}
	return ep, nil
}

func (r *EndpointRepo) ListEndpoints(ctx context.Context) ([]model.Endpoint, error) {
	return r.listEndpoints(ctx, `SELECT `+endpointColumns+` FROM endpoints ORDER BY id`)
}

// ListActiveEndpoints returns only endpoints currently in scope for scheduling.
func (r *EndpointRepo) ListActiveEndpoints(ctx context.Context) ([]model.Endpoint, error) {
	return r.listEndpoints(ctx, `SELECT `+endpointColumns+` FROM endpoints WHERE is_active ORDER BY id`)
}

func (r *EndpointRepo) listEndpoints(ctx context.Context, q string) ([]model.Endpoint, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()
	var out []model.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		out = append(out, *ep)
	}
	return out, rows.Err()
}

func (r *EndpointRepo) UpdateEndpoint(ctx context.Context, ep *model.Endpoint) error {
	tagsJSON, _ := json.Marshal(ep.Tags)
	const q = `UPDATE endpoints
	           SET name=$2, url=$3, check_interval=$4, is_active=$5, expected_status_code=$6,
	               timeout_seconds=$7, description=$8, tags=$9, updated_at=$10
	           WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, ep.ID, ep.Name, ep.URL, ep.CheckInterval, ep.IsActive,
		ep.ExpectedStatusCode, ep.TimeoutSeconds, ep.Description, string(tagsJSON), ep.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update endpoint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *EndpointRepo) DeleteEndpoint(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM endpoints WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(row rowScanner) (*model.Endpoint, error) {
	var ep model.Endpoint
	var tagsJSON string
	if err := row.Scan(&ep.ID, &ep.Name, &ep.URL, &ep.CheckInterval, &ep.IsActive,
		&ep.ExpectedStatusCode, &ep.TimeoutSeconds, &ep.Description, &tagsJSON,
		&ep.CreatedAt, &ep.UpdatedAt); err != nil {
		return nil, err
	}
	if tagsJSON != "" {
		_ = json.Unmarshal([]byte(tagsJSON), &ep.Tags)
	}
	return &ep, nil
}
