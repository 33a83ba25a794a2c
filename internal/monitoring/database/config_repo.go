package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
)

// ConfigRepo is the data access layer for system_config tunables.
type ConfigRepo struct {
	db *Database
}

func NewConfigRepo(db *Database) *ConfigRepo {
	return &ConfigRepo{db: db}
}

// GetConfig returns the raw value for key; found is false when the row does
// not exist.
func (r *ConfigRepo) GetConfig(ctx context.Context, key string) (value string, found bool, err error) {
	const q = `SELECT value FROM system_config WHERE key = $1`
	if err := r.db.QueryRowContext(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get config %s: %w", key, err)
	}
	return value, true, nil
}

// SetConfig creates or replaces a config row.
func (r *ConfigRepo) SetConfig(ctx context.Context, c *model.SystemConfig) error {
	const q = `INSERT INTO system_config (key, value, value_type, description, is_system, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $6)
	           ON CONFLICT (key) DO UPDATE SET
	               value = EXCLUDED.value,
	               value_type = EXCLUDED.value_type,
	               description = EXCLUDED.description,
	               updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q, c.Key, c.Value, c.ValueType, c.Description, c.IsSystem, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set config %s: %w", c.Key, err)
	}
	return nil
}

// SetConfigIfAbsent seeds a default without clobbering operator overrides.
func (r *ConfigRepo) SetConfigIfAbsent(ctx context.Context, c *model.SystemConfig) error {
	const q = `INSERT INTO system_config (key, value, value_type, description, is_system, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $6)
	           ON CONFLICT (key) DO NOTHING`
	_, err := r.db.ExecContext(ctx, q, c.Key, c.Value, c.ValueType, c.Description, c.IsSystem, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("seed config %s: %w", c.Key, err)
	}
	return nil
}

// ListConfig returns all config rows ordered by key.
func (r *ConfigRepo) ListConfig(ctx context.Context) ([]model.SystemConfig, error) {
	const q = `SELECT key, value, value_type, description, is_system, created_at, updated_at
	           FROM system_config ORDER BY key`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	defer rows.Close()
	var out []model.SystemConfig
	for rows.Next() {
		var c model.SystemConfig
		if err := rows.Scan(&c.Key, &c.Value, &c.ValueType, &c.Description, &c.IsSystem, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
