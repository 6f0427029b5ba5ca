package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"miniarima/internal/domain"
)

// SystemRepositoryPG implements domain.SystemRepository backed by PostgreSQL.
type SystemRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewSystemRepository creates a new SystemRepositoryPG.
func NewSystemRepository(pool *pgxpool.Pool) *SystemRepositoryPG {
	return &SystemRepositoryPG{pool: pool}
}

// Get returns a named system value and the time it was last written.
func (r *SystemRepositoryPG) Get(ctx context.Context, key string) (string, time.Time, error) {
	row := r.pool.QueryRow(ctx, `SELECT value, updated_at FROM system_state WHERE key = $1`, key)

	var (
		value     string
		updatedAt time.Time
	)
	if err := row.Scan(&value, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, domain.ErrNotFound
		}
		return "", time.Time{}, err
	}
	return value, updatedAt, nil
}

// Set upserts a named system value, stamping updated_at.
func (r *SystemRepositoryPG) Set(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO system_state (key, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
`, key, value)
	return err
}
