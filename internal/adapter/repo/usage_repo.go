package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"miniarima/internal/domain"
)

// UsageRepositoryPG implements domain.UsageRepository backed by PostgreSQL.
// A row is one accepted request; daily limits are enforced by counting rows
// for the caller's calendar day, so no reset job is needed.
type UsageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUsageRepository creates a new UsageRepositoryPG.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepositoryPG {
	return &UsageRepositoryPG{pool: pool}
}

// CountToday returns the number of accepted requests of one kind for the
// given calendar day. The day must already be resolved in the reporting
// timezone by the caller.
func (r *UsageRepositoryPG) CountToday(ctx context.Context, userID int64, day time.Time, kind domain.UsageKind) (int, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM usage_records WHERE user_id = $1 AND day = $2 AND kind = $3`,
		userID, day.Format("2006-01-02"), string(kind))

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Record appends one accepted request. Callers record only after the
// downstream provider call succeeded, so failed calls never consume quota.
func (r *UsageRepositoryPG) Record(ctx context.Context, userID int64, day time.Time, model string, kind domain.UsageKind) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO usage_records (user_id, day, model, kind) VALUES ($1, $2, $3, $4)`,
		userID, day.Format("2006-01-02"), model, string(kind))
	return err
}
