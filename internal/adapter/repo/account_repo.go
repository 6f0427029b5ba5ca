package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"miniarima/internal/domain"
)

// AccountRepositoryPG implements domain.AccountRepository backed by PostgreSQL.
type AccountRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepositoryPG.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepositoryPG {
	return &AccountRepositoryPG{pool: pool}
}

const accountColumns = `id, handle, tier, tier_expiry, verified, blocked, bonus_granted,
       instruction, temperature, last_chat_model, last_image_model, created_at`

// Get fetches an account by user id.
func (r *AccountRepositoryPG) Get(ctx context.Context, id int64) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByHandle fetches an account by its lower-cased display handle.
func (r *AccountRepositoryPG) GetByHandle(ctx context.Context, handle string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE handle = $1`,
		domain.NormalizeHandle(handle))
	return scanAccount(row)
}

// Upsert inserts an account on first contact or refreshes its handle.
func (r *AccountRepositoryPG) Upsert(ctx context.Context, id int64, handle string) (*domain.Account, error) {
	query := `
INSERT INTO accounts (id, handle)
VALUES ($1, NULLIF($2, ''))
ON CONFLICT (id) DO UPDATE
SET handle = COALESCE(NULLIF(EXCLUDED.handle, ''), accounts.handle)
RETURNING ` + accountColumns + `;
`
	row := r.pool.QueryRow(ctx, query, id, domain.NormalizeHandle(handle))
	return scanAccount(row)
}

// SetTier updates the subscription tier together with its expiry.
func (r *AccountRepositoryPG) SetTier(ctx context.Context, id int64, tier domain.Tier, expiry *time.Time) error {
	return r.exec(ctx, `UPDATE accounts SET tier = $2, tier_expiry = $3 WHERE id = $1`, id, int(tier), expiry)
}

func (r *AccountRepositoryPG) SetVerified(ctx context.Context, id int64, verified bool) error {
	return r.exec(ctx, `UPDATE accounts SET verified = $2 WHERE id = $1`, id, verified)
}

func (r *AccountRepositoryPG) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	return r.exec(ctx, `UPDATE accounts SET blocked = $2 WHERE id = $1`, id, blocked)
}

func (r *AccountRepositoryPG) SetBonus(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE accounts SET bonus_granted = TRUE WHERE id = $1`, id)
}

func (r *AccountRepositoryPG) SetLastChatModel(ctx context.Context, id int64, model string) error {
	return r.exec(ctx, `UPDATE accounts SET last_chat_model = $2 WHERE id = $1`, id, model)
}

func (r *AccountRepositoryPG) SetLastImageModel(ctx context.Context, id int64, model string) error {
	return r.exec(ctx, `UPDATE accounts SET last_image_model = $2 WHERE id = $1`, id, model)
}

// SetInstruction stores or clears (nil) the custom system instruction.
func (r *AccountRepositoryPG) SetInstruction(ctx context.Context, id int64, instruction *string) error {
	return r.exec(ctx, `UPDATE accounts SET instruction = $2 WHERE id = $1`, id, instruction)
}

// SetTemperature stores or clears (nil) the sampling temperature override.
func (r *AccountRepositoryPG) SetTemperature(ctx context.Context, id int64, temperature *float64) error {
	return r.exec(ctx, `UPDATE accounts SET temperature = $2 WHERE id = $1`, id, temperature)
}

// TierCounts returns the number of accounts per subscription tier.
func (r *AccountRepositoryPG) TierCounts(ctx context.Context) (map[domain.Tier]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT tier, COUNT(*) FROM accounts GROUP BY tier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[domain.Tier]int{
		domain.TierFree:     0,
		domain.TierStandard: 0,
		domain.TierPremium:  0,
		domain.TierMax:      0,
	}
	for rows.Next() {
		var tier, count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, err
		}
		counts[domain.Tier(tier)] = count
	}
	return counts, rows.Err()
}

func (r *AccountRepositoryPG) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a           domain.Account
		handle      *string
		tier        int
		instruction *string
		lastChat    *string
		lastImage   *string
	)
	if err := row.Scan(&a.ID, &handle, &tier, &a.TierExpiry, &a.Verified, &a.Blocked,
		&a.BonusGranted, &instruction, &a.Temperature, &lastChat, &lastImage, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	a.Tier = domain.Tier(tier)
	if handle != nil {
		a.Handle = *handle
	}
	if instruction != nil {
		a.Instruction = *instruction
	}
	if lastChat != nil {
		a.LastChatModel = *lastChat
	}
	if lastImage != nil {
		a.LastImageModel = *lastImage
	}
	return &a, nil
}
