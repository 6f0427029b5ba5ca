package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"miniarima/internal/domain"
)

type stubAccountRepo struct {
	domain.AccountRepository

	account    *domain.Account
	getCalls   int
	setTiers   []domain.Tier
	setTierErr error
	verified   bool
}

func (r *stubAccountRepo) Get(_ context.Context, id int64) (*domain.Account, error) {
	r.getCalls++
	if r.account == nil || r.account.ID != id {
		return nil, domain.ErrNotFound
	}
	copied := *r.account
	return &copied, nil
}

func (r *stubAccountRepo) SetTier(_ context.Context, _ int64, tier domain.Tier, expiry *time.Time) error {
	if r.setTierErr != nil {
		return r.setTierErr
	}
	r.setTiers = append(r.setTiers, tier)
	r.account.Tier = tier
	r.account.TierExpiry = expiry
	return nil
}

func (r *stubAccountRepo) SetVerified(_ context.Context, _ int64, verified bool) error {
	r.verified = verified
	r.account.Verified = verified
	return nil
}

func newTestService(repo *stubAccountRepo) *Service {
	return NewService(repo, NewCache(16, time.Minute), zerolog.Nop())
}

func TestResolveServesFromCache(t *testing.T) {
	repo := &stubAccountRepo{account: &domain.Account{ID: 1, Verified: true}}
	svc := newTestService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Resolve(ctx, 1); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	if repo.getCalls != 1 {
		t.Fatalf("repo reads = %d, want 1", repo.getCalls)
	}
}

func TestResolveNormalizesExpiredTier(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	repo := &stubAccountRepo{account: &domain.Account{
		ID: 1, Tier: domain.TierPremium, TierExpiry: &past,
	}}
	svc := newTestService(repo)
	ctx := context.Background()

	account, err := svc.Resolve(ctx, 1)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if account.Tier != domain.TierFree || account.TierExpiry != nil {
		t.Fatalf("account not normalized: %+v", account)
	}
	if len(repo.setTiers) != 1 || repo.setTiers[0] != domain.TierFree {
		t.Fatalf("downgrade not persisted: %v", repo.setTiers)
	}

	// A second independent read observes the same result without another
	// downgrade write.
	svc.cache.Invalidate(1)
	account, err = svc.Resolve(ctx, 1)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if account.Tier != domain.TierFree {
		t.Fatalf("second read tier = %s", account.Tier)
	}
	if len(repo.setTiers) != 1 {
		t.Fatalf("normalization must be idempotent, writes = %d", len(repo.setTiers))
	}
}

func TestResolveFailsWhenDowngradeFails(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	repo := &stubAccountRepo{
		account:    &domain.Account{ID: 1, Tier: domain.TierMax, TierExpiry: &past},
		setTierErr: errors.New("db down"),
	}
	svc := newTestService(repo)

	if _, err := svc.Resolve(context.Background(), 1); err == nil {
		t.Fatal("resolve must fail when the downgrade cannot be persisted")
	}
	// Nothing may be cached for the failed normalization.
	if _, ok := svc.cache.Get(1); ok {
		t.Fatal("failed normalization must not populate the cache")
	}
}

func TestMutationInvalidatesCache(t *testing.T) {
	repo := &stubAccountRepo{account: &domain.Account{ID: 1}}
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Resolve(ctx, 1); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := svc.MarkVerified(ctx, 1); err != nil {
		t.Fatalf("mark verified: %v", err)
	}

	account, err := svc.Resolve(ctx, 1)
	if err != nil {
		t.Fatalf("resolve after mutation: %v", err)
	}
	if !account.Verified {
		t.Fatal("stale cached copy served after mutation")
	}
	if repo.getCalls != 2 {
		t.Fatalf("repo reads = %d, want 2", repo.getCalls)
	}
}

func TestResolveUnknownAccount(t *testing.T) {
	svc := newTestService(&stubAccountRepo{})
	if _, err := svc.Resolve(context.Background(), 42); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
