package infra

import (
	"testing"
	"time"

	"miniarima/internal/domain"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PROVIDER_API_KEY", "test-key")
	t.Setenv("ADMIN_IDS", "100, 200")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DefaultTemperature != 0.7 {
		t.Fatalf("DefaultTemperature = %v", cfg.DefaultTemperature)
	}
	if cfg.FreshnessWindow != 10*time.Minute {
		t.Fatalf("FreshnessWindow = %v", cfg.FreshnessWindow)
	}
	if cfg.Limits[domain.TierFree].Daily != 3 || cfg.Limits[domain.TierMax].Enhanced != 5 {
		t.Fatalf("limit table mismatch: %+v", cfg.Limits)
	}
	if cfg.BonusDaily != 7 {
		t.Fatalf("BonusDaily = %d", cfg.BonusDaily)
	}
	if len(cfg.Participants) == 0 || cfg.Arbiter == "" {
		t.Fatal("enhanced-mode roster must have defaults")
	}

	// Midnight in the reporting zone is 21:00 UTC.
	_, offset := time.Now().In(cfg.ReportLocation).Zone()
	if offset != 3*60*60 {
		t.Fatalf("ReportLocation offset = %d, want +3h", offset)
	}
}

func TestLoadConfigRequiredVariables(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{name: "database url", unset: "DATABASE_URL"},
		{name: "provider api key", unset: "PROVIDER_API_KEY"},
		{name: "admin ids", unset: "ADMIN_IDS"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.unset, "")
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("LoadConfig must fail without %s", tc.unset)
			}
		})
	}
}

func TestLoadConfigRejectsMalformedAdminIDs(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_IDS", "100,abc")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig must reject non-numeric admin ids")
	}
}

func TestIsAdmin(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.IsAdmin(100) || !cfg.IsAdmin(200) {
		t.Fatal("listed ids must be admins")
	}
	if cfg.IsAdmin(300) {
		t.Fatal("unlisted id must not be an admin")
	}
}

func TestAccessibleModelsAreCumulative(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	free := cfg.AccessibleModels(domain.TierFree)
	standard := cfg.AccessibleModels(domain.TierStandard)
	premium := cfg.AccessibleModels(domain.TierPremium)
	max := cfg.AccessibleModels(domain.TierMax)

	if len(standard) <= len(free) || len(premium) <= len(standard) {
		t.Fatalf("tiers must unlock cumulatively: %d/%d/%d", len(free), len(standard), len(premium))
	}
	// Max adds quota, not models.
	if len(max) != len(premium) {
		t.Fatalf("max models = %d, premium = %d", len(max), len(premium))
	}

	seen := map[string]bool{}
	for _, m := range premium {
		if seen[m] {
			t.Fatalf("duplicate model %q in accessible list", m)
		}
		seen[m] = true
	}
	for _, m := range free {
		if !seen[m] {
			t.Fatalf("free model %q missing from premium list", m)
		}
	}
}

func TestAllChatModelsDistinct(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	seen := map[string]bool{}
	for _, m := range cfg.AllChatModels() {
		if seen[m] {
			t.Fatalf("duplicate model %q", m)
		}
		seen[m] = true
	}
	if !seen["chatgpt-4o-latest"] {
		t.Fatal("default chat model missing from the catalog")
	}
}
