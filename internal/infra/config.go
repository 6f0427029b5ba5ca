package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"miniarima/internal/domain"
)

// Config represents application configuration loaded from environment
// variables. It is built once at startup and passed explicitly into every
// component constructor; nothing reads the environment after this point.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	ProviderBaseURL string
	ProviderAPIKey  string

	AdminToken string
	AdminIDs   []int64

	DefaultChatModel   string
	DefaultImageModel  string
	GlobalSystemPrompt string
	DefaultTemperature float64

	// ModelCategories groups chat models by vendor for menu rendering and
	// the health sweep. TierModels lists which models each tier unlocks,
	// cumulatively from free upward.
	ModelCategories map[string][]string
	TierModels      map[domain.Tier][]string
	ImageModels     []string

	Participants []string
	Arbiter      string

	Limits     map[domain.Tier]domain.TierLimits
	BonusDaily int

	// ReportLocation fixes the calendar day used by daily quota counters
	// and report timestamps.
	ReportLocation *time.Location

	SweepInterval    time.Duration
	FreshnessWindow  time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "https://api.openai.com/v1"),
		ProviderAPIKey:  os.Getenv("PROVIDER_API_KEY"),

		AdminToken: os.Getenv("ADMIN_TOKEN"),

		DefaultChatModel:   getEnv("DEFAULT_CHAT_MODEL", "chatgpt-4o-latest"),
		DefaultImageModel:  getEnv("DEFAULT_IMAGE_MODEL", "gpt-image-1"),
		GlobalSystemPrompt: getEnv("GLOBAL_SYSTEM_PROMPT", "Ты - MiniArima, продвинутый GenAI ассистент."),
		DefaultTemperature: 0.7,

		ModelCategories: defaultModelCategories(),
		ImageModels:     []string{"gpt-image-1", "flux-1.1-pro"},

		Participants: []string{
			"grok-3", "gpt-4.1", "deepseek-chat-v3-0324",
			"gpt-4.5-preview", "chatgpt-4o-latest", "claude-3.7-sonnet",
		},
		Arbiter: getEnv("ARBITER_MODEL", "deepseek-r1-0528"),

		Limits: map[domain.Tier]domain.TierLimits{
			domain.TierFree:     {Daily: 3, Enhanced: 0},
			domain.TierStandard: {Daily: 40, Enhanced: 0},
			domain.TierPremium:  {Daily: 100, Enhanced: 0},
			domain.TierMax:      {Daily: 100, Enhanced: 5},
		},
		BonusDaily: getEnvInt("BONUS_DAILY_LIMIT", 7),

		ReportLocation: time.FixedZone("MSK", 3*60*60),

		SweepInterval:    time.Minute * time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", 60)),
		FreshnessWindow:  time.Minute * time.Duration(getEnvInt("FRESHNESS_WINDOW_MINUTES", 10)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	cfg.TierModels = defaultTierModels(cfg.ModelCategories)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ProviderAPIKey == "" {
		return nil, fmt.Errorf("PROVIDER_API_KEY is required")
	}

	admins, err := parseAdminIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, err
	}
	if len(admins) == 0 {
		return nil, fmt.Errorf("ADMIN_IDS is required")
	}
	cfg.AdminIDs = admins

	return cfg, nil
}

// IsAdmin reports whether the given user id is operator-listed.
func (c *Config) IsAdmin(id int64) bool {
	for _, admin := range c.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

// AccessibleModels returns the chat models a tier unlocks, including every
// lower tier's models.
func (c *Config) AccessibleModels(tier domain.Tier) []string {
	seen := map[string]bool{}
	var models []string
	for t := domain.TierFree; t <= tier && t <= domain.TierMax; t++ {
		for _, m := range c.TierModels[t] {
			if !seen[m] {
				seen[m] = true
				models = append(models, m)
			}
		}
	}
	return models
}

// AllChatModels returns every distinct chat model across categories.
func (c *Config) AllChatModels() []string {
	seen := map[string]bool{}
	var models []string
	for _, cat := range c.ModelCategories {
		for _, m := range cat {
			if !seen[m] {
				seen[m] = true
				models = append(models, m)
			}
		}
	}
	return models
}

func defaultModelCategories() map[string][]string {
	return map[string][]string{
		"OpenAI":    {"gpt-4.5-preview", "gpt-4.1", "o4-mini", "chatgpt-4o-latest"},
		"DeepSeek":  {"deepseek-chat-v3-0324", "deepseek-r1-0528"},
		"Meta":      {"llama-3.1-nemotron-ultra-253b-v1"},
		"Alibaba":   {"qwen3-235b-a22b"},
		"Microsoft": {"phi-4-reasoning-plus"},
		"xAI":       {"grok-3", "grok-3-mini"},
		"Anthropic": {"claude-3.7-sonnet"},
	}
}

func defaultTierModels(categories map[string][]string) map[domain.Tier][]string {
	all := []string{}
	seen := map[string]bool{}
	for _, cat := range categories {
		for _, m := range cat {
			if !seen[m] {
				seen[m] = true
				all = append(all, m)
			}
		}
	}
	return map[domain.Tier][]string{
		domain.TierFree: {"deepseek-chat-v3-0324", "gpt-4.1", "chatgpt-4o-latest"},
		domain.TierStandard: {
			"llama-3.1-nemotron-ultra-253b-v1", "qwen3-235b-a22b",
			"phi-4-reasoning-plus", "grok-3-mini",
		},
		domain.TierPremium: all,
		domain.TierMax:     nil, // max adds quota, not models
	}
}

func parseAdminIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_IDS: invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
