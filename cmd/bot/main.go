package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"miniarima/internal/adapter/repo"
	"miniarima/internal/aggregate"
	"miniarima/internal/entitlement"
	"miniarima/internal/health"
	"miniarima/internal/http/handlers"
	"miniarima/internal/http/httpapi"
	"miniarima/internal/infra"
	"miniarima/internal/providers/openai"
	"miniarima/internal/quota"
	"miniarima/internal/session"
	"miniarima/internal/transport/console"
)

const entitlementCacheTTL = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	accounts := repo.NewAccountRepository(dbpool)
	usage := repo.NewUsageRepository(dbpool)
	system := repo.NewSystemRepository(dbpool)

	client, err := openai.NewClient(openai.Options{
		APIKey:  cfg.ProviderAPIKey,
		BaseURL: cfg.ProviderBaseURL,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build provider client")
	}

	entitlements := entitlement.NewService(accounts,
		entitlement.NewCache(4096, entitlementCacheTTL), logger)
	quotas := quota.NewService(entitlements, usage, cfg, logger)
	monitor := health.NewMonitor(client, system, cfg, logger)
	aggregator := aggregate.New(client, cfg.Participants, cfg.Arbiter, cfg.DefaultTemperature, logger)

	transport := console.NewTransport(os.Stdout)
	engine := session.NewEngine(cfg, transport, entitlements, quotas, client, aggregator, monitor, logger)

	if err := monitor.StartupReconcile(ctx); err != nil {
		logger.Fatal().Err(err).Msg("startup availability reconcile failed")
	}

	go runSweepLoop(ctx, monitor, cfg.SweepInterval, logger)

	app := handlers.NewApp(cfg, entitlements, quotas, accounts, monitor, logger)
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, cfg))

	go func() {
		logger.Info().Msgf("admin API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// The console loop is the local stand-in for a production messaging
	// surface; it stops on stdin EOF or on a shutdown signal.
	loop := console.NewLoop(engine, cfg.AdminIDs[0], "operator", os.Stdin)
	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("console loop failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("bot stopped")
}

// runSweepLoop re-probes every configured model on a fixed cadence so the
// advisory availability map and the persisted report stay current.
func runSweepLoop(ctx context.Context, monitor *health.Monitor, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := monitor.RunFullSweep(ctx); err != nil {
				logger.Error().Err(err).Msg("scheduled health sweep failed")
			}
		}
	}
}
