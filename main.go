package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"cryptosignal-engine/config"
	"cryptosignal-engine/internal/binancefeed"
	"cryptosignal-engine/internal/cache"
	"cryptosignal-engine/internal/health"
	"cryptosignal-engine/internal/httpapi"
	"cryptosignal-engine/internal/logging"
	"cryptosignal-engine/internal/orchestrator"
	"cryptosignal-engine/internal/paper"
	"cryptosignal-engine/internal/storage/postgres"
	"cryptosignal-engine/internal/vaultsecrets"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     "stdout",
		Component:  "engine",
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logging.SetDefault(logger)
	logger.Info("configuration loaded", "symbol", cfg.EngineConfig.Symbol, "timeframe", cfg.EngineConfig.AnalysisTimeframe)

	registry := prometheus.NewRegistry()
	healthRecorder := health.NewRecorder(registry)

	feed := binancefeed.New(cfg.BinanceConfig.ToBinanceFeedConfig())

	// orderRepo stays a nil interface (not a typed-nil *postgres.Repository)
	// when persistence is unavailable, so paper.Matcher's "repo != nil"
	// checks correctly treat it as absent.
	var orderRepo paper.OrderRepository

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := postgres.Connect(ctx, cfg.PostgresConfig.ToPostgresConfig())
	cancel()
	if err != nil {
		logger.Warn("postgres unavailable, running without persistence", "error", err.Error())
	} else {
		migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 10*time.Second)
		migrateErr := db.Migrate(migrateCtx)
		migrateCancel()
		if migrateErr != nil {
			logger.Warn("postgres migration failed, running without persistence", "error", migrateErr.Error())
			db.Close()
			db = nil
		} else {
			orderRepo = postgres.NewRepository(db)
			logger.Info("postgres connected and migrated")
		}
	}

	vaultClient, err := vaultsecrets.New(cfg.VaultConfig.ToVaultConfig())
	if err != nil {
		logger.Warn("vault client unavailable", "error", err.Error())
	} else if cfg.VaultConfig.Enabled {
		if _, err := vaultClient.Get(context.Background()); err != nil {
			logger.Warn("no binance credentials available in vault yet", "error", err.Error())
		}
	}

	var snapshotCache *cache.SnapshotCache
	if cfg.RedisConfig.Enabled {
		redisSvc, err := cache.NewService(cache.Config{
			Enabled:  cfg.RedisConfig.Enabled,
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
			TTL:      cfg.RedisConfig.TTL,
		})
		if err != nil {
			logger.Warn("redis cache unavailable", "error", err.Error())
		} else {
			snapshotCache = cache.NewSnapshotCache(redisSvc)
			logger.Info("redis snapshot cache connected")
		}
	}
	// snapshotCache mirrors orchestrator reads into Redis for a
	// horizontally-scaled httpapi read replica; this process serves its
	// own accessor API directly from the orchestrator, so it only needs
	// to keep the cache warm, not read from it.
	_ = snapshotCache

	orch, err := orchestrator.New(cfg.ToOrchestratorConfig(), feed, feed, orderRepo, healthRecorder, cfg.PaperConfig.InitialWallet)
	if err != nil {
		logger.Error("failed to construct orchestrator", "error", err.Error())
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 60*time.Second)
	result := orch.Start(startCtx)
	startCancel()
	logger.Info("warmup complete", "success", result.Success, "degraded", result.Degraded, "candles", result.CandlesProcessed)

	zlog := zerolog.New(os.Stdout).With().Timestamp().Str("component", "httpapi").Logger()
	apiServer := httpapi.NewServer(cfg.ServerConfig.ToHTTPAPIConfig(cfg.AuthConfig), orch, registry, zlog)

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("http api server stopped", "error", err.Error())
		}
	}()
	logger.Info("http api listening", "host", cfg.ServerConfig.Host, "port", cfg.ServerConfig.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	orch.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ServerConfig.ShutdownTimeout)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http api server", "error", err.Error())
	}
	if db != nil {
		db.Close()
	}
	logger.Info("shutdown complete")
}
