package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Infifrontend/Offersenseb2b-sub000/api"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/cache"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/config"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/provider"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/seed"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/server"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/service/compose"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/service/tiers"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/storage"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/telemetry"
	"github.com/Infifrontend/Offersenseb2b-sub000/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	level := slog.LevelInfo
	if os.Getenv("OFFERSENSE_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("offersense starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Seed the built-in tier ladder plus the optional seed file. Idempotent;
	// existing rows are skipped.
	if err := seed.Run(ctx, db, cfg.SeedFile, logger); err != nil {
		slog.Warn("seed failed", "error", err)
	}

	// Redis rule cache, disabled when REDIS_ADDR is empty.
	var ruleCache *cache.Cache
	if cfg.RedisAddr != "" {
		ruleCache, err = cache.New(ctx, cfg.RedisAddr, cfg.CacheTTL)
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		defer ruleCache.Close()
		logger.Info("rule cache: enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	} else {
		logger.Info("rule cache: disabled (no REDIS_ADDR)")
	}

	offerMetrics, err := telemetry.NewOfferMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	fares, ancillaries, bundles := provider.Defaults()
	composer := compose.New(db, fares, ancillaries, bundles, ruleCache, logger)
	tierSvc := tiers.New(db, logger)

	handlers := server.NewHandlers(server.HandlersDeps{
		DB:             db,
		Composer:       composer,
		TierSvc:        tierSvc,
		Cache:          ruleCache,
		Logger:         logger,
		Metrics:        offerMetrics,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Version:        version,
		OpenAPISpec:    api.OpenAPISpec,
	})
	srv := server.New(server.Config{
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		AllowedOrigins:      cfg.AllowedOrigins,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	}, handlers, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("offersense shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	return nil
}
