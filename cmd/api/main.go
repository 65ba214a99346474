// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

// Command api is the entry point for the storefront HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool) and Redis.
//  4. Run database migrations (idempotent).
//  5. Build token service, hasher and notification pipeline.
//  6. Wire the auth domain and HTTP handlers.
//  7. Start HTTP server with graceful shutdown, then drain pending email.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/azexpress/storefront/internal/api"
	"github.com/azexpress/storefront/internal/notify"
	"github.com/azexpress/storefront/internal/platform/config"
	"github.com/azexpress/storefront/internal/platform/constants"
	"github.com/azexpress/storefront/internal/platform/middleware"
	"github.com/azexpress/storefront/internal/platform/migration"
	pgstore "github.com/azexpress/storefront/internal/platform/postgres"
	redisstore "github.com/azexpress/storefront/internal/platform/redis"
	"github.com/azexpress/storefront/internal/platform/sec"
	"github.com/azexpress/storefront/internal/users/auth"
)

const brand = "A-Z Express"

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	log.Info("service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("notify_sink", cfg.NotifySink),
	)

	// Root context for the process lifetime; cancelled on shutdown.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// Startup deadline so misconfiguration is caught quickly.
	startupCtx, startupCancel := context.WithTimeout(appCtx, 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL & Redis ─────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, pgstore.DefaultPoolOptions(), log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("postgres_pool_closing")
		pool.Close()
	}()

	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("redis_client_closing")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 4. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 5. Security & Notifications ───────────────────────────────────────
	tokenService, err := sec.NewTokenService(sec.TokenConfig{
		Issuer:         constants.AuthIssuer,
		Access:         sec.KeyConfig{Secret: cfg.Tokens.AccessSecret, TTL: cfg.Tokens.AccessTTL},
		Refresh:        sec.KeyConfig{Secret: cfg.Tokens.RefreshSecret, TTL: cfg.Tokens.RefreshTTL},
		VerifyEmail:    sec.KeyConfig{Secret: cfg.Tokens.VerifySecret, TTL: cfg.Tokens.VerifyTTL},
		ResetPassword:  sec.KeyConfig{Secret: cfg.Tokens.ResetSecret, TTL: cfg.Tokens.ResetTTL},
		LoginChallenge: sec.KeyConfig{Secret: cfg.Tokens.ChallengeSecret, TTL: cfg.Tokens.ChallengeTTL},
	})
	must(log, err, "initialize token service")

	composer, err := notify.NewComposer(notify.ComposerConfig{
		Brand:       brand,
		From:        cfg.MailFrom,
		FrontendURL: cfg.FrontendURL,
	})
	must(log, err, "parse email templates")

	var sink notify.Sink = notify.NewLogSink(log)
	if cfg.NotifySink == config.SinkRedis {
		sink = notify.NewRedisOutboxSink(rdb, constants.RedisKeyNotifyOutbox)
	}
	dispatcher := notify.NewDispatcher(sink, log, constants.NotifyTimeout)

	// ── 6. Domain Wiring ──────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
		CheckCache: func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		},
	}, log)

	authService := auth.NewService(auth.Dependencies{
		Users:     auth.NewUserRepository(pool),
		Sessions:  auth.NewSessionRepository(rdb, time.Now),
		Tokens:    tokenService,
		Hasher:    sec.NewBcryptHasher(cfg.BcryptCost),
		Notifier:  dispatcher,
		Mail:      composer,
		TwoFactor: auth.NewTOTPEngine(cfg.TOTPIssuer),
		Logger:    log,
	}, auth.Options{
		Lockout: auth.LockoutPolicy{
			Threshold: cfg.LockoutThreshold,
			Duration:  cfg.LockoutDuration,
		},
		ResetOTPTTL:              cfg.ResetOTPTTL,
		RequireEmailVerification: cfg.RequireEmailVerification,
	})

	authHandler := auth.NewHandler(authService, auth.HandlerOptions{
		SecureCookie: !cfg.IsDevelopment(),
		RateLimit:    middleware.RateLimit(appCtx, constants.AuthRateLimitRPS, constants.AuthRateLimitBurst),
	})

	// ── 7. HTTP Server ────────────────────────────────────────────────────
	server := api.NewServer(appCtx, cfg, log, tokenService, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("server_shutting_down", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
	}

	// In-flight requests may have queued email; let it go out before the
	// stores close.
	dispatcher.Wait()
	appCancel()

	log.Info("server_stopped")
}

// newLogger builds the JSON logger tagged with the application name and makes
// it the default.
func newLogger(level slog.Level) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName))
	slog.SetDefault(log)
	return log
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned and
// handled explicitly.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
