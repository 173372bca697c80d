// Package main is the entrypoint for the Tooldex counter API server.
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

	"github.com/tooldex/tooldex/internal/api"
	"github.com/tooldex/tooldex/internal/api/handler"
	mw "github.com/tooldex/tooldex/internal/api/middleware"
	"github.com/tooldex/tooldex/internal/api/response"
	"github.com/tooldex/tooldex/internal/cache"
	"github.com/tooldex/tooldex/internal/config"
	"github.com/tooldex/tooldex/internal/counter"
	"github.com/tooldex/tooldex/internal/gate"
	"github.com/tooldex/tooldex/internal/mailer"
	"github.com/tooldex/tooldex/internal/store"
	"github.com/tooldex/tooldex/internal/turnstile"
	"github.com/tooldex/tooldex/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache (burst limiter backend)
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and counter service
	pgStore := store.NewPostgresStore(pool)
	counters := counter.NewService(pgStore, cfg.Counters)

	// 6. Key gate and issuance collaborators
	keyGate := gate.NewGate(pgStore)

	var keyMailer mailer.Mailer = mailer.NewSMTPMailer(cfg.Mail.SMTPAddr, cfg.Mail.From)
	if cfg.Mail.DryRun {
		keyMailer = mailer.LogMailer{}
	}

	var verifier turnstile.Verifier = turnstile.NoopVerifier{}
	if cfg.Turnstile.Secret != "" {
		verifier = turnstile.NewClient(cfg.Turnstile.Secret, 10*time.Second)
	}
	issuer := gate.NewIssuer(pgStore, keyMailer, verifier, cfg.API.KeyDailyQuota)

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(keyGate),
		RateLimit: mw.NewRateLimit(redisCache, cfg.API.BurstPerMinute),
		Signature: mw.NewSignature(cfg.Webhook.Secret),

		HealthHandler: healthHandler(pgStore, redisCache),

		ToolVoteCounts:    handler.NewVoteCountsHandler(counters, models.VoteFamilyTool),
		CastToolVote:      handler.NewCastVoteHandler(counters, models.VoteFamilyTool),
		RequestVoteCounts: handler.NewVoteCountsHandler(counters, models.VoteFamilyRequest),
		CastRequestVote:   handler.NewCastVoteHandler(counters, models.VoteFamilyRequest),
		ViewCounts:        handler.NewViewCountsHandler(counters),
		AddView:           handler.NewAddViewHandler(counters),

		ListTools:     handler.NewListToolsHandler(pgStore),
		GetTool:       handler.NewGetToolHandler(pgStore),
		CategoryStats: handler.NewCategoryStatsHandler(counters),
		RegisterKey:   handler.NewRegisterKeyHandler(issuer),

		ContentSync: handler.NewContentSyncHandler(counters),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
