// Package main is the entrypoint for the DocLens API server.
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

	"github.com/doclens/doclens/internal/ai"
	"github.com/doclens/doclens/internal/api"
	"github.com/doclens/doclens/internal/api/handler"
	mw "github.com/doclens/doclens/internal/api/middleware"
	"github.com/doclens/doclens/internal/api/response"
	"github.com/doclens/doclens/internal/blob"
	"github.com/doclens/doclens/internal/cache"
	"github.com/doclens/doclens/internal/config"
	"github.com/doclens/doclens/internal/dispatch"
	"github.com/doclens/doclens/internal/extract"
	"github.com/doclens/doclens/internal/quota"
	"github.com/doclens/doclens/internal/ratelimit"
	"github.com/doclens/doclens/internal/store"
	"github.com/doclens/doclens/internal/worker"
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

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Object storage
	blobs, err := blob.NewS3Store(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("create blob store: %w", err)
	}
	slog.Info("blob store initialized", "bucket", cfg.Blob.Bucket)

	// 6. AI provider chain — an empty chain is valid; every job then gets
	// the deterministic degraded result.
	providers := ai.BuildChain(cfg.AI)
	analyzer := ai.NewOrchestrator(providers,
		cfg.AI.MaxAttempts, cfg.AI.BackoffBase, cfg.AI.InferenceTimeout,
		cfg.AI.MaxInputChars, slog.Default())
	slog.Info("provider chain initialized", "providers", len(providers))

	// 7. Store, pipeline, and dispatch
	pgStore := store.NewPostgresStore(pool)
	pipeline := worker.New(pgStore, redisCache, blobs, extract.New(), analyzer,
		cfg.Limits.PreviewChars, slog.Default())
	dispatcher := dispatch.New(cfg.Dispatch, slog.Default())
	ledger := quota.NewLedger(pgStore, cfg.Limits.FreeTierJobs, slog.Default())

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	limiter := ratelimit.NewLimiter(ratelimit.NewCacheStore(redisCache))
	rateLimit := mw.NewRateLimit(limiter, slog.Default())

	deps := api.Dependencies{
		Auth:         auth,
		RateLimit:    rateLimit,
		InternalAuth: mw.InternalAuth(cfg.Dispatch.InternalToken),

		UploadPolicy: ratelimit.Policy{
			Max:    cfg.Limits.UploadRate.Max,
			Window: cfg.Limits.UploadRate.Window,
		},
		TriggerPolicy: ratelimit.Policy{
			Max:    cfg.Limits.TriggerRate.Max,
			Window: cfg.Limits.TriggerRate.Window,
		},

		HealthHandler: healthHandler(pgStore, redisCache),
		UploadHandler: handler.NewUploadHandler(handler.UploadDeps{
			Store:          pgStore,
			Blobs:          blobs,
			Cache:          redisCache,
			Quota:          ledger,
			Dispatch:       dispatcher.Dispatch,
			MaxUploadBytes: cfg.Limits.MaxUploadBytes,
			Log:            slog.Default(),
		}),
		StatusHandler: handler.NewJobStatusHandler(jobDeps(pgStore, blobs, redisCache, dispatcher)),
		RetryHandler:  handler.NewJobRetryHandler(jobDeps(pgStore, blobs, redisCache, dispatcher)),
		DeleteHandler: handler.NewJobDeleteHandler(jobDeps(pgStore, blobs, redisCache, dispatcher)),
		ProcessHandler: handler.NewProcessHandler(handler.ProcessDeps{
			Store: pgStore,
			Cache: redisCache,
			Start: pipeline.Process,
			Log:   slog.Default(),
		}),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
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

func jobDeps(s store.Store, b blob.Store, c cache.Cache, d *dispatch.Dispatcher) handler.JobsDeps {
	return handler.JobsDeps{
		Store:    s,
		Blobs:    b,
		Cache:    c,
		Dispatch: d.Dispatch,
		Log:      slog.Default(),
	}
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
