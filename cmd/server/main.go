// Command server starts the bulk import HTTP API.
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

	httpserver "github.com/fairyhunter13/bulk-import-service/internal/adapter/httpserver"
	"github.com/fairyhunter13/bulk-import-service/internal/adapter/observability"
	asynqadp "github.com/fairyhunter13/bulk-import-service/internal/adapter/queue/asynq"
	"github.com/fairyhunter13/bulk-import-service/internal/adapter/repo/postgres"
	s3store "github.com/fairyhunter13/bulk-import-service/internal/adapter/storage/s3"
	"github.com/fairyhunter13/bulk-import-service/internal/app"
	"github.com/fairyhunter13/bulk-import-service/internal/config"
	"github.com/fairyhunter13/bulk-import-service/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		slog.Error("migrate failed", slog.Any("error", err))
		os.Exit(1)
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepo(pool)
	jobRepo := postgres.NewJobRepo(pool)

	store, err := s3store.New(ctx, cfg)
	if err != nil {
		slog.Error("s3 connect failed", slog.Any("error", err))
		os.Exit(1)
	}

	queue, err := asynqadp.New(cfg.RedisURL)
	if err != nil {
		slog.Error("queue connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			slog.Error("failed to close queue client", slog.Any("error", err))
		}
	}()

	rdb, err := app.NewRedisClient(cfg.RedisURL)
	if err != nil {
		slog.Error("redis client setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()

	authSvc := usecase.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTAlg, cfg.AccessTokenTTL())
	submitSvc := usecase.NewSubmitService(jobRepo, store, queue)
	statusSvc := usecase.NewStatusService(jobRepo, store)

	dbCheck, redisCheck, s3Check := app.BuildReadinessChecks(pool, rdb, store)
	srv := httpserver.NewServer(cfg, authSvc, submitSvc, statusSvc, dbCheck, redisCheck, s3Check)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
