// Command worker processes queued import jobs.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/bulk-import-service/internal/adapter/observability"
	asynqadp "github.com/fairyhunter13/bulk-import-service/internal/adapter/queue/asynq"
	"github.com/fairyhunter13/bulk-import-service/internal/adapter/repo/postgres"
	s3store "github.com/fairyhunter13/bulk-import-service/internal/adapter/storage/s3"
	"github.com/fairyhunter13/bulk-import-service/internal/config"
	"github.com/fairyhunter13/bulk-import-service/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Expose job metrics on a dedicated port so Prometheus can scrape the
	// worker separately from the API.
	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	store, err := s3store.New(ctx, cfg)
	if err != nil {
		slog.Error("s3 connect failed", slog.Any("error", err))
		os.Exit(1)
	}

	jobRepo := postgres.NewJobRepo(pool)
	customerRepo := postgres.NewCustomerRepo(pool)
	importSvc := usecase.NewImportService(jobRepo, customerRepo, store, cfg.BatchSize, cfg.ProgressEvery, cfg.ImportSlowDelay())

	worker, err := asynqadp.NewWorker(cfg.RedisURL, cfg.WorkerConcurrency, importSvc)
	if err != nil {
		slog.Error("worker init failed", slog.Any("error", err))
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- worker.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
		worker.Shutdown()
	case err := <-errCh:
		if err != nil {
			slog.Error("worker error", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
