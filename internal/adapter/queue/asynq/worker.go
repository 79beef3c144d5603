package asynqadp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bulk-import-service/internal/domain"
)

// Processor runs one import job to a terminal state.
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// Worker consumes import tasks from the broker. Delivery is at-least-once;
// the processor's status guard makes redeliveries side-effect free.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker builds the task server and registers the import handler.
func NewWorker(redisURL string, concurrency int, proc Processor) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency:    concurrency,
		RetryDelayFunc: retryDelay,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskImport, func(ctx context.Context, t *asynq.Task) error {
		tracer := otel.Tracer("queue.worker")
		ctx, span := tracer.Start(ctx, "ProcessImport")
		defer span.End()
		var p domain.ImportTaskPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			slog.Error("malformed task payload", slog.Any("error", err))
			// Not retryable; dropping is the only option.
			return nil
		}
		return proc.Process(ctx, p.JobID)
	})
	return &Worker{server: srv, mux: mux}, nil
}

// Run blocks serving tasks until Shutdown.
func (w *Worker) Run() error { return w.server.Run(w.mux) }

// Shutdown drains in-flight tasks and stops the server.
func (w *Worker) Shutdown() { w.server.Shutdown() }

// retryDelay walks an exponential backoff curve to the n-th retry.
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 2 * time.Minute
	b.Multiplier = 2.0
	d := b.NextBackOff()
	for i := 0; i < n; i++ {
		d = b.NextBackOff()
	}
	return d
}
