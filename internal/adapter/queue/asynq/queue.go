// Package asynqadp adapts the task broker (asynq over Redis) to the domain
// Queue port and hosts the worker-side task server.
package asynqadp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fairyhunter13/bulk-import-service/internal/adapter/observability"
	"github.com/fairyhunter13/bulk-import-service/internal/domain"
)

// TaskImport is the task type carrying one import job id.
const TaskImport = "import:process"

// Queue is the producer side of the broker.
type Queue struct{ client *asynq.Client }

// New connects a producer to the broker at redisURL.
func New(redisURL string) (*Queue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("op=queue.new: %w", err)
	}
	return &Queue{client: asynq.NewClient(opt)}, nil
}

// EnqueueImport enqueues exactly one processing task for the job. A broker
// failure maps to domain.ErrBrokerUnavailable so the submission side can
// mark the job failed and surface 503.
func (q *Queue) EnqueueImport(ctx domain.Context, jobID string) error {
	b, _ := json.Marshal(domain.ImportTaskPayload{JobID: jobID})
	t := asynq.NewTask(TaskImport, b)
	if _, err := q.client.EnqueueContext(ctx, t, asynq.MaxRetry(5), asynq.Retention(24*time.Hour)); err != nil {
		return fmt.Errorf("op=queue.enqueue: %w: %v", domain.ErrBrokerUnavailable, err)
	}
	observability.EnqueueJob("import")
	return nil
}

// Close releases the broker connection.
func (q *Queue) Close() error { return q.client.Close() }
