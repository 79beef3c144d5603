package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fairyhunter13/bulk-import-service/internal/domain"
)

// SubmitService creates import jobs with at-most-once semantics per
// (user_id, idempotency_key) and guarantees a processing task is enqueued
// exactly once per distinct intent.
type SubmitService struct {
	Jobs  domain.JobRepository
	Store domain.ObjectStore
	Queue domain.Queue
}

// NewSubmitService constructs a SubmitService with its dependencies.
func NewSubmitService(j domain.JobRepository, st domain.ObjectStore, q domain.Queue) SubmitService {
	return SubmitService{Jobs: j, Store: st, Queue: q}
}

// Submit stages the upload, inserts the job row and enqueues the task, in
// that order: the job row is the durable anchor, staging first keeps failed
// inserts cheap to discard, and enqueuing last means the worker always finds
// a row. The returned bool is true for a freshly created job and false for
// an idempotent replay.
func (s SubmitService) Submit(ctx domain.Context, userID, idempotencyKey string, mode domain.ImportMode, data []byte, filename string) (domain.ImportJob, bool, error) {
	idem := strings.TrimSpace(idempotencyKey)
	if idem == "" {
		return domain.ImportJob{}, false, fmt.Errorf("%w: Idempotency-Key header required", domain.ErrInvalidArgument)
	}
	if len(data) == 0 {
		return domain.ImportJob{}, false, fmt.Errorf("%w: empty file", domain.ErrInvalidArgument)
	}

	if existing, err := s.Jobs.FindByUserAndKey(ctx, userID, idem); err == nil {
		// Replay: no new staging, no second enqueue.
		return existing, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.ImportJob{}, false, err
	}

	if filename == "" {
		filename = "upload.csv"
	}
	key, err := s.Store.PutBytes(ctx, data, filename)
	if err != nil {
		return domain.ImportJob{}, false, err
	}

	job := domain.ImportJob{
		UserID:         userID,
		IdempotencyKey: idem,
		Status:         domain.JobPending,
		Mode:           mode,
		Filename:       filename,
		S3Key:          key,
	}
	id, err := s.Jobs.Insert(ctx, job)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			// A concurrent submission with the same key won the insert; the
			// staged object is orphaned, which no client observes.
			existing, ferr := s.Jobs.FindByUserAndKey(ctx, userID, idem)
			if ferr != nil {
				return domain.ImportJob{}, false, ferr
			}
			return existing, false, nil
		}
		return domain.ImportJob{}, false, err
	}

	if err := s.Queue.EnqueueImport(ctx, id); err != nil {
		if uerr := s.Jobs.MarkFailed(ctx, id, "enqueue_failed: "+err.Error()); uerr != nil {
			return domain.ImportJob{}, false, uerr
		}
		return domain.ImportJob{}, false, err
	}

	created, err := s.Jobs.Get(ctx, id)
	if err != nil {
		return domain.ImportJob{}, false, err
	}
	return created, true, nil
}
