package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bulk-import-service/internal/domain"
)

// JobRepo persists and loads import jobs.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

const jobColumns = `id, user_id, idempotency_key, status, mode, filename, s3_key,
	total_rows, processed_rows, error, error_report_object_key, error_count, created_at`

func scanJob(row pgx.Row) (domain.ImportJob, error) {
	var j domain.ImportJob
	err := row.Scan(&j.ID, &j.UserID, &j.IdempotencyKey, &j.Status, &j.Mode,
		&j.Filename, &j.S3Key, &j.TotalRows, &j.ProcessedRows, &j.Error,
		&j.ErrorReportObjectKey, &j.ErrorCount, &j.CreatedAt)
	return j, err
}

// Insert creates a new job row. A unique-constraint violation on
// (user_id, idempotency_key) maps to domain.ErrDuplicateKey so the
// submission side can resolve the concurrent-retry race.
func (r *JobRepo) Insert(ctx domain.Context, j domain.ImportJob) (string, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Insert")
	defer span.End()
	id := j.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO import_jobs (id, user_id, idempotency_key, status, mode, filename, s3_key,
		total_rows, processed_rows, error, error_report_object_key, error_count, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.Pool.Exec(ctx, q, id, j.UserID, j.IdempotencyKey, j.Status, j.Mode,
		j.Filename, j.S3Key, j.TotalRows, j.ProcessedRows, j.Error,
		j.ErrorReportObjectKey, j.ErrorCount, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("op=job.insert: %w", domain.ErrDuplicateKey)
		}
		return "", fmt.Errorf("op=job.insert: %w", err)
	}
	return id, nil
}

// FindByUserAndKey loads the job for (user_id, idempotency_key), if any.
func (r *JobRepo) FindByUserAndKey(ctx domain.Context, userID, idempotencyKey string) (domain.ImportJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.FindByUserAndKey")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM import_jobs WHERE user_id=$1 AND idempotency_key=$2 LIMIT 1`
	j, err := scanJob(r.Pool.QueryRow(ctx, q, userID, idempotencyKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportJob{}, fmt.Errorf("op=job.find_by_user_and_key: %w", domain.ErrNotFound)
		}
		return domain.ImportJob{}, fmt.Errorf("op=job.find_by_user_and_key: %w", err)
	}
	return j, nil
}

// Get loads a job by id.
func (r *JobRepo) Get(ctx domain.Context, id string) (domain.ImportJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Get")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM import_jobs WHERE id=$1`
	j, err := scanJob(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportJob{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
		}
		return domain.ImportJob{}, fmt.Errorf("op=job.get: %w", err)
	}
	return j, nil
}

// MarkProcessing performs the guarded pending->processing transition in one
// statement. The WHERE clause is the at-least-once delivery guard: a task
// redelivered for a job that is already processing or terminal matches no
// row and the caller must no-op.
func (r *JobRepo) MarkProcessing(ctx domain.Context, id string) (bool, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.MarkProcessing")
	defer span.End()
	q := `UPDATE import_jobs SET status=$2, error=NULL, processed_rows=0 WHERE id=$1 AND status=$3`
	tag, err := r.Pool.Exec(ctx, q, id, domain.JobProcessing, domain.JobPending)
	if err != nil {
		return false, fmt.Errorf("op=job.mark_processing: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetTotals persists the pre-pass row count and resets progress in one commit.
func (r *JobRepo) SetTotals(ctx domain.Context, id string, totalRows int) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SetTotals")
	defer span.End()
	q := `UPDATE import_jobs SET total_rows=$2, processed_rows=0 WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, id, totalRows); err != nil {
		return fmt.Errorf("op=job.set_totals: %w", err)
	}
	return nil
}

// SetProgress commits the current processed-row count.
func (r *JobRepo) SetProgress(ctx domain.Context, id string, processedRows int) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SetProgress")
	defer span.End()
	q := `UPDATE import_jobs SET processed_rows=$2 WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, id, processedRows); err != nil {
		return fmt.Errorf("op=job.set_progress: %w", err)
	}
	return nil
}

// Finalize commits the terminal status, error summary, report key, error
// count and the final processed_rows in a single atomic update.
func (r *JobRepo) Finalize(ctx domain.Context, id string, status domain.JobStatus, errMsg, reportKey *string, errorCount, processedRows int) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Finalize")
	defer span.End()
	q := `UPDATE import_jobs SET status=$2, error=$3, error_report_object_key=$4, error_count=$5, processed_rows=$6 WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, id, status, errMsg, reportKey, errorCount, processedRows); err != nil {
		return fmt.Errorf("op=job.finalize: %w", err)
	}
	return nil
}

// MarkFailed records a failure summary. Terminal rows are left untouched so
// a late fatal path cannot transition a job out of done or failed.
func (r *JobRepo) MarkFailed(ctx domain.Context, id string, errMsg string) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.MarkFailed")
	defer span.End()
	q := `UPDATE import_jobs SET status=$2, error=$3 WHERE id=$1 AND status IN ($4,$5)`
	if _, err := r.Pool.Exec(ctx, q, id, domain.JobFailed, errMsg, domain.JobPending, domain.JobProcessing); err != nil {
		return fmt.Errorf("op=job.mark_failed: %w", err)
	}
	return nil
}
