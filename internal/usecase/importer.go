package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bulk-import-service/internal/adapter/observability"
	"github.com/fairyhunter13/bulk-import-service/internal/domain"
	"github.com/fairyhunter13/bulk-import-service/pkg/csvx"
)

const (
	defaultBatchSize     = 500
	defaultProgressEvery = 50
	// errorHeadLimit caps the human summary; the full list goes to the report.
	errorHeadLimit = 3
)

// ImportService is the worker engine: it streams a staged CSV through
// validation and duplicate detection, batch-writes customers under the job's
// mode, accumulates the error report and drives the job state machine.
type ImportService struct {
	Jobs          domain.JobRepository
	Customers     domain.CustomerRepository
	Store         domain.ObjectStore
	BatchSize     int
	ProgressEvery int
	// SlowPerRow is a debug throttle applied per parsed row.
	SlowPerRow time.Duration
}

// NewImportService constructs an ImportService, applying defaults for
// non-positive tuning values.
func NewImportService(j domain.JobRepository, c domain.CustomerRepository, st domain.ObjectStore, batchSize, progressEvery int, slowPerRow time.Duration) ImportService {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if progressEvery <= 0 {
		progressEvery = defaultProgressEvery
	}
	return ImportService{Jobs: j, Customers: c, Store: st, BatchSize: batchSize, ProgressEvery: progressEvery, SlowPerRow: slowPerRow}
}

// Process runs one job to a terminal state. Redelivered tasks for a job that
// is no longer pending are a no-op: the guarded pending->processing
// transition is the at-least-once delivery fence.
func (s ImportService) Process(ctx context.Context, jobID string) error {
	tracer := otel.Tracer("usecase.import")
	ctx, span := tracer.Start(ctx, "import.Process")
	defer span.End()

	job, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	ok, err := s.Jobs.MarkProcessing(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		slog.Warn("job not pending; ignoring redelivered task",
			slog.String("job_id", jobID), slog.String("status", string(job.Status)))
		return nil
	}
	observability.StartProcessingJob("import")

	if err := s.run(ctx, job); err != nil {
		s.fail(ctx, jobID, err)
		observability.FailJob("import")
		return err
	}
	return nil
}

// run processes the staged CSV and finalizes the job. Any returned error is
// fatal; per-row failures are recovered into the report and never escape.
func (s ImportService) run(ctx context.Context, job domain.ImportJob) error {
	data, err := s.Store.GetBytes(ctx, job.S3Key)
	if err != nil {
		return err
	}
	_, rows, err := csvx.Split(data)
	if err != nil {
		return fmt.Errorf("csv parse: %w", err)
	}
	total := len(rows)
	if err := s.Jobs.SetTotals(ctx, job.ID, total); err != nil {
		return err
	}

	var (
		buffer    []domain.CustomerRow
		errorRows []domain.ErrorRow
		head      []string
		seen      = make(map[string]struct{})
		processed int
	)
	addError := func(row int, msg, raw, reason string) {
		errorRows = append(errorRows, domain.ErrorRow{Row: row, Error: msg, Raw: raw})
		if len(head) < errorHeadLimit {
			head = append(head, msg)
		}
		observability.RowError(reason)
	}
	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		var err error
		if job.Mode == domain.ModeUpsert {
			err = s.Customers.UpsertBatch(ctx, buffer)
		} else {
			err = s.flushInsertOnly(ctx, buffer, addError)
		}
		buffer = buffer[:0]
		return err
	}

	for i, rec := range rows {
		rowNum := i + 1
		if s.SlowPerRow > 0 {
			time.Sleep(s.SlowPerRow)
		}
		observability.RowParsed()
		raw := csvx.JoinRaw(rec)

		if csvx.IsEmpty(rec) {
			addError(rowNum, fmt.Sprintf("row %d: empty row", rowNum), raw, "empty_row")
		} else if email := csvx.Cell(rec, 0); email == nil {
			addError(rowNum, fmt.Sprintf("row %d: empty email", rowNum), raw, "invalid_email")
		} else if !validEmail(*email) {
			addError(rowNum, fmt.Sprintf("row %d: invalid email %q", rowNum, *email), raw, "invalid_email")
		} else if _, dup := seen[*email]; dup {
			// In-file detection runs before the in-database check, in both modes.
			addError(rowNum, fmt.Sprintf("row %d: duplicate email %q in file", rowNum, *email), raw, "duplicate_in_file")
		} else {
			seen[*email] = struct{}{}
			buffer = append(buffer, domain.CustomerRow{
				Row:       rowNum,
				Raw:       raw,
				Email:     *email,
				FirstName: csvx.Cell(rec, 1),
				LastName:  csvx.Cell(rec, 2),
				Phone:     csvx.Cell(rec, 3),
				City:      csvx.Cell(rec, 4),
			})
			if len(buffer) >= s.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}

		// Progress counts parsed rows, valid or not: a polling client wants
		// to see the file being consumed.
		processed++
		if processed%s.ProgressEvery == 0 {
			if err := s.Jobs.SetProgress(ctx, job.ID, processed); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	return s.finalize(ctx, job, total, errorRows, head)
}

// flushInsertOnly pre-queries which batch emails already exist, converts the
// conflicts to row errors, and inserts the remainder in one statement.
func (s ImportService) flushInsertOnly(ctx context.Context, batch []domain.CustomerRow, addError func(int, string, string, string)) error {
	emails := make([]string, 0, len(batch))
	for _, r := range batch {
		emails = append(emails, r.Email)
	}
	existing, err := s.Customers.ExistingEmails(ctx, emails)
	if err != nil {
		return err
	}
	keep := make([]domain.CustomerRow, 0, len(batch))
	for _, r := range batch {
		if _, ok := existing[r.Email]; ok {
			addError(r.Row, fmt.Sprintf("row %d: email already exists %q", r.Row, r.Email), r.Raw, "already_exists")
			continue
		}
		keep = append(keep, r)
	}
	return s.Customers.InsertBatch(ctx, keep)
}

func (s ImportService) finalize(ctx context.Context, job domain.ImportJob, total int, errorRows []domain.ErrorRow, head []string) error {
	errorCount := len(errorRows)
	if errorCount == 0 {
		if err := s.Jobs.Finalize(ctx, job.ID, domain.JobDone, nil, nil, 0, total); err != nil {
			return err
		}
		observability.CompleteJob("import")
		slog.Info("import done", slog.String("job_id", job.ID), slog.Int("total_rows", total))
		return nil
	}

	report, err := BuildErrorsCSV(errorRows)
	if err != nil {
		return err
	}
	reportKey := fmt.Sprintf("errors_%s.csv", job.ID)
	if err := s.Store.Put(ctx, reportKey, report); err != nil {
		return err
	}
	summary := errorSummary(errorCount, head)
	if err := s.Jobs.Finalize(ctx, job.ID, domain.JobFailed, &summary, &reportKey, errorCount, total); err != nil {
		return err
	}
	observability.FailJob("import")
	slog.Info("import failed with row errors",
		slog.String("job_id", job.ID), slog.Int("total_rows", total), slog.Int("error_count", errorCount))
	return nil
}

// fail commits the fatal-failure terminal state. The rolled-back batch is
// already gone; earlier committed batches stay.
func (s ImportService) fail(ctx context.Context, jobID string, cause error) {
	msg := failureSummary(cause)
	if err := s.Jobs.MarkFailed(ctx, jobID, msg); err != nil {
		slog.Error("failed to mark job failed", slog.String("job_id", jobID), slog.Any("error", err))
	}
	slog.Error("import aborted", slog.String("job_id", jobID), slog.String("error", msg))
}

// failureSummary renders a fatal error as "<kind>: <message>".
func failureSummary(err error) string {
	kind := "InternalError"
	switch {
	case errors.Is(err, domain.ErrObjectMissing):
		kind = "ObjectMissing"
	case errors.Is(err, domain.ErrStorageUnavailable):
		kind = "StorageUnavailable"
	case errors.Is(err, domain.ErrBrokerUnavailable):
		kind = "BrokerUnavailable"
	case errors.Is(err, domain.ErrInvalidArgument):
		kind = "InvalidInput"
	}
	return kind + ": " + err.Error()
}

func errorSummary(n int, head []string) string {
	s := fmt.Sprintf("errors: %d; first: %s", n, strings.Join(head, " | "))
	if n > len(head) {
		s += " [...]"
	}
	return s
}

// validEmail applies the import contract: an @ with a dot somewhere after
// the last @. Full RFC validation is out of scope for bulk rows.
func validEmail(s string) bool {
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	return strings.Contains(s[at+1:], ".")
}
