package usecase

import (
	"fmt"

	"github.com/fairyhunter13/bulk-import-service/internal/domain"
)

// StatusService answers job polling and error-report downloads, strictly
// scoped to the owning user.
type StatusService struct {
	Jobs  domain.JobRepository
	Store domain.ObjectStore
}

// NewStatusService constructs a StatusService with its dependencies.
func NewStatusService(j domain.JobRepository, st domain.ObjectStore) StatusService {
	return StatusService{Jobs: j, Store: st}
}

// Job loads a job owned by userID. A job belonging to another user is
// indistinguishable from a nonexistent one.
func (s StatusService) Job(ctx domain.Context, userID, jobID string) (domain.ImportJob, error) {
	j, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return domain.ImportJob{}, err
	}
	if j.UserID != userID {
		return domain.ImportJob{}, fmt.Errorf("op=status.job: %w", domain.ErrNotFound)
	}
	return j, nil
}

// ErrorReportURL mints a presigned download link for the job's error report.
// A job still pending or processing without a report is a conflict ("not
// ready"); a terminal job without a report never produced one.
func (s StatusService) ErrorReportURL(ctx domain.Context, userID, jobID string) (string, error) {
	j, err := s.Job(ctx, userID, jobID)
	if err != nil {
		return "", err
	}
	if j.ErrorReportObjectKey == nil {
		if !j.Status.Terminal() {
			return "", fmt.Errorf("op=status.errors: %w: not ready", domain.ErrConflict)
		}
		return "", fmt.Errorf("op=status.errors: %w: no errors report", domain.ErrNotFound)
	}
	return s.Store.PresignGet(ctx, *j.ErrorReportObjectKey, fmt.Sprintf("errors_%s.csv", j.ID))
}
