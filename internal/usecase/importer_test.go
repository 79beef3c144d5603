package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bulk-import-service/internal/domain"
	"github.com/fairyhunter13/bulk-import-service/internal/domain/mocks"
	"github.com/fairyhunter13/bulk-import-service/internal/usecase"
)

func pendingJob(id string, mode domain.ImportMode) domain.ImportJob {
	return domain.ImportJob{ID: id, UserID: "u1", Status: domain.JobPending, Mode: mode, S3Key: "imports/" + id + ".csv"}
}

func newImporter(jobs *mocks.MockJobRepository, customers *mocks.MockCustomerRepository, store *mocks.MockObjectStore) usecase.ImportService {
	return usecase.NewImportService(jobs, customers, store, 500, 50, 0)
}

func TestImport_Process_HappyPathInsertOnly(t *testing.T) {
	t.Parallel()
	jobs := &mocks.MockJobRepository{}
	customers := &mocks.MockCustomerRepository{}
	store := &mocks.MockObjectStore{}
	job := pendingJob("j1", domain.ModeInsertOnly)

	jobs.On("Get", mock.Anything, "j1").Return(job, nil)
	jobs.On("MarkProcessing", mock.Anything, "j1").Return(true, nil)
	jobs.On("SetTotals", mock.Anything, "j1", 1).Return(nil)
	store.On("GetBytes", mock.Anything, job.S3Key).Return([]byte("email,first_name,last_name,phone,city\na@x.com,A,,,Calgary\n"), nil)
	customers.On("ExistingEmails", mock.Anything, []string{"a@x.com"}).Return(map[string]struct{}{}, nil)
	customers.On("InsertBatch", mock.Anything, mock.MatchedBy(func(rows []domain.CustomerRow) bool {
		if len(rows) != 1 {
			return false
		}
		r := rows[0]
		return r.Email == "a@x.com" && r.FirstName != nil && *r.FirstName == "A" &&
			r.LastName == nil && r.Phone == nil && r.City != nil && *r.City == "Calgary"
	})).Return(nil)
	jobs.On("Finalize", mock.Anything, "j1", domain.JobDone, (*string)(nil), (*string)(nil), 0, 1).Return(nil)

	svc := newImporter(jobs, customers, store)
	require.NoError(t, svc.Process(context.Background(), "j1"))
	jobs.AssertExpectations(t)
	customers.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestImport_Process_NotPendingIsNoop(t *testing.T) {
	t.Parallel()
	jobs := &mocks.MockJobRepository{}
	job := pendingJob("j1", domain.ModeInsertOnly)
	job.Status = domain.JobDone
	jobs.On("Get", mock.Anything, "j1").Return(job, nil)
	jobs.On("MarkProcessing", mock.Anything, "j1").Return(false, nil)

	svc := newImporter(jobs, &mocks.MockCustomerRepository{}, &mocks.MockObjectStore{})
	require.NoError(t, svc.Process(context.Background(), "j1"))
	jobs.AssertNotCalled(t, "SetTotals", mock.Anything, mock.Anything, mock.Anything)
}

func TestImport_Process_RowErrorsProduceReport(t *testing.T) {
	t.Parallel()
	jobs := &mocks.MockJobRepository{}
	customers := &mocks.MockCustomerRepository{}
	store := &mocks.MockObjectStore{}
	job := pendingJob("j1", domain.ModeInsertOnly)

	// Row 1 has a bad email, row 2 is valid, row 3 repeats row 2's email.
	csv := "email,first_name\nnot-an-email,X\na@x.com,A\na@x.com,B\n"
	jobs.On("Get", mock.Anything, "j1").Return(job, nil)
	jobs.On("MarkProcessing", mock.Anything, "j1").Return(true, nil)
	jobs.On("SetTotals", mock.Anything, "j1", 3).Return(nil)
	store.On("GetBytes", mock.Anything, job.S3Key).Return([]byte(csv), nil)
	customers.On("ExistingEmails", mock.Anything, []string{"a@x.com"}).Return(map[string]struct{}{}, nil)
	customers.On("InsertBatch", mock.Anything, mock.Anything).Return(nil)

	var report []byte
	store.On("Put", mock.Anything, "errors_j1.csv", mock.Anything).Run(func(args mock.Arguments) {
		report = args.Get(2).([]byte)
	}).Return(nil)
	jobs.On("Finalize", mock.Anything, "j1", domain.JobFailed,
		mock.MatchedBy(func(s *string) bool {
			return s != nil && strings.HasPrefix(*s, "errors: 2; first: ") && !strings.Contains(*s, "[...]")
		}),
		mock.MatchedBy(func(k *string) bool { return k != nil && *k == "errors_j1.csv" }),
		2, 3).Return(nil)

	svc := newImporter(jobs, customers, store)
	require.NoError(t, svc.Process(context.Background(), "j1"))

	lines := strings.Split(strings.TrimSpace(string(report)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "row,error,raw", lines[0])
	assert.Contains(t, lines[1], `invalid email`)
	assert.Contains(t, lines[2], `duplicate email`)
	jobs.AssertExpectations(t)
}

func TestImport_Process_SummaryTruncatedBeyondThree(t *testing.T) {
	t.Parallel()
	jobs := &mocks.MockJobRepository{}
	customers := &mocks.MockCustomerRepository{}
	store := &mocks.MockObjectStore{}
	job := pendingJob("j1", domain.ModeInsertOnly)

	csv := "email\nbad1\nbad2\nbad3\nbad4\n"
	jobs.On("Get", mock.Anything, "j1").Return(job, nil)
	jobs.On("MarkProcessing", mock.Anything, "j1").Return(true, nil)
	jobs.On("SetTotals", mock.Anything, "j1", 4).Return(nil)
	store.On("GetBytes", mock.Anything, job.S3Key).Return([]byte(csv), nil)
	store.On("Put", mock.Anything, "errors_j1.csv", mock.Anything).Return(nil)
	jobs.On("Finalize", mock.Anything, "j1", domain.JobFailed,
		mock.MatchedBy(func(s *string) bool {
			return s != nil && strings.HasPrefix(*s, "errors: 4; first: ") && strings.HasSuffix(*s, " [...]")
		}),
		mock.Anything, 4, 4).Return(nil)

	svc := newImporter(jobs, customers, store)
	require.NoError(t, svc.Process(context.Background(), "j1"))
	jobs.AssertExpectations(t)
}

func TestImport_Process_InsertOnlySkipsExistingEmails(t *testing.T) {
	t.Parallel()
	jobs := &mocks.MockJobRepository{}
	customers := &mocks.MockCustomerRepository{}
	store := &mocks.MockObjectStore{}
	job := pendingJob("j1", domain.ModeInsertOnly)

	csv := "email\na@x.com\nb@x.com\n"
	jobs.On("Get", mock.Anything, "j1").Return(job, nil)
	jobs.On("MarkProcessing", mock.Anything, "j1").Return(true, nil)
	jobs.On("SetTotals", mock.Anything, "j1", 2).Return(nil)
	store.On("GetBytes", mock.Anything, job.S3Key).Return([]byte(csv), nil)
	customers.On("ExistingEmails", mock.Anything, []string{"a@x.com", "b@x.com"}).
		Return(map[string]struct{}{"a@x.com": {}}, nil)
	customers.On("InsertBatch", mock.Anything, mock.MatchedBy(func(rows []domain.CustomerRow) bool {
		return len(rows) == 1 && rows[0].Email == "b@x.com"
	})).Return(nil)
	store.On("Put", mock.Anything, "errors_j1.csv", mock.Anything).Return(nil)
	jobs.On("Finalize", mock.Anything, "j1", domain.JobFailed,
		mock.MatchedBy(func(s *string) bool {
			return s != nil && strings.Contains(*s, `already exists "a@x.com"`)
		}),
		mock.Anything, 1, 2).Return(nil)

	svc := newImporter(jobs, customers, store)
	require.NoError(t, svc.Process(context.Background(), "j1"))
	customers.AssertExpectations(t)
}

func TestImport_Process_UpsertModeNeverChecksExisting(t *testing.T) {
	t.Parallel()
	jobs := &mocks.MockJobRepository{}
	customers := &mocks.MockCustomerRepository{}
	store := &mocks.MockObjectStore{}
	job := pendingJob("j1", domain.ModeUpsert)

	csv := "email,first_name\na@x.com,A2\n"
	jobs.On("Get", mock.Anything, "j1").Return(job, nil)
	jobs.On("MarkProcessing", mock.Anything, "j1").Return(true, nil)
	jobs.On("SetTotals", mock.Anything, "j1", 1).Return(nil)
	store.On("GetBytes", mock.Anything, job.S3Key).Return([]byte(csv), nil)
	customers.On("UpsertBatch", mock.Anything, mock.MatchedBy(func(rows []domain.CustomerRow) bool {
		return len(rows) == 1 && rows[0].Email == "a@x.com"
	})).Return(nil)
	jobs.On("Finalize", mock.Anything, "j1", domain.JobDone, (*string)(nil), (*string)(nil), 0, 1).Return(nil)

	svc := newImporter(jobs, customers, store)
	require.NoError(t, svc.Process(context.Background(), "j1"))
	customers.AssertNotCalled(t, "ExistingEmails", mock.Anything, mock.Anything)
	customers.AssertExpectations(t)
}

func TestImport_Process_HeaderOnlyFileCompletesEmpty(t *testing.T) {
	t.Parallel()
	jobs := &mocks.MockJobRepository{}
	store := &mocks.MockObjectStore{}
	job := pendingJob("j1", domain.ModeInsertOnly)

	jobs.On("Get", mock.Anything, "j1").Return(job, nil)
	jobs.On("MarkProcessing", mock.Anything, "j1").Return(true, nil)
	jobs.On("SetTotals", mock.Anything, "j1", 0).Return(nil)
	store.On("GetBytes", mock.Anything, job.S3Key).Return([]byte("email,first_name\n"), nil)
	jobs.On("Finalize", mock.Anything, "j1", domain.JobDone, (*string)(nil), (*string)(nil), 0, 0).Return(nil)

	svc := newImporter(jobs, &mocks.MockCustomerRepository{}, store)
	require.NoError(t, svc.Process(context.Background(), "j1"))
	jobs.AssertExpectations(t)
}

func TestImport_Process_MissingObjectMarksFailed(t *testing.T) {
	t.Parallel()
	jobs := &mocks.MockJobRepository{}
	store := &mocks.MockObjectStore{}
	job := pendingJob("j1", domain.ModeInsertOnly)

	jobs.On("Get", mock.Anything, "j1").Return(job, nil)
	jobs.On("MarkProcessing", mock.Anything, "j1").Return(true, nil)
	store.On("GetBytes", mock.Anything, job.S3Key).
		Return(nil, fmt.Errorf("op=s3.get: %w", domain.ErrObjectMissing))
	jobs.On("MarkFailed", mock.Anything, "j1", mock.MatchedBy(func(msg string) bool {
		return strings.HasPrefix(msg, "ObjectMissing: ")
	})).Return(nil)

	svc := newImporter(jobs, &mocks.MockCustomerRepository{}, store)
	err := svc.Process(context.Background(), "j1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrObjectMissing))
	jobs.AssertExpectations(t)
}

func TestImport_Process_ProgressTicks(t *testing.T) {
	t.Parallel()
	jobs := &mocks.MockJobRepository{}
	customers := &mocks.MockCustomerRepository{}
	store := &mocks.MockObjectStore{}
	job := pendingJob("j1", domain.ModeUpsert)

	var sb strings.Builder
	sb.WriteString("email\n")
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&sb, "u%d@x.com\n", i)
	}
	jobs.On("Get", mock.Anything, "j1").Return(job, nil)
	jobs.On("MarkProcessing", mock.Anything, "j1").Return(true, nil)
	jobs.On("SetTotals", mock.Anything, "j1", 5).Return(nil)
	store.On("GetBytes", mock.Anything, job.S3Key).Return([]byte(sb.String()), nil)
	customers.On("UpsertBatch", mock.Anything, mock.Anything).Return(nil)
	jobs.On("SetProgress", mock.Anything, "j1", 2).Return(nil)
	jobs.On("SetProgress", mock.Anything, "j1", 4).Return(nil)
	jobs.On("Finalize", mock.Anything, "j1", domain.JobDone, (*string)(nil), (*string)(nil), 0, 5).Return(nil)

	svc := usecase.NewImportService(jobs, customers, store, 500, 2, 0)
	require.NoError(t, svc.Process(context.Background(), "j1"))
	jobs.AssertExpectations(t)
}
