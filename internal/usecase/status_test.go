package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bulk-import-service/internal/domain"
	"github.com/fairyhunter13/bulk-import-service/internal/domain/mocks"
	"github.com/fairyhunter13/bulk-import-service/internal/usecase"
)

func TestStatus_Job_CrossUserIsNotFound(t *testing.T) {
	t.Parallel()
	jobs := &mocks.MockJobRepository{}
	jobs.On("Get", mock.Anything, "j1").Return(domain.ImportJob{ID: "j1", UserID: "other"}, nil)

	svc := usecase.NewStatusService(jobs, &mocks.MockObjectStore{})
	_, err := svc.Job(context.Background(), "u1", "j1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStatus_ErrorReportURL_NotReadyWhileRunning(t *testing.T) {
	t.Parallel()
	jobs := &mocks.MockJobRepository{}
	jobs.On("Get", mock.Anything, "j1").Return(
		domain.ImportJob{ID: "j1", UserID: "u1", Status: domain.JobProcessing}, nil)

	svc := usecase.NewStatusService(jobs, &mocks.MockObjectStore{})
	_, err := svc.ErrorReportURL(context.Background(), "u1", "j1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestStatus_ErrorReportURL_DoneWithoutReportIsNotFound(t *testing.T) {
	t.Parallel()
	jobs := &mocks.MockJobRepository{}
	jobs.On("Get", mock.Anything, "j1").Return(
		domain.ImportJob{ID: "j1", UserID: "u1", Status: domain.JobDone}, nil)

	svc := usecase.NewStatusService(jobs, &mocks.MockObjectStore{})
	_, err := svc.ErrorReportURL(context.Background(), "u1", "j1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStatus_ErrorReportURL_PresignsReport(t *testing.T) {
	t.Parallel()
	jobs := &mocks.MockJobRepository{}
	store := &mocks.MockObjectStore{}
	key := "errors_j1.csv"
	jobs.On("Get", mock.Anything, "j1").Return(
		domain.ImportJob{ID: "j1", UserID: "u1", Status: domain.JobFailed, ErrorReportObjectKey: &key}, nil)
	store.On("PresignGet", mock.Anything, key, "errors_j1.csv").
		Return("https://minio.local/errors_j1.csv?sig=abc", nil)

	svc := usecase.NewStatusService(jobs, store)
	url, err := svc.ErrorReportURL(context.Background(), "u1", "j1")
	require.NoError(t, err)
	assert.Contains(t, url, "errors_j1.csv")
	store.AssertExpectations(t)
}
