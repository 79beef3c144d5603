// Package mocks provides testify-based mocks of the domain ports.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/bulk-import-service/internal/domain"
)

// MockUserRepository mocks domain.UserRepository.
type MockUserRepository struct{ mock.Mock }

func (m *MockUserRepository) Create(ctx context.Context, u domain.User) (string, error) {
	ret := m.Called(ctx, u)
	return ret.String(0), ret.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	ret := m.Called(ctx, email)
	return ret.Get(0).(domain.User), ret.Error(1)
}

func (m *MockUserRepository) Get(ctx context.Context, id string) (domain.User, error) {
	ret := m.Called(ctx, id)
	return ret.Get(0).(domain.User), ret.Error(1)
}

// MockJobRepository mocks domain.JobRepository.
type MockJobRepository struct{ mock.Mock }

func (m *MockJobRepository) Insert(ctx context.Context, j domain.ImportJob) (string, error) {
	ret := m.Called(ctx, j)
	return ret.String(0), ret.Error(1)
}

func (m *MockJobRepository) FindByUserAndKey(ctx context.Context, userID, idempotencyKey string) (domain.ImportJob, error) {
	ret := m.Called(ctx, userID, idempotencyKey)
	return ret.Get(0).(domain.ImportJob), ret.Error(1)
}

func (m *MockJobRepository) Get(ctx context.Context, id string) (domain.ImportJob, error) {
	ret := m.Called(ctx, id)
	return ret.Get(0).(domain.ImportJob), ret.Error(1)
}

func (m *MockJobRepository) MarkProcessing(ctx context.Context, id string) (bool, error) {
	ret := m.Called(ctx, id)
	return ret.Bool(0), ret.Error(1)
}

func (m *MockJobRepository) SetTotals(ctx context.Context, id string, totalRows int) error {
	ret := m.Called(ctx, id, totalRows)
	return ret.Error(0)
}

func (m *MockJobRepository) SetProgress(ctx context.Context, id string, processedRows int) error {
	ret := m.Called(ctx, id, processedRows)
	return ret.Error(0)
}

func (m *MockJobRepository) Finalize(ctx context.Context, id string, status domain.JobStatus, errMsg, reportKey *string, errorCount, processedRows int) error {
	ret := m.Called(ctx, id, status, errMsg, reportKey, errorCount, processedRows)
	return ret.Error(0)
}

func (m *MockJobRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	ret := m.Called(ctx, id, errMsg)
	return ret.Error(0)
}

// MockCustomerRepository mocks domain.CustomerRepository.
type MockCustomerRepository struct{ mock.Mock }

func (m *MockCustomerRepository) ExistingEmails(ctx context.Context, emails []string) (map[string]struct{}, error) {
	ret := m.Called(ctx, emails)
	var out map[string]struct{}
	if v := ret.Get(0); v != nil {
		out = v.(map[string]struct{})
	}
	return out, ret.Error(1)
}

func (m *MockCustomerRepository) InsertBatch(ctx context.Context, rows []domain.CustomerRow) error {
	ret := m.Called(ctx, rows)
	return ret.Error(0)
}

func (m *MockCustomerRepository) UpsertBatch(ctx context.Context, rows []domain.CustomerRow) error {
	ret := m.Called(ctx, rows)
	return ret.Error(0)
}

// MockObjectStore mocks domain.ObjectStore.
type MockObjectStore struct{ mock.Mock }

func (m *MockObjectStore) PutBytes(ctx context.Context, data []byte, filename string) (string, error) {
	ret := m.Called(ctx, data, filename)
	return ret.String(0), ret.Error(1)
}

func (m *MockObjectStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	ret := m.Called(ctx, key)
	var out []byte
	if v := ret.Get(0); v != nil {
		out = v.([]byte)
	}
	return out, ret.Error(1)
}

func (m *MockObjectStore) Put(ctx context.Context, key string, data []byte) error {
	ret := m.Called(ctx, key, data)
	return ret.Error(0)
}

func (m *MockObjectStore) PresignGet(ctx context.Context, key, downloadFilename string) (string, error) {
	ret := m.Called(ctx, key, downloadFilename)
	return ret.String(0), ret.Error(1)
}

// MockQueue mocks domain.Queue.
type MockQueue struct{ mock.Mock }

func (m *MockQueue) EnqueueImport(ctx context.Context, jobID string) error {
	ret := m.Called(ctx, jobID)
	return ret.Error(0)
}
