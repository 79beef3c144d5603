package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrDuplicateKey       = errors.New("duplicate idempotency key")
	ErrObjectMissing      = errors.New("object missing")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrBrokerUnavailable  = errors.New("broker unavailable")
	ErrInternal           = errors.New("internal error")
)

// User is the identity principal. Created by registration, never destroyed here.
type User struct {
	ID             string
	Email          string
	HashedPassword string
	CreatedAt      time.Time
}

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool { return s == JobDone || s == JobFailed }

type ImportMode string

const (
	ModeInsertOnly ImportMode = "insert_only"
	ModeUpsert     ImportMode = "upsert"
)

// ParseImportMode maps a query-parameter value to an ImportMode.
// An empty value defaults to insert_only.
func ParseImportMode(s string) (ImportMode, bool) {
	switch ImportMode(s) {
	case "":
		return ModeInsertOnly, true
	case ModeInsertOnly:
		return ModeInsertOnly, true
	case ModeUpsert:
		return ModeUpsert, true
	}
	return "", false
}

// ImportJob is the unit of work.
// Invariants: processed_rows <= total_rows once totals are set;
// done implies error_count == 0 and no report key; terminal statuses are
// never transitioned out of; (user_id, idempotency_key) is unique.
type ImportJob struct {
	ID             string
	UserID         string
	IdempotencyKey string
	Status         JobStatus
	Mode           ImportMode
	Filename       string
	S3Key          string
	TotalRows      int
	ProcessedRows  int
	Error          *string
	// ErrorReportObjectKey is set iff at least one row failed.
	ErrorReportObjectKey *string
	ErrorCount           int
	CreatedAt            time.Time
}

// Customer is the target record of an import.
type Customer struct {
	ID        string
	Email     string
	FirstName *string
	LastName  *string
	Phone     *string
	City      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerRow is a validated, normalized CSV row buffered for a batch flush.
// Row is the 1-based index into the CSV body (header excluded) and Raw the
// original comma-joined cell values; both feed flush-time error reporting.
type CustomerRow struct {
	Row       int
	Raw       string
	Email     string
	FirstName *string
	LastName  *string
	Phone     *string
	City      *string
}

// ErrorRow is a single failed row, serialized into the error report CSV.
type ErrorRow struct {
	Row   int
	Error string
	Raw   string
}

// Repositories (ports)

type UserRepository interface {
	Create(ctx Context, u User) (string, error)
	FindByEmail(ctx Context, email string) (User, error)
	Get(ctx Context, id string) (User, error)
}

// JobRepository exposes no generic query surface; each call is a concrete
// contract used by the submission side or the worker.
type JobRepository interface {
	Insert(ctx Context, j ImportJob) (string, error)
	FindByUserAndKey(ctx Context, userID, idempotencyKey string) (ImportJob, error)
	Get(ctx Context, id string) (ImportJob, error)
	// MarkProcessing performs the guarded pending->processing transition,
	// clearing error and resetting processed_rows. Returns false when the job
	// was not pending, which a redelivered task must treat as a no-op.
	MarkProcessing(ctx Context, id string) (bool, error)
	SetTotals(ctx Context, id string, totalRows int) error
	SetProgress(ctx Context, id string, processedRows int) error
	// Finalize commits the terminal state and the final processed_rows count.
	Finalize(ctx Context, id string, status JobStatus, errMsg, reportKey *string, errorCount, processedRows int) error
	// MarkFailed records a failure summary unless the job is already terminal.
	MarkFailed(ctx Context, id string, errMsg string) error
}

type CustomerRepository interface {
	// ExistingEmails reports which of the given emails already have a row.
	ExistingEmails(ctx Context, emails []string) (map[string]struct{}, error)
	// InsertBatch writes all rows in one statement; emails must be distinct.
	InsertBatch(ctx Context, rows []CustomerRow) error
	// UpsertBatch inserts or updates by email; id and email are preserved and
	// updated_at is refreshed by the database.
	UpsertBatch(ctx Context, rows []CustomerRow) error
}

// ObjectStore (port)

type ObjectStore interface {
	// PutBytes stages an upload under a fresh imports/ key derived from filename.
	PutBytes(ctx Context, data []byte, filename string) (string, error)
	GetBytes(ctx Context, key string) ([]byte, error)
	// Put writes data at an exact key (used for error reports).
	Put(ctx Context, key string, data []byte) error
	// PresignGet returns a time-bounded URL that downloads the object as
	// an attachment named downloadFilename.
	PresignGet(ctx Context, key, downloadFilename string) (string, error)
}

// Queue (port)

type Queue interface {
	EnqueueImport(ctx Context, jobID string) error
}

// ImportTaskPayload is the broker message for one import job.
type ImportTaskPayload struct {
	JobID string `json:"job_id"`
}

// Context is an alias so the domain package does not import adapters;
// usecases and adapters pass context.Context through.
type Context = context.Context
