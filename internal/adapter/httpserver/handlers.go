package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/bulk-import-service/internal/config"
	"github.com/fairyhunter13/bulk-import-service/internal/domain"
	"github.com/fairyhunter13/bulk-import-service/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Auth       usecase.AuthService
	Submit     usecase.SubmitService
	Status     usecase.StatusService
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	S3Check    func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, auth usecase.AuthService, submit usecase.SubmitService, status usecase.StatusService, dbCheck, redisCheck, s3Check func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Auth: auth, Submit: submit, Status: status, DBCheck: dbCheck, RedisCheck: redisCheck, S3Check: s3Check}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// jobDict is the wire shape of an import job.
type jobDict struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Mode          string  `json:"mode"`
	Filename      string  `json:"filename"`
	TotalRows     int     `json:"total_rows"`
	ProcessedRows int     `json:"processed_rows"`
	Error         *string `json:"error"`
	CreatedAt     string  `json:"created_at"`
}

func toJobDict(j domain.ImportJob) jobDict {
	return jobDict{
		ID:            j.ID,
		Status:        string(j.Status),
		Mode:          string(j.Mode),
		Filename:      j.Filename,
		TotalRows:     j.TotalRows,
		ProcessedRows: j.ProcessedRows,
		Error:         j.Error,
		CreatedAt:     j.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type credentialsReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (s *Server) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsReq, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
		return credentialsReq{}, false
	}
	if err := getValidator().Struct(req); err != nil {
		verrs := map[string]string{}
		if ve, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ve {
				verrs[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
		return credentialsReq{}, false
	}
	return req, true
}

// RegisterHandler creates a user account.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := s.decodeCredentials(w, r)
		if !ok {
			return
		}
		u, err := s.Auth.Register(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": u.ID, "email": u.Email})
	}
}

// TokenHandler verifies credentials and issues a bearer token.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := s.decodeCredentials(w, r)
		if !ok {
			return
		}
		tok, err := s.Auth.Token(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": tok, "token_type": "bearer"})
	}
}

func csvMIME(m string) bool {
	m = strings.ToLower(m)
	// CSV bodies sniff as text/csv or text/plain; charset parameters allowed.
	return strings.HasPrefix(m, "text/") || strings.HasPrefix(m, "application/csv")
}

// CreateImportHandler accepts a multipart CSV upload, stages it and enqueues
// the import. A fresh job answers 201; an idempotent replay answers 200 with
// the original job.
func (s *Server) CreateImportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFrom(r.Context())
		if !ok {
			writeError(w, r, fmt.Errorf("%w: missing user", domain.ErrUnauthorized), nil)
			return
		}
		mode, ok := domain.ParseImportMode(r.URL.Query().Get("mode"))
		if !ok {
			writeError(w, r, fmt.Errorf("%w: mode must be insert_only or upsert", domain.ErrInvalidArgument), map[string]string{"mode": r.URL.Query().Get("mode")})
			return
		}
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		maxBytes := s.Cfg.MaxUploadBytes
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "too large") {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
					Code: "INVALID_ARGUMENT", Message: "payload too large",
					Details: map[string]any{"max_bytes": maxBytes},
				}})
				return
			}
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: file required", domain.ErrInvalidArgument), map[string]string{"field": "file"})
			return
		}
		defer func() { _ = file.Close() }()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: file read: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		if len(data) > 0 {
			if m := mimetype.Detect(data); !csvMIME(m.String()) {
				writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{
					Code: "INVALID_ARGUMENT", Message: "unsupported media type (content)",
					Details: map[string]any{"mime": m.String(), "filename": header.Filename},
				}})
				return
			}
		}

		job, created, err := s.Submit.Submit(r.Context(), user.ID, r.Header.Get("Idempotency-Key"), mode, data, header.Filename)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, toJobDict(job))
	}
}

// ImportStatusHandler returns the job dict for polling.
func (s *Server) ImportStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFrom(r.Context())
		if !ok {
			writeError(w, r, fmt.Errorf("%w: missing user", domain.ErrUnauthorized), nil)
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		job, err := s.Status.Job(r.Context(), user.ID, id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toJobDict(job))
	}
}

// ImportErrorsHandler mints a presigned download URL for the error report.
func (s *Server) ImportErrorsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFrom(r.Context())
		if !ok {
			writeError(w, r, fmt.Errorf("%w: missing user", domain.ErrUnauthorized), nil)
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		url, err := s.Status.ErrorReportURL(r.Context(), user.ID, id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}

// HealthHandler probes the backing services and answers 503 when any is down.
func (s *Server) HealthHandler() http.HandlerFunc {
	type probe struct {
		name  string
		check func(ctx context.Context) error
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		probes := []probe{
			{"db", s.DBCheck},
			{"redis", s.RedisCheck},
			{"s3", s.S3Check},
		}
		body := map[string]string{"status": "ok"}
		healthy := true
		for _, p := range probes {
			if p.check == nil {
				body[p.name] = "up"
				continue
			}
			if err := p.check(ctx); err != nil {
				body[p.name] = "down: " + err.Error()
				healthy = false
			} else {
				body[p.name] = "up"
			}
		}
		if !healthy {
			body["status"] = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}
