package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "github.com/fairyhunter13/bulk-import-service/internal/adapter/httpserver"
	"github.com/fairyhunter13/bulk-import-service/internal/app"
	"github.com/fairyhunter13/bulk-import-service/internal/config"
	"github.com/fairyhunter13/bulk-import-service/internal/domain/mocks"
	"github.com/fairyhunter13/bulk-import-service/internal/usecase"
)

func TestParseOrigins(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"*"}, app.ParseOrigins(""))
	assert.Equal(t, []string{"*"}, app.ParseOrigins("*"))
	assert.Equal(t, []string{"*"}, app.ParseOrigins(" , ,"))
	assert.Equal(t, []string{"https://a.example", "https://b.example"},
		app.ParseOrigins("https://a.example, https://b.example"))
}

func buildTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	auth := usecase.NewAuthService(&mocks.MockUserRepository{}, cfg.JWTSecret, cfg.JWTAlg, cfg.AccessTokenTTL())
	submit := usecase.NewSubmitService(&mocks.MockJobRepository{}, &mocks.MockObjectStore{}, &mocks.MockQueue{})
	status := usecase.NewStatusService(&mocks.MockJobRepository{}, &mocks.MockObjectStore{})
	srv := httpserver.NewServer(cfg, auth, submit, status,
		func(context.Context) error { return nil },
		func(context.Context) error { return nil },
		func(context.Context) error { return nil },
	)
	return app.BuildRouter(cfg, srv)
}

func TestRouter_HealthzAndMetrics(t *testing.T) {
	t.Parallel()
	h := buildTestRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ImportsRequireAuth(t *testing.T) {
	t.Parallel()
	h := buildTestRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/j1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/imports", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	t.Parallel()
	h := buildTestRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
