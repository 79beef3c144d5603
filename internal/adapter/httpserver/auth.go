package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/fairyhunter13/bulk-import-service/internal/domain"
)

// TokenVerifier resolves a bearer token to its user.
type TokenVerifier interface {
	Verify(ctx domain.Context, token string) (domain.User, error)
}

type userKey struct{}

// UserFrom returns the authenticated user stored by BearerAuth.
func UserFrom(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userKey{}).(domain.User)
	return u, ok
}

// BearerAuth rejects requests without a valid Authorization: Bearer token and
// places the resolved user in the request context.
func BearerAuth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
				writeError(w, r, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized), nil)
				return
			}
			u, err := v.Verify(r.Context(), strings.TrimSpace(h[len(prefix):]))
			if err != nil {
				writeError(w, r, err, nil)
				return
			}
			ctx := context.WithValue(r.Context(), userKey{}, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
