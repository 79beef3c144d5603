// Package usecase contains application business logic services.
package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/fairyhunter13/bulk-import-service/internal/domain"
)

// AuthService handles registration, credential checks and bearer tokens.
// Email lookup is case-insensitive; hash verification is case-sensitive.
type AuthService struct {
	Users    domain.UserRepository
	Secret   string
	Alg      string
	TokenTTL time.Duration
}

// NewAuthService constructs an AuthService with its dependencies.
func NewAuthService(users domain.UserRepository, secret, alg string, ttl time.Duration) AuthService {
	if alg == "" {
		alg = "HS256"
	}
	return AuthService{Users: users, Secret: secret, Alg: alg, TokenTTL: ttl}
}

// Register creates a user with a bcrypt-hashed password. A duplicate email
// surfaces as domain.ErrConflict.
func (s AuthService) Register(ctx domain.Context, email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("op=auth.register: %w", err)
	}
	id, err := s.Users.Create(ctx, domain.User{Email: email, HashedPassword: string(hashed)})
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: id, Email: email}, nil
}

// Token verifies credentials and mints a bearer token with sub/iat/exp claims.
func (s AuthService) Token(ctx domain.Context, email, password string) (string, error) {
	u, err := s.Users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", fmt.Errorf("op=auth.token: %w: bad credentials", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)); err != nil {
		return "", fmt.Errorf("op=auth.token: %w: bad credentials", domain.ErrUnauthorized)
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": u.ID,
		"iat": now.Unix(),
		"exp": now.Add(s.TokenTTL).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.GetSigningMethod(s.Alg), claims)
	signed, err := tok.SignedString([]byte(s.Secret))
	if err != nil {
		return "", fmt.Errorf("op=auth.token: %w", err)
	}
	return signed, nil
}

// Verify validates a bearer token and resolves its subject to a user.
func (s AuthService) Verify(ctx domain.Context, token string) (domain.User, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != s.Alg {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return []byte(s.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return domain.User{}, fmt.Errorf("op=auth.verify: %w: invalid token", domain.ErrUnauthorized)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return domain.User{}, fmt.Errorf("op=auth.verify: %w: invalid token", domain.ErrUnauthorized)
	}
	u, err := s.Users.Get(ctx, sub)
	if err != nil {
		return domain.User{}, fmt.Errorf("op=auth.verify: %w: user not found", domain.ErrUnauthorized)
	}
	return u, nil
}
