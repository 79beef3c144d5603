// Package postgres provides PostgreSQL database adapters.
//
// It implements the repository ports on top of a minimal pgx pool and keeps
// every query a concrete contract of the submission side or the worker.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bulk-import-service/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// UserRepo persists and loads users.
type UserRepo struct{ Pool PgxPool }

// NewUserRepo constructs a UserRepo with the given pool.
func NewUserRepo(p PgxPool) *UserRepo { return &UserRepo{Pool: p} }

// Create inserts a new user and returns its id. The email is stored
// lowercased; a duplicate maps to domain.ErrConflict.
func (r *UserRepo) Create(ctx domain.Context, u domain.User) (string, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.Create")
	defer span.End()
	id := u.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO users (id, email, hashed_password, created_at) VALUES ($1,$2,$3,$4)`
	_, err := r.Pool.Exec(ctx, q, id, strings.ToLower(u.Email), u.HashedPassword, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("op=user.create: %w", domain.ErrConflict)
		}
		return "", fmt.Errorf("op=user.create: %w", err)
	}
	return id, nil
}

// FindByEmail loads a user by email, case-insensitively.
func (r *UserRepo) FindByEmail(ctx domain.Context, email string) (domain.User, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.FindByEmail")
	defer span.End()
	q := `SELECT id, email, hashed_password, created_at FROM users WHERE email=$1`
	row := r.Pool.QueryRow(ctx, q, strings.ToLower(email))
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("op=user.find_email: %w", domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("op=user.find_email: %w", err)
	}
	return u, nil
}

// Get loads a user by id.
func (r *UserRepo) Get(ctx domain.Context, id string) (domain.User, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.Get")
	defer span.End()
	q := `SELECT id, email, hashed_password, created_at FROM users WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("op=user.get: %w", domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("op=user.get: %w", err)
	}
	return u, nil
}
