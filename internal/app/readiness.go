package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	s3store "github.com/fairyhunter13/bulk-import-service/internal/adapter/storage/s3"
)

// Pinger is the minimal interface for a database pool capable of Ping.
type Pinger interface{ Ping(ctx context.Context) error }

// NewRedisClient builds a go-redis client for health probes from a redis:// URL.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("op=app.NewRedisClient: %w", err)
	}
	return redis.NewClient(opt), nil
}

// BuildReadinessChecks returns the db, redis and s3 health checks.
func BuildReadinessChecks(pool Pinger, rdb *redis.Client, store *s3store.Store) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	dbCheck := func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("db not configured")
		}
		return pool.Ping(ctx)
	}
	redisCheck := func(ctx context.Context) error {
		if rdb == nil {
			return fmt.Errorf("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
	s3Check := func(ctx context.Context) error {
		if store == nil {
			return fmt.Errorf("s3 not configured")
		}
		return store.HeadBucket(ctx)
	}
	return dbCheck, redisCheck, s3Check
}
