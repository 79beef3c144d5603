package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bulk-import-service/internal/app"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestBuildReadinessChecks_DB(t *testing.T) {
	t.Parallel()
	dbCheck, _, _ := app.BuildReadinessChecks(pingerFunc(func(context.Context) error { return nil }), nil, nil)
	assert.NoError(t, dbCheck(context.Background()))

	dbCheck, _, _ = app.BuildReadinessChecks(pingerFunc(func(context.Context) error { return errors.New("refused") }), nil, nil)
	assert.Error(t, dbCheck(context.Background()))

	dbCheck, _, _ = app.BuildReadinessChecks(nil, nil, nil)
	assert.Error(t, dbCheck(context.Background()))
}

func TestBuildReadinessChecks_Redis(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	_, redisCheck, _ := app.BuildReadinessChecks(nil, rdb, nil)
	require.NoError(t, redisCheck(context.Background()))

	mr.Close()
	assert.Error(t, redisCheck(context.Background()))
}

func TestBuildReadinessChecks_S3NotConfigured(t *testing.T) {
	t.Parallel()
	_, _, s3Check := app.BuildReadinessChecks(nil, nil, nil)
	assert.Error(t, s3Check(context.Background()))
}

func TestNewRedisClient_ParsesURL(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	rdb, err := app.NewRedisClient("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())

	_, err = app.NewRedisClient("://bad")
	assert.Error(t, err)
}
