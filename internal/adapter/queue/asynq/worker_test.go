package asynqadp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelay_GrowsWithAttempts(t *testing.T) {
	t.Parallel()
	d0 := retryDelay(0, nil, nil)
	d3 := retryDelay(3, nil, nil)
	assert.Greater(t, d0, time.Duration(0))
	assert.Greater(t, d3, d0)
	assert.LessOrEqual(t, retryDelay(30, nil, nil), 3*time.Minute)
}
