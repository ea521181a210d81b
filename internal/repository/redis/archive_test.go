package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "session:snapshot:s1", snapshotKey("s1"))
	assert.Equal(t, "session:user:u1", userIndexKey("u1"))
}

func TestWindowKey(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "ratelimit:user:u1:1709285400", windowKey("user:u1", start))
	assert.NotEqual(t, windowKey("user:u1", start), windowKey("user:u1", start.Add(time.Minute)))
}

func TestRateLimiter_Limit(t *testing.T) {
	limiter := NewRateLimiter(nil, 60, 10, nil)
	assert.Equal(t, 70, limiter.Limit())
}
