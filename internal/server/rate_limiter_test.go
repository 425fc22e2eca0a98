package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rl := newRateLimiterAt(RateLimitConfig{Burst: 3, RefillInterval: 3 * time.Second}, clock.Now)

	for i := 0; i < 3; i++ {
		assert.Truef(t, rl.allow(), "message %d within burst", i)
	}
	assert.False(t, rl.allow())

	clock.Advance(500 * time.Millisecond)
	assert.False(t, rl.allow(), "half a token is not enough")

	clock.Advance(500 * time.Millisecond)
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())
}

func TestRateLimiter_RefillIsCapped(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rl := newRateLimiterAt(RateLimitConfig{Burst: 2, RefillInterval: time.Second}, clock.Now)

	clock.Advance(time.Hour)

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())
}

func TestRateLimiter_InvalidConfig(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rl := newRateLimiterAt(RateLimitConfig{}, clock.Now)

	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	clock.Advance(time.Second)
	assert.True(t, rl.allow())
}
