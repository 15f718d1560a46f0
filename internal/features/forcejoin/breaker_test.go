package forcejoin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(10*time.Minute, 30*time.Minute)

	assert.False(t, b.Open(1, now))

	until := b.Trip(1, now)
	assert.Equal(t, now.Add(10*time.Minute), until)
	assert.True(t, b.Open(1, now.Add(9*time.Minute)))
	assert.Len(t, b.OpenUntil(now), 1)

	// ровно в retry_after канал возвращается в проверку
	assert.False(t, b.Open(1, now.Add(10*time.Minute)))
	assert.Empty(t, b.OpenUntil(now))
}

func TestBreakerNotifyCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(10*time.Minute, 30*time.Minute)

	assert.True(t, b.ShouldNotify(1, now))
	assert.False(t, b.ShouldNotify(1, now.Add(29*time.Minute)))
	assert.True(t, b.ShouldNotify(2, now))
	assert.True(t, b.ShouldNotify(1, now.Add(30*time.Minute)))
}

func TestBreakerSweepAndReset(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(10*time.Minute, 30*time.Minute)

	b.Trip(1, now)
	b.Trip(2, now.Add(5*time.Minute))
	b.ShouldNotify(1, now)

	assert.Equal(t, 1, b.Sweep(now.Add(11*time.Minute)))
	assert.True(t, b.Open(2, now.Add(11*time.Minute)))

	b.Reset(2)
	assert.False(t, b.Open(2, now.Add(11*time.Minute)))

	// после сброса предупреждать можно сразу
	b.Reset(1)
	assert.True(t, b.ShouldNotify(1, now.Add(time.Minute)))
}
