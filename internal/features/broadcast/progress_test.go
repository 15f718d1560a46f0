package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressMath(t *testing.T) {
	p := Progress{Profile: profiles[ProfileSafe], Total: 100, Sent: 20, Failed: 5, Elapsed: 10 * time.Minute}

	assert.Equal(t, 25, p.Processed())
	assert.Equal(t, 75, p.Remaining())
	assert.InDelta(t, 150.0, p.SpeedPerHour(), 0.001)

	eta, ok := p.ETA()
	assert.True(t, ok)
	assert.Equal(t, 30*time.Minute, eta)

	text := p.Report(false)
	assert.Contains(t, text, "Ход рассылки")
	assert.Contains(t, text, "~150 в час")
	assert.Contains(t, text, "30 минут")
}

func TestProgressUnknownETA(t *testing.T) {
	p := Progress{Profile: profiles[ProfileFast], Total: 10}

	_, ok := p.ETA()
	assert.False(t, ok)
	assert.Zero(t, p.SpeedPerHour())
	assert.Contains(t, p.Report(false), "неизвестно")
	assert.NotContains(t, p.Report(true), "Осталось")
}

func TestProgressSkippedNotRemaining(t *testing.T) {
	p := Progress{Total: 10, Sent: 3, Failed: 1, Skipped: 6}
	assert.Zero(t, p.Remaining())
	assert.Contains(t, p.Report(true), "Пропущено")
}
