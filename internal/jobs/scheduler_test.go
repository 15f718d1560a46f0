package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweeper struct {
	calls int
	at    time.Time
	n     int
}

func (s *sweeper) SweepBans(now time.Time) int { s.calls++; s.at = now; return s.n }
func (s *sweeper) Sweep(now time.Time) int     { s.calls++; s.at = now; return s.n }

type purger struct {
	calls int
	err   error
}

func (p *purger) PurgeExpired(context.Context) (int64, error) {
	p.calls++
	return 3, p.err
}

type digest struct {
	title string
	err   error
}

func (d *digest) Build(_ context.Context, title string) (string, error) {
	d.title = title
	return "сводка", d.err
}

type notifier struct{ texts []string }

func (n *notifier) Notify(_ context.Context, text string) int {
	n.texts = append(n.texts, text)
	return 1
}

type harness struct {
	flood, breaker *sweeper
	sessions       *purger
	digest         *digest
	notifier       *notifier
	s              *Scheduler
}

func newHarness(spec string) *harness {
	h := &harness{
		flood:    &sweeper{},
		breaker:  &sweeper{n: 1},
		sessions: &purger{},
		digest:   &digest{},
		notifier: &notifier{},
	}
	h.s = NewScheduler(Deps{
		Flood:    h.flood,
		Breaker:  h.breaker,
		Sessions: h.sessions,
		Digest:   h.digest,
		Notifier: h.notifier,
	}, time.UTC, spec)
	return h
}

func TestSweepUsesSameInstant(t *testing.T) {
	h := newHarness("")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h.s.now = func() time.Time { return now }

	h.s.sweep()

	assert.Equal(t, 1, h.flood.calls)
	assert.Equal(t, 1, h.breaker.calls)
	assert.Equal(t, now, h.flood.at)
	assert.Equal(t, now, h.breaker.at)
}

func TestPurgeSessions(t *testing.T) {
	h := newHarness("")
	h.s.purgeSessions(context.Background())
	assert.Equal(t, 1, h.sessions.calls)

	h.sessions.err = errors.New("db down")
	assert.NotPanics(t, func() { h.s.purgeSessions(context.Background()) })
}

func TestDigest(t *testing.T) {
	t.Run("sent to operators", func(t *testing.T) {
		h := newHarness("0 9 * * *")
		h.s.digest(context.Background())
		assert.Equal(t, []string{"сводка"}, h.notifier.texts)
		assert.Contains(t, h.digest.title, "сводка")
	})

	t.Run("build error skips notify", func(t *testing.T) {
		h := newHarness("0 9 * * *")
		h.digest.err = errors.New("boom")
		h.s.digest(context.Background())
		assert.Empty(t, h.notifier.texts)
	})
}

func TestStartRegistersJobs(t *testing.T) {
	t.Run("with digest", func(t *testing.T) {
		h := newHarness("0 9 * * *")
		require.NoError(t, h.s.Start(context.Background()))
		defer h.s.Stop()
		assert.Len(t, h.s.cron.Entries(), 3)
	})

	t.Run("digest disabled", func(t *testing.T) {
		h := newHarness("")
		require.NoError(t, h.s.Start(context.Background()))
		defer h.s.Stop()
		assert.Len(t, h.s.cron.Entries(), 2)
	})

	t.Run("bad digest spec", func(t *testing.T) {
		h := newHarness("not a cron")
		assert.Error(t, h.s.Start(context.Background()))
	})
}
