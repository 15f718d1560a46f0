package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/transport"
)

const operatorID = 1

func copyPayload() Payload {
	return Payload{Mode: ModeCopy, SourceChatID: operatorID, MessageID: 77}
}

func wait(t *testing.T, job *Job) Result {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("рассылка не завершилась")
	}
	return job.Result()
}

func TestBroadcastRecoversFromRateLimit(t *testing.T) {
	h := newHarness(userIDs(5), ProfileSafe)
	h.deliverer.fail(1002, tooMany(1))

	job, err := h.svc.Start(context.Background(), operatorID, copyPayload())
	require.NoError(t, err)
	res := wait(t, job)

	require.NoError(t, res.Err)
	assert.Equal(t, 5, res.Sent)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 5, res.Total)
	assert.Len(t, h.deliverer.calls, 6)
	assert.Equal(t, 1, h.clock.count(2*time.Second))

	p := profiles[ProfileSafe]
	lo, hi := job.pacer.Bounds()
	assert.GreaterOrEqual(t, lo, p.DelayMin)
	assert.LessOrEqual(t, lo, p.CeilingMin)
	assert.GreaterOrEqual(t, hi, p.DelayMax)
	assert.LessOrEqual(t, hi, p.CeilingMax)
	// после 429 было три успешных доставки: 450 - 3*25
	assert.Equal(t, p.DelayMin+p.IncreaseStep-3*p.DecreaseStep, lo)

	assert.False(t, h.svc.Running())
	assert.Equal(t, 1, h.reports.count("Итоговый отчёт"))
	assert.Contains(t, h.reports.last(), "Рассылка завершена")
}

func TestBroadcastCountsEveryRecipient(t *testing.T) {
	h := newHarness(userIDs(7), ProfileBalanced)
	h.deliverer.fail(1000, &transport.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"})
	h.deliverer.fail(1003, &transport.Error{Code: 400, Description: "Bad Request: chat not found"})
	h.deliverer.fail(1006, tooMany(3), tooMany(3), tooMany(3), tooMany(3), tooMany(3))

	job, err := h.svc.Start(context.Background(), operatorID, copyPayload())
	require.NoError(t, err)
	res := wait(t, job)

	assert.Equal(t, 4, res.Sent)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, res.Total, res.Sent+res.Failed)
	// пять попыток, пауза retry_after+1 после каждой, включая последнюю
	assert.Equal(t, 5, h.clock.count(4*time.Second))

	_, hi := job.pacer.Bounds()
	assert.LessOrEqual(t, hi, profiles[ProfileBalanced].CeilingMax)
}

func TestBroadcastExcludesInitiator(t *testing.T) {
	h := newHarness([]int64{operatorID, 2, 3}, ProfileSafe)

	job, err := h.svc.Start(context.Background(), operatorID, copyPayload())
	require.NoError(t, err)
	res := wait(t, job)

	assert.Equal(t, 2, res.Total)
	assert.NotContains(t, h.deliverer.calls, int64(operatorID))
}

func TestBroadcastPacing(t *testing.T) {
	h := newHarness(userIDs(26), ProfileSafe)
	p := profiles[ProfileSafe]

	job, err := h.svc.Start(context.Background(), operatorID, copyPayload())
	require.NoError(t, err)
	wait(t, job)

	// 25 пауз между сообщениями, кроме конца первой пачки (после 20-го)
	assert.Equal(t, 24, h.clock.count(p.DelayMin))
	assert.Equal(t, 1, h.clock.count(p.BatchPause))
	assert.Equal(t, 1, h.clock.count(p.SafetyIdle))
	assert.Len(t, h.clock.slept(), 26)
}

func TestBroadcastUnknownProfileFallsBackToSafe(t *testing.T) {
	h := newHarness(userIDs(1), "turbo")

	job, err := h.svc.Start(context.Background(), operatorID, copyPayload())
	require.NoError(t, err)
	res := wait(t, job)

	assert.Equal(t, ProfileSafe, res.Profile.Key)
}

func TestBroadcastSingleFlight(t *testing.T) {
	h := newHarness(userIDs(3), ProfileSafe)
	h.deliverer.gate = make(chan struct{})
	h.deliverer.entered = make(chan int64, 10)

	job, err := h.svc.Start(context.Background(), operatorID, copyPayload())
	require.NoError(t, err)
	<-h.deliverer.entered

	_, err = h.svc.Start(context.Background(), 2, copyPayload())
	assert.ErrorIs(t, err, common.ErrBroadcastInProgress)

	status, ok := h.svc.Status()
	require.True(t, ok)
	assert.Equal(t, 3, status.Total)
	assert.Zero(t, status.Processed())

	close(h.deliverer.gate)
	res := wait(t, job)
	assert.Equal(t, 3, res.Sent)

	_, ok = h.svc.Status()
	assert.False(t, ok)

	// блокировка снята, можно запускать снова
	job, err = h.svc.Start(context.Background(), operatorID, copyPayload())
	require.NoError(t, err)
	wait(t, job)
}

func TestBroadcastStop(t *testing.T) {
	h := newHarness(userIDs(10), ProfileSafe)
	h.deliverer.gate = make(chan struct{})
	h.deliverer.entered = make(chan int64, 10)

	assert.ErrorIs(t, h.svc.Stop(), common.ErrNoActiveBroadcast)

	job, err := h.svc.Start(context.Background(), operatorID, copyPayload())
	require.NoError(t, err)
	<-h.deliverer.entered

	require.NoError(t, h.svc.Stop())
	close(h.deliverer.gate)
	res := wait(t, job)

	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 9, res.Skipped)
	assert.Equal(t, res.Total, res.Sent+res.Failed+res.Skipped)
	assert.Contains(t, h.reports.last(), "пропущено")
}

func TestBroadcastFinalReportAfterCancel(t *testing.T) {
	h := newHarness(userIDs(10), ProfileSafe)
	h.deliverer.gate = make(chan struct{})
	h.deliverer.entered = make(chan int64, 10)

	ctx, cancel := context.WithCancel(context.Background())
	job, err := h.svc.Start(ctx, operatorID, copyPayload())
	require.NoError(t, err)
	<-h.deliverer.entered

	cancel()
	close(h.deliverer.gate)
	res := wait(t, job)

	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 9, res.Skipped)
	assert.Equal(t, 1, h.reports.count("Итоговый отчёт"))
	assert.Contains(t, h.reports.last(), "пропущено")
}

func TestBroadcastWaitsOutLastRateLimit(t *testing.T) {
	h := newHarness(userIDs(2), ProfileSafe)
	p := profiles[ProfileSafe]
	errs := make([]error, p.MaxRetries)
	for i := range errs {
		errs[i] = tooMany(7)
	}
	h.deliverer.fail(1000, errs...)

	job, err := h.svc.Start(context.Background(), operatorID, copyPayload())
	require.NoError(t, err)
	res := wait(t, job)

	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, p.MaxRetries, h.clock.count(8*time.Second))

	// последняя пауза 429 стоит перед обращением к следующему получателю
	slept := h.clock.slept()
	require.Len(t, slept, p.MaxRetries+1)
	assert.Equal(t, 8*time.Second, slept[p.MaxRetries-1])
}

func TestBroadcastPanicReleasesGuard(t *testing.T) {
	h := newHarness(userIDs(3), ProfileSafe)
	h.deliverer.panicOn = 1001

	job, err := h.svc.Start(context.Background(), operatorID, copyPayload())
	require.NoError(t, err)
	res := wait(t, job)

	require.Error(t, res.Err)
	assert.False(t, h.svc.Running())
	assert.Contains(t, h.reports.last(), "Ошибка рассылки")
}

func TestBroadcastForwardSourceAdvisoryOnce(t *testing.T) {
	h := newHarness(userIDs(3), ProfileSafe)
	for _, id := range userIDs(3) {
		h.deliverer.fail(id, &transport.Error{Code: 400, Description: "Bad Request: message to forward not found"})
	}

	job, err := h.svc.Start(context.Background(), operatorID, Payload{Mode: ModeForward, SourceChatID: operatorID, MessageID: 5})
	require.NoError(t, err)
	res := wait(t, job)

	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, 3, h.deliverer.forwarded)
	assert.Zero(t, h.deliverer.copied)
	assert.Equal(t, 1, h.reports.count("/broadcast"))
}

func TestBroadcastSetupFailures(t *testing.T) {
	t.Run("no recipients", func(t *testing.T) {
		h := newHarness([]int64{operatorID}, ProfileSafe)
		_, err := h.svc.Start(context.Background(), operatorID, copyPayload())
		assert.ErrorIs(t, err, common.ErrNoRecipients)
		assert.False(t, h.svc.Running())
	})

	t.Run("missing source", func(t *testing.T) {
		h := newHarness(userIDs(2), ProfileSafe)
		_, err := h.svc.Start(context.Background(), operatorID, Payload{Mode: ModeCopy})
		assert.ErrorIs(t, err, common.ErrMissingSource)
		assert.False(t, h.svc.Running())
	})

	t.Run("store error", func(t *testing.T) {
		h := newHarness(nil, ProfileSafe)
		h.svc.recipients = staticRecipients{err: errors.New("db down")}
		_, err := h.svc.Start(context.Background(), operatorID, copyPayload())
		assert.Error(t, err)
		assert.False(t, h.svc.Running())
	})
}

func TestBroadcastPeriodicReports(t *testing.T) {
	h := newHarness(userIDs(4), ProfileSafe)
	// каждая пауза между сообщениями больше интервала отчёта
	h.svc.reportInterval = time.Second

	job, err := h.svc.Start(context.Background(), operatorID, copyPayload())
	require.NoError(t, err)
	wait(t, job)

	assert.Equal(t, 3, h.reports.count("Ход рассылки"))
	assert.Equal(t, 1, h.reports.count("Итоговый отчёт"))
}
