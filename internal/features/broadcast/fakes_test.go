package broadcast

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"serotonyl.ru/gatebot/internal/transport"
)

type fakeDeliverer struct {
	mu        sync.Mutex
	script    map[int64][]error
	calls     []int64
	forwarded int
	copied    int
	gate      chan struct{}
	entered   chan int64
	panicOn   int64
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{script: map[int64][]error{}}
}

// fail задаёт ошибки для первых попыток доставки пользователю.
func (f *fakeDeliverer) fail(userID int64, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script[userID] = append(f.script[userID], errs...)
}

func (f *fakeDeliverer) deliver(userID int64) error {
	if f.entered != nil {
		f.entered <- userID
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.panicOn != 0 && userID == f.panicOn {
		panic("boom")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	if errs := f.script[userID]; len(errs) > 0 {
		f.script[userID] = errs[1:]
		return errs[0]
	}
	return nil
}

func (f *fakeDeliverer) CopyMessage(_ context.Context, to, _ int64, _ int) (int, error) {
	f.mu.Lock()
	f.copied++
	f.mu.Unlock()
	return 1, f.deliver(to)
}

func (f *fakeDeliverer) ForwardMessage(_ context.Context, to, _ int64, _ int) (int, error) {
	f.mu.Lock()
	f.forwarded++
	f.mu.Unlock()
	return 1, f.deliver(to)
}

type staticRecipients struct {
	ids []int64
	err error
}

func (r staticRecipients) Recipients(_ context.Context, initiator int64) ([]int64, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]int64, 0, len(r.ids))
	for _, id := range r.ids {
		if id != initiator {
			out = append(out, id)
		}
	}
	return out, nil
}

type profileSetting struct {
	mu  sync.Mutex
	key string
}

func (p *profileSetting) SpeedProfile() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key
}

func (p *profileSetting) SetSpeedProfile(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.key = key
	return nil
}

type recorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *recorder) SendText(ctx context.Context, _ int64, text string, _ transport.SendOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return len(r.texts), nil
}

func (r *recorder) count(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.texts {
		if strings.Contains(t, substr) {
			n++
		}
	}
	return n
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}

// fakeTime — часы, которые двигает только Sleep.
type fakeTime struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return ctx.Err()
}

func (f *fakeTime) slept() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

func (f *fakeTime) count(d time.Duration) int {
	n := 0
	for _, s := range f.slept() {
		if s == d {
			n++
		}
	}
	return n
}

type harness struct {
	deliverer *fakeDeliverer
	settings  *profileSetting
	reports   *recorder
	clock     *fakeTime
	svc       *Service
}

func newHarness(ids []int64, profile string) *harness {
	h := &harness{
		deliverer: newFakeDeliverer(),
		settings:  &profileSetting{key: profile},
		reports:   &recorder{},
		clock:     &fakeTime{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	h.svc = NewService(h.deliverer, staticRecipients{ids: ids}, h.settings, h.reports, 5*time.Minute)
	h.svc.now = h.clock.Now
	h.svc.sleep = h.clock.Sleep
	h.svc.randN = func(int64) int64 { return 0 }
	return h
}

func userIDs(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(1000 + i)
	}
	return ids
}

func tooMany(retryAfter int) error {
	return &transport.Error{Code: 429, Description: fmt.Sprintf("Too Many Requests: retry after %d", retryAfter), RetryAfter: retryAfter}
}
