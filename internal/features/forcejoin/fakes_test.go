package forcejoin

import (
	"context"
	"sync"
	"time"

	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/transport"
)

type memStore struct {
	mu      sync.Mutex
	targets []Target
	links   []ExtraLink
	joins   map[[2]int64]bool
	listErr error
}

func newMemStore(targets ...Target) *memStore {
	return &memStore{targets: targets, joins: map[[2]int64]bool{}}
}

func (m *memStore) ListTargets(context.Context) ([]Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Target, len(m.targets))
	for i, t := range m.targets {
		if t.Condition != nil {
			c := *t.Condition
			t.Condition = &c
		}
		out[i] = t
	}
	return out, nil
}

func (m *memStore) AddTarget(_ context.Context, t Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets = append(m.targets, t)
	return nil
}

func (m *memStore) RemoveTarget(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.targets {
		if t.ID == id {
			m.targets = append(m.targets[:i], m.targets[i+1:]...)
			for k := range m.joins {
				if k[1] == id {
					delete(m.joins, k)
				}
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) RecordJoin(_ context.Context, userID, targetID int64) (JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.targets {
		if t.ID != targetID {
			continue
		}
		key := [2]int64{userID, targetID}
		if m.joins[key] {
			return JoinResult{}, nil
		}
		m.joins[key] = true
		res := JoinResult{Inserted: true}
		if t.Condition != nil {
			t.Condition.CurrentCount++
			res.Count = t.Condition.CurrentCount
			res.Limit = t.Condition.Limit
		}
		return res, nil
	}
	return JoinResult{}, nil
}

func (m *memStore) Retract(ctx context.Context, targetID int64) (bool, error) {
	return m.RemoveTarget(ctx, targetID)
}

func (m *memStore) ListExtraLinks(context.Context) ([]ExtraLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExtraLink(nil), m.links...), nil
}

func (m *memStore) AddExtraLink(_ context.Context, l ExtraLink) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = int64(len(m.links) + 1)
	m.links = append(m.links, l)
	return l.ID, nil
}

func (m *memStore) RemoveExtraLink(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.links {
		if l.ID == id {
			m.links = append(m.links[:i], m.links[i+1:]...)
			return nil
		}
	}
	return common.ErrLinkNotFound
}

func (m *memStore) joinCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.joins)
}

type memberFunc func(userID int64) (transport.Membership, error)

type fakeMembers struct {
	mu     sync.Mutex
	byChat map[int64]memberFunc
	calls  map[int64]int
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{byChat: map[int64]memberFunc{}, calls: map[int64]int{}}
}

func (f *fakeMembers) set(chatID int64, fn memberFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byChat[chatID] = fn
}

func (f *fakeMembers) GetMembership(_ context.Context, chatID, userID int64) (transport.Membership, error) {
	f.mu.Lock()
	f.calls[chatID]++
	fn := f.byChat[chatID]
	f.mu.Unlock()
	if fn == nil {
		return transport.Membership{Status: transport.StatusLeft}, nil
	}
	return fn(userID)
}

func (f *fakeMembers) callCount(chatID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[chatID]
}

func always(status transport.MemberStatus) memberFunc {
	return func(int64) (transport.Membership, error) {
		return transport.Membership{Status: status}, nil
	}
}

func failing(err error) memberFunc {
	return func(int64) (transport.Membership, error) {
		return transport.Membership{}, err
	}
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeNotifier) Notify(_ context.Context, text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return 1
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMsg struct {
	chatID int64
	text   string
	opts   transport.SendOptions
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMsg
	edits   []sentMsg
	deleted []int
	answers []string
	alerts  []bool
	editErr error
	nextID  int
}

func (f *fakeMessenger) SendText(_ context.Context, chatID int64, text string, opts transport.SendOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sentMsg{chatID: chatID, text: text, opts: opts})
	return f.nextID, nil
}

func (f *fakeMessenger) EditText(_ context.Context, chatID int64, _ int, text string, opts transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, sentMsg{chatID: chatID, text: text, opts: opts})
	return nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, _ string, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	f.alerts = append(f.alerts, alert)
	return nil
}
