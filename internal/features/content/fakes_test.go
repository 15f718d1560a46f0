package content

import (
	"context"
	"sync"
	"time"

	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/transport"
)

type memStore struct {
	mu    sync.Mutex
	files map[string]File
}

func newMemStore() *memStore { return &memStore{files: map[string]File{}} }

func (m *memStore) Insert(_ context.Context, f *File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[f.ID]; ok {
		return ErrDuplicateID
	}
	f.CreatedAt = time.Now()
	m.files[f.ID] = *f
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return File{}, common.ErrContentNotFound
	}
	return f, nil
}

func (m *memStore) IncrementUsage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[id]; ok {
		f.UsageCount++
		m.files[id] = f
	}
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[id]
	delete(m.files, id)
	return ok, nil
}

func (m *memStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.files)), nil
}

func (m *memStore) Top(_ context.Context, limit int) ([]File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []File
	for _, f := range m.files {
		out = append(out, f)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mediaMsg struct {
	chatID  int64
	kind    transport.MediaKind
	fileID  string
	caption string
}

type fakeMedia struct {
	mu      sync.Mutex
	texts   []string
	opts    []transport.SendOptions
	media   []mediaMsg
	deleted []int
	answers []string
	sendErr error
	nextID  int
}

func (f *fakeMedia) SendText(_ context.Context, _ int64, text string, opts transport.SendOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.texts = append(f.texts, text)
	f.opts = append(f.opts, opts)
	return f.nextID, nil
}

func (f *fakeMedia) SendMedia(_ context.Context, chatID int64, kind transport.MediaKind, fileID, caption string, _ transport.SendOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.media = append(f.media, mediaMsg{chatID: chatID, kind: kind, fileID: fileID, caption: caption})
	return f.nextID, nil
}

func (f *fakeMedia) EditText(context.Context, int64, int, string, transport.SendOptions) error {
	return nil
}

func (f *fakeMedia) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMedia) AnswerCallback(_ context.Context, _ string, text string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeMedia) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type gateFunc func(fileID string) bool

func (g gateFunc) Require(_ context.Context, _, _ int64, fileID string) bool { return g(fileID) }

type fixedSettings struct {
	caption string
	start   string
	timeout time.Duration
}

func (s fixedSettings) Caption() string              { return s.caption }
func (s fixedSettings) StartText() string            { return s.start }
func (s fixedSettings) DeleteTimeout() time.Duration { return s.timeout }

// timers — отложенные вызовы, которые тест запускает вручную.
type timers struct {
	mu     sync.Mutex
	delays []time.Duration
	funcs  []func()
}

func (t *timers) after(d time.Duration, f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delays = append(t.delays, d)
	t.funcs = append(t.funcs, f)
}

func (t *timers) fire() {
	t.mu.Lock()
	funcs := t.funcs
	t.funcs = nil
	t.mu.Unlock()
	for _, f := range funcs {
		f()
	}
}
