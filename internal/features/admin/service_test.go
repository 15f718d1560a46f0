package admin

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/gatebot/internal/common"
)

type fakeStore struct {
	sessions map[int64]time.Time
	attempts []LoginAttempt
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[int64]time.Time{}}
}

func (f *fakeStore) CreateSession(_ context.Context, s *Session) error {
	f.sessions[s.UserID] = s.ExpiresAt
	return nil
}

func (f *fakeStore) HasActiveSession(_ context.Context, userID int64, now time.Time) (bool, error) {
	exp, ok := f.sessions[userID]
	return ok && exp.After(now), nil
}

func (f *fakeStore) DeactivateSessions(_ context.Context, userID int64) (int64, error) {
	if _, ok := f.sessions[userID]; !ok {
		return 0, nil
	}
	delete(f.sessions, userID)
	return 1, nil
}

func (f *fakeStore) ActiveOperatorIDs(_ context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	for id, exp := range f.sessions {
		if exp.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) LogAttempt(_ context.Context, userID int64, success bool) error {
	f.attempts = append(f.attempts, LoginAttempt{UserID: userID, Success: success})
	return nil
}

func (f *fakeStore) CountFailedAttempts(_ context.Context, userID int64, _ time.Time) (int, error) {
	n := 0
	for _, a := range f.attempts {
		if a.UserID == userID && !a.Success {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) PurgeExpired(_ context.Context, now time.Time, _ time.Time) (int64, error) {
	var n int64
	for id, exp := range f.sessions {
		if !exp.After(now) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

var cheapHash = HashParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, KeyLength: 32}

func hashPassword(password string) string {
	h, err := HashPassword(password, cheapHash)
	if err != nil {
		panic(err)
	}
	return h
}

func TestVerifyArgon2id(t *testing.T) {
	h := hashPassword("hunter2")
	assert.True(t, verifyArgon2id("hunter2", h))
	assert.False(t, verifyArgon2id("hunter3", h))
	assert.False(t, verifyArgon2id("hunter2", "garbage"))
	assert.False(t, verifyArgon2id("hunter2", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"))
}

func TestHashPasswordSalted(t *testing.T) {
	a := hashPassword("hunter2")
	b := hashPassword("hunter2")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "$argon2id$v=19$m=8192,t=1,p=1$"))

	_, err := HashPassword("", cheapHash)
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := newFakeStore()
	svc := NewService(store, []int64{1}, hashPassword("secret"))
	svc.now = func() time.Time { return now }

	assert.False(t, svc.IsOperator(ctx, 42))

	require.NoError(t, svc.Login(ctx, 42, "secret"))
	assert.True(t, svc.IsOperator(ctx, 42))

	ids, err := svc.OperatorIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 42}, ids)

	// сессия истекает через сутки
	now = now.Add(SessionTTL + time.Minute)
	assert.False(t, svc.IsOperator(ctx, 42))
	assert.True(t, svc.IsOperator(ctx, 1))

	purged, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestLoginBruteForce(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil, hashPassword("secret"))

	for i := 0; i < MaxFailedAttempts; i++ {
		assert.ErrorIs(t, svc.Login(ctx, 7, "wrong"), common.ErrWrongPassword)
	}
	// даже правильный пароль не пускает
	assert.ErrorIs(t, svc.Login(ctx, 7, "secret"), common.ErrTooManyAttempts)
	assert.False(t, svc.IsOperator(ctx, 7))
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil, hashPassword("secret"))

	closed, err := svc.Logout(ctx, 5)
	require.NoError(t, err)
	assert.False(t, closed)

	require.NoError(t, svc.Login(ctx, 5, "secret"))
	closed, err = svc.Logout(ctx, 5)
	require.NoError(t, err)
	assert.True(t, closed)
	assert.False(t, svc.IsOperator(ctx, 5))
}
