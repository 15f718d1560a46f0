package middleware

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Verdict — результат проверки flood-контроля.
type Verdict int

const (
	// Allow — запрос пропущен, токен списан
	Allow Verdict = iota
	// Deny — ведро пустое, только что выдан временный бан
	Deny
	// Banned — бан уже действует, ведро не трогаем
	Banned
)

// FloodControl — ведро токенов на пользователя плюс временный бан.
// Ведро пополняется непрерывно: capacity токенов за window.
// Состояние живёт только в памяти и сбрасывается при рестарте.
type FloodControl struct {
	mu          sync.Mutex
	buckets     map[int64]*rate.Limiter
	bans        map[int64]time.Time
	banDuration time.Duration
}

// NewFloodControl создаёт flood-контроль с фиксированной длительностью бана.
func NewFloodControl(banDuration time.Duration) *FloodControl {
	return &FloodControl{
		buckets:     make(map[int64]*rate.Limiter),
		bans:        make(map[int64]time.Time),
		banDuration: banDuration,
	}
}

// Admit — пропустить ли запрос пользователя.
func (f *FloodControl) Admit(userID int64, capacity int, window time.Duration, now time.Time) bool {
	return f.Check(userID, capacity, window, now) == Allow
}

// Check проверяет бан, затем ведро. При пустом ведре ставит бан на banDuration.
func (f *FloodControl) Check(userID int64, capacity int, window time.Duration, now time.Time) Verdict {
	if capacity < 1 {
		capacity = 1
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if until, ok := f.bans[userID]; ok {
		if now.Before(until) {
			return Banned
		}
		delete(f.bans, userID)
	}

	lim := f.bucket(userID, capacity, window, now)
	if lim.AllowN(now, 1) {
		return Allow
	}

	f.bans[userID] = now.Add(f.banDuration)
	log.WithFields(log.Fields{
		"component": "flood_control",
		"user_id":   userID,
		"capacity":  capacity,
		"ban":       f.banDuration.String(),
	}).Warn("Пользователь временно заблокирован за флуд")
	return Deny
}

// bucket возвращает ведро пользователя, создаёт полное при первом обращении.
// Если оператор поменял лимит, параметры ведра подстраиваются без сброса токенов.
func (f *FloodControl) bucket(userID int64, capacity int, window time.Duration, now time.Time) *rate.Limiter {
	limit := rate.Limit(float64(capacity) / window.Seconds())

	lim, ok := f.buckets[userID]
	if !ok {
		lim = rate.NewLimiter(limit, capacity)
		f.buckets[userID] = lim
		return lim
	}
	if lim.Limit() != limit {
		lim.SetLimitAt(now, limit)
	}
	if lim.Burst() != capacity {
		lim.SetBurstAt(now, capacity)
	}
	return lim
}

// IsBanned — действует ли бан.
func (f *FloodControl) IsBanned(userID int64, now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	until, ok := f.bans[userID]
	return ok && now.Before(until)
}

// Tokens — сколько токенов у пользователя на момент now (без списания).
func (f *FloodControl) Tokens(userID int64, now time.Time) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.buckets[userID]
	if !ok {
		return -1
	}
	return lim.TokensAt(now)
}

// SweepBans удаляет истёкшие баны, возвращает сколько удалено.
func (f *FloodControl) SweepBans(now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for id, until := range f.bans {
		if !now.Before(until) {
			delete(f.bans, id)
			n++
		}
	}
	return n
}

// Stats — число ведер и активных банов.
func (f *FloodControl) Stats() (buckets, bans int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buckets), len(f.bans)
}
