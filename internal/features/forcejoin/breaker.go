package forcejoin

import (
	"sync"
	"time"
)

// Breaker — состояние недоступных каналов, общее на процесс.
// until: до какого момента канал не опрашиваем.
// notified: когда последний раз предупреждали операторов.
// Ничего не сохраняется: после рестарта каналы проверяются заново.
type Breaker struct {
	retryAfter time.Duration
	cooldown   time.Duration

	mu       sync.Mutex
	until    map[int64]time.Time
	notified map[int64]time.Time
}

// NewBreaker создаёт состояние. retryAfter — на сколько исключаем канал,
// cooldown — минимальный интервал между предупреждениями по одному каналу.
func NewBreaker(retryAfter, cooldown time.Duration) *Breaker {
	return &Breaker{
		retryAfter: retryAfter,
		cooldown:   cooldown,
		until:      make(map[int64]time.Time),
		notified:   make(map[int64]time.Time),
	}
}

// Open — канал ещё исключён. Истёкшая запись удаляется.
func (b *Breaker) Open(targetID int64, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	until, ok := b.until[targetID]
	if !ok {
		return false
	}
	if now.Before(until) {
		return true
	}
	delete(b.until, targetID)
	return false
}

// Trip исключает канал на retryAfter начиная с now.
func (b *Breaker) Trip(targetID int64, now time.Time) time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	until := now.Add(b.retryAfter)
	b.until[targetID] = until
	return until
}

// ShouldNotify — можно ли сейчас предупредить операторов о канале.
// При true момент запоминается.
func (b *Breaker) ShouldNotify(targetID int64, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if last, ok := b.notified[targetID]; ok && now.Sub(last) < b.cooldown {
		return false
	}
	b.notified[targetID] = now
	return true
}

// Reset забывает канал (оператор удалил или добавил его заново).
func (b *Breaker) Reset(targetID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.until, targetID)
	delete(b.notified, targetID)
}

// Sweep удаляет истёкшие записи обеих карт.
func (b *Breaker) Sweep(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for id, until := range b.until {
		if !now.Before(until) {
			delete(b.until, id)
			n++
		}
	}
	for id, last := range b.notified {
		if now.Sub(last) >= b.cooldown {
			delete(b.notified, id)
		}
	}
	return n
}

// OpenUntil — копия действующих исключений (для /targets).
func (b *Breaker) OpenUntil(now time.Time) map[int64]time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[int64]time.Time, len(b.until))
	for id, until := range b.until {
		if now.Before(until) {
			out[id] = until
		}
	}
	return out
}
