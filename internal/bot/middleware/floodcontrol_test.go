package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func TestFloodControlBurstThenBan(t *testing.T) {
	fc := NewFloodControl(time.Minute)
	const user = int64(100)
	window := 30 * time.Second

	for i := 0; i < 3; i++ {
		assert.Equal(t, Allow, fc.Check(user, 3, window, t0), "call %d", i+1)
	}
	assert.Equal(t, Deny, fc.Check(user, 3, window, t0))
	assert.True(t, fc.IsBanned(user, t0))

	// во время бана — сразу отказ
	for _, d := range []time.Duration{time.Second, 20 * time.Second, 59 * time.Second} {
		assert.Equal(t, Banned, fc.Check(user, 3, window, t0.Add(d)))
	}

	// бан истёк, ведро за минуту успело наполниться до ёмкости
	assert.Equal(t, Allow, fc.Check(user, 3, window, t0.Add(time.Minute)))
	assert.False(t, fc.IsBanned(user, t0.Add(time.Minute)))
}

func TestFloodControlBanDoesNotTouchBucket(t *testing.T) {
	// 3 токена за 300с = 0.01 токена в секунду
	fc := NewFloodControl(time.Minute)
	const user = int64(7)
	window := 300 * time.Second

	for i := 0; i < 3; i++ {
		require.True(t, fc.Admit(user, 3, window, t0))
	}
	require.Equal(t, Deny, fc.Check(user, 3, window, t0))

	for s := 1; s < 60; s += 5 {
		assert.Equal(t, Banned, fc.Check(user, 3, window, t0.Add(time.Duration(s)*time.Second)))
	}
	assert.InDelta(t, 0.5, fc.Tokens(user, t0.Add(50*time.Second)), 1e-6)

	// на 60с токенов 0.6 — снова бан
	assert.Equal(t, Deny, fc.Check(user, 3, window, t0.Add(60*time.Second)))
	assert.Equal(t, Banned, fc.Check(user, 3, window, t0.Add(100*time.Second)))

	// на 120с токенов 1.2 — пропускаем, остаётся 0.2
	assert.Equal(t, Allow, fc.Check(user, 3, window, t0.Add(120*time.Second)))
	assert.InDelta(t, 0.2, fc.Tokens(user, t0.Add(120*time.Second)), 1e-6)
}

func TestFloodControlSteadyStateRate(t *testing.T) {
	// 4 токена за 32с: ровно один токен в 8с, шаг 250мс — арифметика без погрешностей
	fc := NewFloodControl(0)
	const user = int64(1)
	window := 32 * time.Second
	capacity := 4

	var admitted []time.Time
	for ms := 0; ms <= 10*60*1000; ms += 250 {
		now := t0.Add(time.Duration(ms) * time.Millisecond)
		if fc.Admit(user, capacity, window, now) {
			admitted = append(admitted, now)
		}
	}

	// начальный всплеск исчерпан — дальше в любом окне не больше capacity
	steady := admitted[capacity:]
	for i := range steady {
		n := 0
		for j := i; j >= 0 && steady[i].Sub(steady[j]) < window; j-- {
			n++
		}
		assert.LessOrEqual(t, n, capacity, "окно, заканчивающееся в %s", steady[i].Sub(t0))
	}
	assert.Len(t, admitted, capacity+600/8)
}

func TestFloodControlUsersIndependent(t *testing.T) {
	fc := NewFloodControl(time.Minute)
	assert.True(t, fc.Admit(1, 1, time.Minute, t0))
	assert.False(t, fc.Admit(1, 1, time.Minute, t0))
	assert.True(t, fc.Admit(2, 1, time.Minute, t0))
}

func TestFloodControlCapacityChange(t *testing.T) {
	fc := NewFloodControl(0)
	assert.True(t, fc.Admit(1, 1, time.Minute, t0))
	assert.False(t, fc.Admit(1, 1, time.Minute, t0))

	// лимит подняли: накопленный токен сохраняется, дальше пополнение по новой скорости
	later := t0.Add(10 * time.Minute)
	assert.True(t, fc.Admit(1, 4, time.Minute, later))
	assert.False(t, fc.Admit(1, 4, time.Minute, later))
	assert.True(t, fc.Admit(1, 4, time.Minute, later.Add(16*time.Second)))

	// со временем ведро дорастает до новой ёмкости
	full := later.Add(10 * time.Minute)
	for i := 0; i < 4; i++ {
		assert.True(t, fc.Admit(1, 4, time.Minute, full), "call %d", i+1)
	}
	assert.False(t, fc.Admit(1, 4, time.Minute, full))
}

func TestSweepBans(t *testing.T) {
	fc := NewFloodControl(time.Minute)
	fc.Admit(1, 1, time.Hour, t0)
	fc.Admit(1, 1, time.Hour, t0)
	fc.Admit(2, 1, time.Hour, t0.Add(30*time.Second))
	fc.Admit(2, 1, time.Hour, t0.Add(30*time.Second))

	_, bans := fc.Stats()
	require.Equal(t, 2, bans)

	assert.Equal(t, 1, fc.SweepBans(t0.Add(time.Minute)))
	assert.Equal(t, 1, fc.SweepBans(t0.Add(2*time.Minute)))
	buckets, bans := fc.Stats()
	assert.Equal(t, 2, buckets)
	assert.Equal(t, 0, bans)
}
