// Package broadcast — рассылка сообщения всем пользователям бота.
// Одна рассылка на процесс, получатели обрабатываются строго по очереди,
// темп подстраивается под ответы 429 от Telegram.
package broadcast

import (
	"strings"
	"time"

	"serotonyl.ru/gatebot/internal/common"
)

// Profile — набор параметров темпа рассылки.
type Profile struct {
	Key   string
	Label string

	// Базовый диапазон задержки между сообщениями
	DelayMin time.Duration
	DelayMax time.Duration

	BatchSize  int
	BatchPause time.Duration

	// Шаги адаптации: после 429 диапазон растёт, после успеха сужается
	IncreaseStep time.Duration
	DecreaseStep time.Duration

	// Потолок адаптивного диапазона
	CeilingMin time.Duration
	CeilingMax time.Duration

	MaxRetries int

	// Каждые SafetyIdleEvery обработанных получателей — пауза SafetyIdle
	SafetyIdleEvery int
	SafetyIdle      time.Duration
}

const (
	ProfileSafe     = "safe"
	ProfileBalanced = "balanced"
	ProfileFast     = "fast"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

var profiles = map[string]Profile{
	ProfileSafe: {
		Key:             ProfileSafe,
		Label:           "безопасный",
		DelayMin:        ms(2200),
		DelayMax:        ms(3000),
		BatchSize:       20,
		BatchPause:      ms(4000),
		IncreaseStep:    ms(450),
		DecreaseStep:    ms(25),
		CeilingMin:      ms(6000),
		CeilingMax:      ms(8000),
		MaxRetries:      5,
		SafetyIdleEvery: 25,
		SafetyIdle:      ms(2000),
	},
	ProfileBalanced: {
		Key:             ProfileBalanced,
		Label:           "сбалансированный",
		DelayMin:        ms(1700),
		DelayMax:        ms(2400),
		BatchSize:       35,
		BatchPause:      ms(2500),
		IncreaseStep:    ms(350),
		DecreaseStep:    ms(30),
		CeilingMin:      ms(4500),
		CeilingMax:      ms(6500),
		MaxRetries:      5,
		SafetyIdleEvery: 40,
		SafetyIdle:      ms(1500),
	},
	ProfileFast: {
		Key:             ProfileFast,
		Label:           "быстрый",
		DelayMin:        ms(1300),
		DelayMax:        ms(1900),
		BatchSize:       45,
		BatchPause:      ms(1500),
		IncreaseStep:    ms(300),
		DecreaseStep:    ms(35),
		CeilingMin:      ms(3800),
		CeilingMax:      ms(5200),
		MaxRetries:      5,
		SafetyIdleEvery: 60,
		SafetyIdle:      ms(1000),
	},
}

// ProfileKeys — ключи в порядке от медленного к быстрому.
func ProfileKeys() []string {
	return []string{ProfileSafe, ProfileBalanced, ProfileFast}
}

// LookupProfile ищет профиль по ключу (без учёта регистра).
func LookupProfile(key string) (Profile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Profile{}, common.ErrUnknownProfile
	}
	return p, nil
}

// ResolveProfile — профиль для запуска: неизвестный ключ означает safe.
func ResolveProfile(key string) Profile {
	if p, err := LookupProfile(key); err == nil {
		return p
	}
	return profiles[ProfileSafe]
}
