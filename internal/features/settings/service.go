package settings

import (
	"context"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type store interface {
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
}

// Service — кеш настроек с типизированными геттерами.
// Чтение идёт только из памяти, запись — сначала в БД, потом в кеш.
type Service struct {
	repo     store
	defaults map[string]string

	mu     sync.RWMutex
	values map[string]string
}

// NewService создаёт сервис. До Load работают значения по умолчанию.
func NewService(repo store, defaults Defaults) *Service {
	d := defaults.values()
	values := make(map[string]string, len(d))
	for k, v := range d {
		values[k] = v
	}
	return &Service{repo: repo, defaults: d, values: values}
}

// Load читает таблицу и дописывает недостающие ключи значениями по умолчанию.
func (s *Service) Load(ctx context.Context) error {
	stored, err := s.repo.All(ctx)
	if err != nil {
		return err
	}

	for k, v := range s.defaults {
		if _, ok := stored[k]; ok {
			continue
		}
		if err := s.repo.Set(ctx, k, v); err != nil {
			return err
		}
		stored[k] = v
	}

	s.mu.Lock()
	s.values = stored
	s.mu.Unlock()

	log.WithField("count", len(stored)).Info("Настройки загружены")
	return nil
}

// Get возвращает сырое значение.
func (s *Service) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return s.defaults[key]
}

// Set сохраняет значение в БД и в кеш.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		return err
	}
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	log.WithFields(log.Fields{"key": key, "value": value}).Info("Настройка изменена")
	return nil
}

func (s *Service) intValue(key string) int {
	v, err := strconv.Atoi(s.Get(key))
	if err != nil {
		v, _ = strconv.Atoi(s.defaults[key])
	}
	return v
}

func (s *Service) boolValue(key string) bool {
	v, err := strconv.ParseBool(s.Get(key))
	if err != nil {
		return true
	}
	return v
}

// FloodLimit — ёмкость ведра flood-контроля.
func (s *Service) FloodLimit() int {
	if n := s.intValue(KeyFloodLimit); n > 0 {
		return n
	}
	return 1
}

// SpeedProfile — ключ профиля скорости рассылки.
func (s *Service) SpeedProfile() string { return s.Get(KeySpeedProfile) }

// SetSpeedProfile сохраняет профиль. Ключ проверяет вызывающий.
func (s *Service) SetSpeedProfile(ctx context.Context, key string) error {
	return s.Set(ctx, KeySpeedProfile, key)
}

// BotEnabled — отвечает ли бот обычным пользователям.
func (s *Service) BotEnabled() bool { return s.boolValue(KeyBotEnabled) }

// ForceJoinEnabled — включена ли обязательная подписка.
func (s *Service) ForceJoinEnabled() bool { return s.boolValue(KeyForceJoinEnabled) }

// Caption — подпись по умолчанию для выдаваемых файлов.
func (s *Service) Caption() string { return s.Get(KeyCaption) }

// StartText — текст /start без параметра для обычных пользователей.
func (s *Service) StartText() string { return s.Get(KeyStartText) }

// DeleteTimeout — через сколько удалять выданный файл. 0 = не удалять.
func (s *Service) DeleteTimeout() time.Duration {
	ms := s.intValue(KeyDeleteTimeoutMs)
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}
