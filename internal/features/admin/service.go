// Package admin — service.go содержит логику аутентификации и определения операторов.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/gatebot/internal/common"
)

type sessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	HasActiveSession(ctx context.Context, userID int64, now time.Time) (bool, error)
	DeactivateSessions(ctx context.Context, userID int64) (int64, error)
	ActiveOperatorIDs(ctx context.Context, now time.Time) ([]int64, error)
	LogAttempt(ctx context.Context, userID int64, success bool) error
	CountFailedAttempts(ctx context.Context, userID int64, since time.Time) (int, error)
	PurgeExpired(ctx context.Context, now time.Time, attemptsBefore time.Time) (int64, error)
}

// Service определяет, кто оператор.
type Service struct {
	repo         sessionStore
	primary      []int64
	passwordHash string
	now          func() time.Time
}

// NewService создаёт сервис. primary — ADMIN_IDS из конфига.
func NewService(repo sessionStore, primary []int64, passwordHash string) *Service {
	return &Service{
		repo:         repo,
		primary:      primary,
		passwordHash: passwordHash,
		now:          time.Now,
	}
}

// IsPrimary — главный админ из конфига.
func (s *Service) IsPrimary(userID int64) bool {
	for _, id := range s.primary {
		if id == userID {
			return true
		}
	}
	return false
}

// IsOperator — главный админ или пользователь с активной сессией.
// Ошибка БД трактуется как "не оператор".
func (s *Service) IsOperator(ctx context.Context, userID int64) bool {
	if s.IsPrimary(userID) {
		return true
	}
	ok, err := s.repo.HasActiveSession(ctx, userID, s.now())
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось проверить сессию оператора")
		return false
	}
	return ok
}

// OperatorIDs — все, кому отправляются уведомления: главные админы и активные сессии.
func (s *Service) OperatorIDs(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(s.primary))
	seen := make(map[int64]struct{}, len(s.primary))
	for _, id := range s.primary {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	active, err := s.repo.ActiveOperatorIDs(ctx, s.now())
	if err != nil {
		// главным админам всё равно отправим
		return ids, err
	}
	for _, id := range active {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Login проверяет пароль (Argon2id) и открывает сессию на SessionTTL.
// Защита от brute-force: MaxFailedAttempts неудачных попыток = блокировка на час.
func (s *Service) Login(ctx context.Context, userID int64, password string) error {
	now := s.now()

	attempts, err := s.repo.CountFailedAttempts(ctx, userID, now.Add(-AttemptsWindow))
	if err != nil {
		return err
	}
	if attempts >= MaxFailedAttempts {
		return common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.passwordHash)

	if err := s.repo.LogAttempt(ctx, userID, match); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось записать попытку входа")
	}

	if !match {
		return common.ErrWrongPassword
	}

	session := &Session{
		UserID:       userID,
		SessionToken: generateSecureToken(),
		ExpiresAt:    now.Add(SessionTTL),
	}
	return s.repo.CreateSession(ctx, session)
}

// Logout гасит сессии пользователя. Возвращает false, если сессии не было.
func (s *Service) Logout(ctx context.Context, userID int64) (bool, error) {
	n, err := s.repo.DeactivateSessions(ctx, userID)
	return n > 0, err
}

// PurgeExpired чистит истёкшие сессии и попытки входа старше суток.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	return s.repo.PurgeExpired(ctx, now, now.Add(-24*time.Hour))
}

// --- Криптографические утилиты ---

// verifyArgon2id проверяет пароль по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// постоянное время сравнения
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// HashParams — параметры Argon2id для ADMIN_PASSWORD_HASH.
type HashParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
}

// DefaultHashParams — 64 MB, 3 прохода.
var DefaultHashParams = HashParams{Memory: 64 * 1024, Iterations: 3, Parallelism: 2, KeyLength: 32}

// HashPassword кодирует пароль в формат, который понимает Login.
func HashPassword(password string, p HashParams) (string, error) {
	if password == "" {
		return "", fmt.Errorf("пустой пароль")
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("генерация соли: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// generateSecureToken генерирует токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
