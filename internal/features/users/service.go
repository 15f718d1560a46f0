// Package users — service.go содержит бизнес-логику каталога пользователей.
package users

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

type store interface {
	Upsert(ctx context.Context, u *User) error
	IsBanned(ctx context.Context, userID int64) (bool, error)
	Ban(ctx context.Context, userID, bannedBy int64) (bool, error)
	Unban(ctx context.Context, userID int64) (bool, error)
	Recipients(ctx context.Context, exclude int64) ([]int64, error)
	Stats(ctx context.Context, since time.Time) (Stats, error)
}

// Service управляет пользователями.
type Service struct {
	repo store
	now  func() time.Time
}

// NewService создаёт сервис.
func NewService(repo store) *Service {
	return &Service{repo: repo, now: time.Now}
}

// EnsureUser регистрирует пользователя или обновляет его данные.
func (s *Service) EnsureUser(ctx context.Context, userID int64, username, firstName, lastName string) error {
	return s.repo.Upsert(ctx, &User{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
	})
}

// IsBanned — в бан-листе ли пользователь.
func (s *Service) IsBanned(ctx context.Context, userID int64) (bool, error) {
	return s.repo.IsBanned(ctx, userID)
}

// Ban банит пользователя.
func (s *Service) Ban(ctx context.Context, userID, bannedBy int64) (bool, error) {
	added, err := s.repo.Ban(ctx, userID, bannedBy)
	if err == nil && added {
		log.WithFields(log.Fields{"user_id": userID, "by": bannedBy}).Info("Пользователь забанен")
	}
	return added, err
}

// Unban снимает бан.
func (s *Service) Unban(ctx context.Context, userID int64) (bool, error) {
	removed, err := s.repo.Unban(ctx, userID)
	if err == nil && removed {
		log.WithField("user_id", userID).Info("Бан снят")
	}
	return removed, err
}

// Recipients — снимок получателей рассылки: все минус забаненные минус инициатор.
func (s *Service) Recipients(ctx context.Context, initiator int64) ([]int64, error) {
	return s.repo.Recipients(ctx, initiator)
}

// Stats — сводка, NewToday считается за последние сутки.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx, s.now().Add(-24*time.Hour))
}
