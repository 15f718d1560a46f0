// Package admin — handlers.go обрабатывает /login и /logout в личных сообщениях.
package admin

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/transport"
)

// Handler обрабатывает команды входа.
type Handler struct {
	service *Service
	sender  transport.Sender
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, sender transport.Sender) *Handler {
	return &Handler{service: service, sender: sender}
}

// HandleLogin — /login <пароль>.
func (h *Handler) HandleLogin(ctx context.Context, chatID, userID int64, args []string) {
	if h.service.IsPrimary(userID) {
		h.sendMessage(ctx, chatID, "ℹ️ Вы главный администратор, вход не требуется")
		return
	}
	password := strings.Join(args, " ")
	if password == "" {
		h.sendMessage(ctx, chatID, "❌ Формат: /login пароль")
		return
	}

	err := h.service.Login(ctx, userID, password)
	switch {
	case err == nil:
		log.WithField("user_id", userID).Info("Оператор вошёл по паролю")
		h.sendMessage(ctx, chatID, "✅ Аутентификация успешна! Сессия действует 24 часа.")
	case errors.Is(err, common.ErrWrongPassword), errors.Is(err, common.ErrTooManyAttempts):
		log.WithField("user_id", userID).Warn("Неудачная попытка входа")
		h.sendMessage(ctx, chatID, "❌ "+err.Error())
	default:
		log.WithError(err).WithField("user_id", userID).Error("Ошибка входа")
		h.sendMessage(ctx, chatID, "❌ Ошибка входа, попробуйте позже")
	}
}

// HandleLogout — /logout.
func (h *Handler) HandleLogout(ctx context.Context, chatID, userID int64) {
	closed, err := h.service.Logout(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка выхода")
		h.sendMessage(ctx, chatID, "❌ Ошибка выхода")
		return
	}
	if !closed {
		h.sendMessage(ctx, chatID, "ℹ️ Активной сессии нет")
		return
	}
	h.sendMessage(ctx, chatID, "👋 Сессия закрыта")
}

func (h *Handler) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := h.sender.SendText(ctx, chatID, text, transport.SendOptions{}); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
