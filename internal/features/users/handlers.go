// Package users — handlers.go обрабатывает /ban и /unban.
package users

import (
	"context"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/gatebot/internal/transport"
)

// Handler обрабатывает команды бан-листа.
type Handler struct {
	service *Service
	sender  transport.Sender
	// isProtected — нельзя банить операторов
	isProtected func(ctx context.Context, userID int64) bool
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, sender transport.Sender, isProtected func(ctx context.Context, userID int64) bool) *Handler {
	return &Handler{service: service, sender: sender, isProtected: isProtected}
}

// HandleBan — /ban <user_id>.
func (h *Handler) HandleBan(ctx context.Context, chatID, operatorID int64, args []string) {
	userID, ok := h.parseUserID(ctx, chatID, args, "/ban")
	if !ok {
		return
	}
	if h.isProtected != nil && h.isProtected(ctx, userID) {
		h.reply(ctx, chatID, "❌ Нельзя забанить оператора")
		return
	}

	added, err := h.service.Ban(ctx, userID, operatorID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка бана")
		h.reply(ctx, chatID, "❌ Ошибка бана")
		return
	}
	if !added {
		h.reply(ctx, chatID, fmt.Sprintf("ℹ️ Пользователь %d уже забанен", userID))
		return
	}
	h.reply(ctx, chatID, fmt.Sprintf("🚫 Пользователь %d забанен", userID))
}

// HandleUnban — /unban <user_id>.
func (h *Handler) HandleUnban(ctx context.Context, chatID int64, args []string) {
	userID, ok := h.parseUserID(ctx, chatID, args, "/unban")
	if !ok {
		return
	}

	removed, err := h.service.Unban(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка разбана")
		h.reply(ctx, chatID, "❌ Ошибка разбана")
		return
	}
	if !removed {
		h.reply(ctx, chatID, fmt.Sprintf("ℹ️ Пользователь %d не был забанен", userID))
		return
	}
	h.reply(ctx, chatID, fmt.Sprintf("✅ Пользователь %d разбанен", userID))
}

func (h *Handler) parseUserID(ctx context.Context, chatID int64, args []string, cmd string) (int64, bool) {
	if len(args) == 0 {
		h.reply(ctx, chatID, fmt.Sprintf("❌ Формат: %s user_id", cmd))
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		h.reply(ctx, chatID, "❌ user_id должен быть положительным числом")
		return 0, false
	}
	return id, true
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.sender.SendText(ctx, chatID, text, transport.SendOptions{}); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
