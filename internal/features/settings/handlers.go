// Package settings — handlers.go обрабатывает команды операторов:
// /floodlimit, /bot, /forcejoin, /caption, /deltime, /starttext.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/transport"
)

// Handler обрабатывает команды настроек.
type Handler struct {
	service *Service
	sender  transport.Sender
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, sender transport.Sender) *Handler {
	return &Handler{service: service, sender: sender}
}

// HandleFloodLimit — /floodlimit <n>.
func (h *Handler) HandleFloodLimit(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		h.reply(ctx, chatID, fmt.Sprintf("Текущий лимит: %d запросов за окно. Формат: /floodlimit число", h.service.FloodLimit()))
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > 1000 {
		h.reply(ctx, chatID, "❌ Лимит должен быть числом от 1 до 1000")
		return
	}
	h.set(ctx, chatID, KeyFloodLimit, strconv.Itoa(n), fmt.Sprintf("✅ Лимит flood-контроля: %d", n))
}

// HandleBotToggle — /bot on|off.
func (h *Handler) HandleBotToggle(ctx context.Context, chatID int64, args []string) {
	h.toggle(ctx, chatID, args, KeyBotEnabled, "Бот")
}

// HandleForceJoinToggle — /forcejoin on|off.
func (h *Handler) HandleForceJoinToggle(ctx context.Context, chatID int64, args []string) {
	h.toggle(ctx, chatID, args, KeyForceJoinEnabled, "Обязательная подписка")
}

// HandleCaption — /caption <текст>.
func (h *Handler) HandleCaption(ctx context.Context, chatID int64, args []string) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		h.reply(ctx, chatID, "Текущая подпись:\n"+h.service.Caption())
		return
	}
	if len([]rune(text)) > 1024 {
		h.reply(ctx, chatID, "❌ Подпись длиннее 1024 символов")
		return
	}
	h.set(ctx, chatID, KeyCaption, text, "✅ Подпись обновлена")
}

// HandleStartText — /starttext <текст> или /starttext - для сброса.
func (h *Handler) HandleStartText(ctx context.Context, chatID int64, args []string) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "-" {
		text = ""
	}
	h.set(ctx, chatID, KeyStartText, text, "✅ Стартовый текст обновлён")
}

// HandleDeleteTimeout — /deltime <секунды>, 0 отключает удаление.
func (h *Handler) HandleDeleteTimeout(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		h.reply(ctx, chatID, fmt.Sprintf("Файлы удаляются через %s. Формат: /deltime секунды", common.FormatSeconds(h.service.DeleteTimeout())))
		return
	}
	sec, err := strconv.Atoi(args[0])
	if err != nil || sec < 0 || sec > 86400 {
		h.reply(ctx, chatID, "❌ Укажите число секунд от 0 до 86400")
		return
	}
	ms := (time.Duration(sec) * time.Second).Milliseconds()
	h.set(ctx, chatID, KeyDeleteTimeoutMs, strconv.FormatInt(ms, 10),
		fmt.Sprintf("✅ Время удаления: %s", common.FormatSeconds(time.Duration(sec)*time.Second)))
}

func (h *Handler) toggle(ctx context.Context, chatID int64, args []string, key, title string) {
	if len(args) == 0 {
		h.reply(ctx, chatID, fmt.Sprintf("%s: %s. Формат: on|off", title, onOff(h.service.boolValue(key))))
		return
	}
	var value bool
	switch strings.ToLower(args[0]) {
	case "on", "вкл", "1":
		value = true
	case "off", "выкл", "0":
		value = false
	default:
		h.reply(ctx, chatID, "❌ Ожидается on или off")
		return
	}
	h.set(ctx, chatID, key, strconv.FormatBool(value), fmt.Sprintf("✅ %s: %s", title, onOff(value)))
}

func (h *Handler) set(ctx context.Context, chatID int64, key, value, okText string) {
	if err := h.service.Set(ctx, key, value); err != nil {
		log.WithError(err).WithField("key", key).Error("Ошибка сохранения настройки")
		h.reply(ctx, chatID, "❌ Не удалось сохранить настройку")
		return
	}
	h.reply(ctx, chatID, okText)
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.sender.SendText(ctx, chatID, text, transport.SendOptions{}); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

func onOff(v bool) string {
	if v {
		return "включен(а)"
	}
	return "выключен(а)"
}
