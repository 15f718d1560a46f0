// Package forcejoin — handlers.go: проверка подписки для пользователей
// и команды управления каналами для операторов.
package forcejoin

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/transport"
)

// ConfirmFunc вызывается после успешной проверки по кнопке.
// fileID пустой, если пользователь не запрашивал файл.
type ConfirmFunc func(ctx context.Context, chatID, userID int64, fileID string)

// Handler — обработчик проверки подписки и команд операторов.
type Handler struct {
	service     *Service
	msg         transport.Messenger
	onConfirmed ConfirmFunc
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, msg transport.Messenger) *Handler {
	return &Handler{service: service, msg: msg}
}

// SetOnConfirmed задаёт действие после успешной проверки (выдача файла или /start).
func (h *Handler) SetOnConfirmed(f ConfirmFunc) { h.onConfirmed = f }

// Require — можно ли выдавать защищённый контент. Если нет, пользователь
// получает сообщение с кнопками подписки.
func (h *Handler) Require(ctx context.Context, chatID, userID int64, fileID string) bool {
	gate, err := h.service.Check(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка проверки подписки")
		h.send(ctx, chatID, "❌ Не удалось проверить подписку, попробуйте позже")
		return false
	}
	if gate.Satisfied {
		return true
	}

	text, kb := BuildPrompt(gate.Missing, gate.ExtraLinks, fileID)
	h.sendPrompt(ctx, chatID, text, kb)
	return false
}

// HandleCheckCallback — нажатие «Проверить подписку». Проверка всегда полная.
func (h *Handler) HandleCheckCallback(ctx context.Context, cb transport.Callback) {
	fileID, ok := ParseCallback(cb.Data)
	if !ok {
		return
	}
	logger := log.WithFields(log.Fields{"user_id": cb.UserID, "file": fileID})

	gate, err := h.service.Check(ctx, cb.UserID)
	if err != nil {
		logger.WithError(err).Error("Ошибка проверки подписки")
		h.answer(ctx, cb.ID, "❌ Не удалось проверить подписку, попробуйте позже", true)
		return
	}

	if !gate.Satisfied {
		h.answer(ctx, cb.ID, AlertText(gate.Missing), true)
		logger.Info("Проверка подписки не пройдена")

		text, kb := BuildPrompt(gate.Missing, gate.ExtraLinks, fileID)
		h.editPrompt(ctx, cb.ChatID, cb.MessageID, text, kb)
		return
	}

	h.answer(ctx, cb.ID, "✅ Подписка подтверждена", false)
	if cb.MessageID != 0 {
		if err := h.msg.DeleteMessage(ctx, cb.ChatID, cb.MessageID); err != nil {
			logger.WithError(err).Warn("Не удалось удалить сообщение проверки")
		}
	}

	if h.onConfirmed != nil {
		h.onConfirmed(ctx, cb.ChatID, cb.UserID, fileID)
		return
	}
	h.send(ctx, cb.ChatID, "✅ Подписка подтверждена!")
}

// editPrompt перерисовывает сообщение; если не вышло — шлёт новое.
func (h *Handler) editPrompt(ctx context.Context, chatID int64, messageID int, text string, kb transport.Keyboard) {
	if messageID != 0 {
		err := h.msg.EditText(ctx, chatID, messageID, text, promptOptions(kb))
		if err == nil || transport.IsMessageNotModified(err) {
			return
		}
		log.WithError(err).WithField("chat_id", chatID).Warn("Не удалось отредактировать сообщение подписки")
	}
	h.sendPrompt(ctx, chatID, text, kb)
}

func (h *Handler) sendPrompt(ctx context.Context, chatID int64, text string, kb transport.Keyboard) {
	if _, err := h.msg.SendText(ctx, chatID, text, promptOptions(kb)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Не удалось отправить сообщение подписки")
	}
}

func promptOptions(kb transport.Keyboard) transport.SendOptions {
	return transport.SendOptions{
		ParseMode:      transport.ParseModeHTML,
		Keyboard:       kb,
		DisablePreview: true,
	}
}

// --- Команды операторов ---

// HandleAddTarget — /addch (или /addgroup) <chat_id> <invite_link> <limit|0> <название> [| текст кнопки].
func (h *Handler) HandleAddTarget(ctx context.Context, chatID int64, args []string, kind ChatKind) {
	usage := "❌ Формат: /addch chat_id ссылка лимит(0 — без лимита) название [| текст кнопки]"
	if len(args) < 4 {
		h.send(ctx, chatID, usage)
		return
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.send(ctx, chatID, "❌ chat_id должен быть числом (например, -1001234567890)")
		return
	}
	link := args[1]
	if !strings.HasPrefix(link, "https://") && !strings.HasPrefix(link, "http://") {
		h.send(ctx, chatID, "❌ Ссылка должна начинаться с https://")
		return
	}
	limit, err := strconv.Atoi(args[2])
	if err != nil || limit < 0 {
		h.send(ctx, chatID, "❌ "+common.ErrInvalidLimit.Error())
		return
	}

	title, button := splitTitle(strings.Join(args[3:], " "))
	if title == "" {
		h.send(ctx, chatID, usage)
		return
	}

	t := Target{
		ID:         id,
		Title:      title,
		InviteLink: link,
		ButtonText: button,
		Kind:       kind,
	}
	if limit > 0 {
		t.Condition = &JoinCondition{Limit: limit}
	}

	if err := h.service.AddTarget(ctx, t); err != nil {
		log.WithError(err).WithField("target_id", id).Error("Ошибка добавления канала")
		h.send(ctx, chatID, "❌ Не удалось добавить канал")
		return
	}

	limitText := "без лимита"
	if limit > 0 {
		limitText = fmt.Sprintf("снять после %s", common.FormatUsers(int64(limit)))
	}
	h.send(ctx, chatID, fmt.Sprintf("✅ Добавлен %s «%s» (%s).\nНе забудьте сделать бота администратором.", kind.Label(), title, limitText))
}

// HandleRemoveTarget — /rmch <chat_id>.
func (h *Handler) HandleRemoveTarget(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		h.send(ctx, chatID, "❌ Формат: /rmch chat_id")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.send(ctx, chatID, "❌ chat_id должен быть числом")
		return
	}

	removed, err := h.service.RemoveTarget(ctx, id)
	if err != nil {
		log.WithError(err).WithField("target_id", id).Error("Ошибка удаления канала")
		h.send(ctx, chatID, "❌ Не удалось удалить канал")
		return
	}
	if !removed {
		h.send(ctx, chatID, "❌ "+common.ErrTargetNotFound.Error())
		return
	}
	h.send(ctx, chatID, "🗑 Канал удалён вместе с журналом вступлений")
}

// HandleAddLink — /addlink <ссылка> <название>.
func (h *Handler) HandleAddLink(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		h.send(ctx, chatID, "❌ Формат: /addlink ссылка [название] [| текст кнопки]")
		return
	}
	title, button := splitTitle(strings.Join(args[1:], " "))
	id, err := h.service.AddExtraLink(ctx, ExtraLink{Title: title, InviteLink: args[0], ButtonText: button})
	if err != nil {
		log.WithError(err).Error("Ошибка добавления ссылки")
		h.send(ctx, chatID, "❌ Не удалось добавить ссылку")
		return
	}
	h.send(ctx, chatID, fmt.Sprintf("✅ Ссылка добавлена (id %d)", id))
}

// HandleRemoveLink — /rmlink <id>.
func (h *Handler) HandleRemoveLink(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		h.send(ctx, chatID, "❌ Формат: /rmlink id")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.send(ctx, chatID, "❌ id должен быть числом")
		return
	}
	if err := h.service.RemoveExtraLink(ctx, id); err != nil {
		if errors.Is(err, common.ErrLinkNotFound) {
			h.send(ctx, chatID, "❌ "+err.Error())
			return
		}
		log.WithError(err).Error("Ошибка удаления ссылки")
		h.send(ctx, chatID, "❌ Не удалось удалить ссылку")
		return
	}
	h.send(ctx, chatID, "🗑 Ссылка удалена")
}

// HandleTargets — /targets: каналы, счётчики, недоступные.
func (h *Handler) HandleTargets(ctx context.Context, chatID int64) {
	targets, err := h.service.Targets(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка чтения каналов")
		h.send(ctx, chatID, "❌ Не удалось получить список каналов")
		return
	}
	links, err := h.service.ExtraLinks(ctx)
	if err != nil {
		log.WithError(err).Warn("Ошибка чтения ссылок")
	}

	h.sendHTML(ctx, chatID, FormatTargets(targets, links, h.service.Breaker().OpenUntil(h.service.now())))
}

// FormatTargets — текст списка для /targets и /stats.
func FormatTargets(targets []Target, links []ExtraLink, unavailable map[int64]time.Time) string {
	if len(targets) == 0 && len(links) == 0 {
		return "Обязательных каналов нет."
	}

	var b strings.Builder
	b.WriteString("<b>Обязательные каналы:</b>\n")
	if len(targets) == 0 {
		b.WriteString("— нет\n")
	}
	for _, t := range targets {
		fmt.Fprintf(&b, "• %s (%s, <code>%d</code>)", html.EscapeString(t.Title), t.Kind.Label(), t.ID)
		if t.Condition != nil {
			fmt.Fprintf(&b, " — %d/%d", t.Condition.CurrentCount, t.Condition.Limit)
		}
		if until, ok := unavailable[t.ID]; ok {
			fmt.Fprintf(&b, " ⚠️ недоступен до %s", until.Format("15:04"))
		}
		b.WriteString("\n")
	}
	if len(links) > 0 {
		b.WriteString("\n<b>Дополнительные ссылки:</b>\n")
		for i, l := range links {
			fmt.Fprintf(&b, "• [%d] %s\n", l.ID, html.EscapeString(l.Button(i)))
		}
	}
	return b.String()
}

// splitTitle делит "название | текст кнопки".
func splitTitle(s string) (title, button string) {
	title, button, _ = strings.Cut(s, "|")
	return strings.TrimSpace(title), strings.TrimSpace(button)
}

func (h *Handler) answer(ctx context.Context, callbackID, text string, alert bool) {
	if err := h.msg.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		log.WithError(err).Debug("Ошибка answerCallbackQuery")
	}
}

func (h *Handler) send(ctx context.Context, chatID int64, text string) {
	if _, err := h.msg.SendText(ctx, chatID, text, transport.SendOptions{}); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

func (h *Handler) sendHTML(ctx context.Context, chatID int64, text string) {
	if _, err := h.msg.SendText(ctx, chatID, text, transport.SendOptions{ParseMode: transport.ParseModeHTML, DisablePreview: true}); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
