package broadcast

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/transport"
)

// ProfileStore — чтение и смена профиля скорости.
type ProfileStore interface {
	ProfileSource
	SetSpeedProfile(ctx context.Context, key string) error
}

// Handler — команды рассылки для операторов.
type Handler struct {
	service  *Service
	settings ProfileStore
	sender   transport.Sender
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, settings ProfileStore, sender transport.Sender) *Handler {
	return &Handler{service: service, settings: settings, sender: sender}
}

// HandleBroadcast — /broadcast и /broadcast_fwd ответом на сообщение.
// replyToID — сообщение в чате оператора, которое рассылаем.
func (h *Handler) HandleBroadcast(ctx context.Context, chatID, userID int64, replyToID int, mode Mode) {
	if replyToID == 0 {
		cmd := "/broadcast"
		if mode == ModeForward {
			cmd = "/broadcast_fwd"
		}
		h.reply(ctx, chatID, fmt.Sprintf("❌ Ответьте командой %s на сообщение, которое нужно разослать.", cmd))
		return
	}

	job, err := h.service.Start(ctx, userID, Payload{Mode: mode, SourceChatID: chatID, MessageID: replyToID})
	switch {
	case errors.Is(err, common.ErrBroadcastInProgress):
		h.reply(ctx, chatID, "⚠️ "+err.Error()+". Дождитесь окончания или остановите её: /bcstop")
		return
	case errors.Is(err, common.ErrNoRecipients), errors.Is(err, common.ErrMissingSource):
		h.reply(ctx, chatID, "❌ "+err.Error())
		return
	case err != nil:
		log.WithError(err).WithField("user_id", userID).Error("Не удалось запустить рассылку")
		h.reply(ctx, chatID, "❌ Ошибка запуска рассылки:\n"+html.EscapeString(err.Error()))
		return
	}

	mins := int64(h.service.reportInterval.Minutes())
	h.reply(ctx, chatID, fmt.Sprintf(
		"🚀 Рассылка запущена.\n\n• Получателей: %s\n• Профиль: %s\n• Отчёт о ходе: раз в %s\n\nОстановить: /bcstop",
		common.FormatNumber(int64(job.total)), job.profile.Label, common.FormatMinutes(max(1, mins)),
	))
}

// HandleStatus — /bcstatus.
func (h *Handler) HandleStatus(ctx context.Context, chatID int64) {
	p, ok := h.service.Status()
	if !ok {
		h.reply(ctx, chatID, "Сейчас рассылка не выполняется.")
		return
	}
	h.reply(ctx, chatID, p.Report(false))
}

// HandleStop — /bcstop.
func (h *Handler) HandleStop(ctx context.Context, chatID int64) {
	if err := h.service.Stop(); err != nil {
		h.reply(ctx, chatID, "❌ "+err.Error())
		return
	}
	h.reply(ctx, chatID, "⏹ Рассылка будет остановлена перед следующим получателем.")
}

// HandleSpeed — /speed [safe|balanced|fast].
func (h *Handler) HandleSpeed(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		current := ResolveProfile(h.settings.SpeedProfile())
		var b strings.Builder
		fmt.Fprintf(&b, "Текущий профиль рассылки: <b>%s</b> (%s)\n\n", current.Label, current.Key)
		for _, key := range ProfileKeys() {
			p := profiles[key]
			fmt.Fprintf(&b, "• <code>%s</code> — %s: пауза %d–%d мс, пачка %d\n",
				p.Key, p.Label, p.DelayMin.Milliseconds(), p.DelayMax.Milliseconds(), p.BatchSize)
		}
		b.WriteString("\nСменить: /speed safe|balanced|fast")
		h.reply(ctx, chatID, b.String())
		return
	}

	p, err := LookupProfile(args[0])
	if err != nil {
		h.reply(ctx, chatID, "❌ "+err.Error()+". Доступны: "+strings.Join(ProfileKeys(), ", "))
		return
	}
	if err := h.settings.SetSpeedProfile(ctx, p.Key); err != nil {
		log.WithError(err).Error("Не удалось сохранить профиль скорости")
		h.reply(ctx, chatID, "❌ Не удалось сохранить настройку")
		return
	}
	note := ""
	if h.service.Running() {
		note = "\nТекущая рассылка продолжит со старым профилем."
	}
	h.reply(ctx, chatID, fmt.Sprintf("✅ Профиль рассылки: %s%s", p.Label, note))
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	opts := transport.SendOptions{ParseMode: transport.ParseModeHTML, DisablePreview: true}
	if _, err := h.sender.SendText(ctx, chatID, text, opts); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
