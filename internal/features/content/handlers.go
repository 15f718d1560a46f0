// Package content — handlers.go: /save, /start <id>, /delfile, /fileinfo
// и выдача файла с автоудалением.
package content

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/transport"
)

// Media — отправка файлов плюс обычные сообщения.
type Media interface {
	transport.Messenger
	SendMedia(ctx context.Context, chatID int64, kind transport.MediaKind, fileID, caption string, opts transport.SendOptions) (int, error)
}

// Gate — проверка подписки перед выдачей.
type Gate interface {
	Require(ctx context.Context, chatID, userID int64, fileID string) bool
}

// Settings — подписи, тексты и таймер удаления.
type Settings interface {
	Caption() string
	StartText() string
	DeleteTimeout() time.Duration
}

// Handler — выдача и управление файлами.
type Handler struct {
	service  *Service
	media    Media
	gate     Gate
	settings Settings
	botName  string

	now func() time.Time
	// after запускает f через d (в тестах — сразу или по команде)
	after func(d time.Duration, f func())

	// pending — сообщение /start <id>, ожидающее проверки подписки (одно на пользователя)
	mu      sync.Mutex
	pending map[int64]pendingStart
}

type pendingStart struct {
	fileID    string
	messageID int
}

// NewHandler создаёт обработчик. botName нужен для deep link.
func NewHandler(service *Service, media Media, gate Gate, settings Settings, botName string) *Handler {
	return &Handler{
		service:  service,
		media:    media,
		gate:     gate,
		settings: settings,
		botName:  botName,
		now:      time.Now,
		after:    func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		pending:  make(map[int64]pendingStart),
	}
}

// Link — deep link на файл.
func (h *Handler) Link(id string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", h.botName, id)
}

// HandleSave — /save [подпись] ответом на медиа.
// Без аргументов подпись берётся из самого медиа, а если её нет — из настроек.
func (h *Handler) HandleSave(ctx context.Context, chatID, operatorID int64, att *Attachment, args []string) {
	if att == nil {
		h.reply(ctx, chatID, "❌ Ответьте командой /save на фото, видео, аудио или документ.")
		return
	}

	var caption *string
	if text := strings.TrimSpace(strings.Join(args, " ")); text != "" {
		caption = &text
	} else if att.Caption != "" {
		c := att.Caption
		caption = &c
	}

	f, err := h.service.Save(ctx, *att, caption, operatorID)
	if errors.Is(err, common.ErrUnsupportedMedia) {
		h.reply(ctx, chatID, "❌ "+err.Error())
		return
	}
	if err != nil {
		log.WithError(err).WithField("operator", operatorID).Error("Ошибка сохранения файла")
		h.reply(ctx, chatID, "❌ Не удалось сохранить файл")
		return
	}

	h.replyHTML(ctx, chatID, fmt.Sprintf(
		"✅ Файл сохранён.\n\nID: <code>%s</code>\nСсылка: %s",
		f.ID, html.EscapeString(h.Link(f.ID)),
	))
}

// HandleStart — /start [id]. Сначала проверка подписки, затем файл или приветствие.
func (h *Handler) HandleStart(ctx context.Context, chatID, userID int64, triggerID int, arg string) {
	arg = strings.TrimSpace(arg)
	if !h.gate.Require(ctx, chatID, userID, arg) {
		if arg != "" && triggerID != 0 {
			h.remember(userID, pendingStart{fileID: arg, messageID: triggerID})
		}
		return
	}
	if arg == "" {
		h.sendStartText(ctx, chatID)
		return
	}
	h.Deliver(ctx, chatID, userID, arg, triggerID)
}

// OnConfirmed — продолжение после успешной проверки подписки по кнопке.
func (h *Handler) OnConfirmed(ctx context.Context, chatID, userID int64, fileID string) {
	if fileID == "" {
		h.reply(ctx, chatID, "✅ Подписка подтверждена!")
		h.sendStartText(ctx, chatID)
		return
	}
	h.Deliver(ctx, chatID, userID, fileID, h.takePending(userID, fileID))
}

func (h *Handler) remember(userID int64, p pendingStart) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending[userID] = p
}

// takePending возвращает id сообщения /start для этого файла и забывает его.
func (h *Handler) takePending(userID int64, fileID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pending[userID]
	if !ok {
		return 0
	}
	delete(h.pending, userID)
	if p.fileID != fileID {
		return 0
	}
	return p.messageID
}

// Deliver отправляет файл и планирует удаление. triggerID — сообщение /start,
// которое удаляется вместе с файлом (0 — нет).
func (h *Handler) Deliver(ctx context.Context, chatID, userID int64, id string, triggerID int) {
	logger := log.WithFields(log.Fields{"user_id": userID, "file": id})

	f, err := h.service.Get(ctx, id)
	if errors.Is(err, common.ErrContentNotFound) {
		h.reply(ctx, chatID, "❌ Запрошенный файл не найден.")
		return
	}
	if err != nil {
		logger.WithError(err).Error("Ошибка чтения файла")
		h.reply(ctx, chatID, "❌ Не удалось получить файл, попробуйте позже")
		return
	}

	caption := h.settings.Caption()
	if f.Caption != nil {
		caption = *f.Caption
	}

	msgID, err := h.media.SendMedia(ctx, chatID, f.Kind, f.FileID, caption, transport.SendOptions{})
	if err != nil {
		logger.WithError(err).Error("Ошибка отправки файла")
		h.reply(ctx, chatID, "❌ Не удалось отправить файл. Возможно, он больше недоступен в Telegram, сообщите администратору.")
		return
	}
	h.service.MarkDelivered(ctx, f.ID)
	logger.WithField("kind", f.Kind).Info("Файл выдан")

	timeout := h.settings.DeleteTimeout()
	if timeout <= 0 {
		return
	}

	availableAt := h.now().Add(timeout)
	kb := transport.Keyboard{{{
		Text:         "🔄 Получить файл снова",
		CallbackData: fmt.Sprintf("%s%s:%d", ResendPrefix, f.ID, availableAt.UnixMilli()),
	}}}
	warning := fmt.Sprintf("⏳ Файл будет автоматически удалён через %s.\n\n💾 Сохраните его сразу (перешлите в «Избранное»).",
		common.FormatSeconds(timeout))
	if _, err := h.media.SendText(ctx, chatID, warning, transport.SendOptions{Keyboard: kb}); err != nil {
		logger.WithError(err).Warn("Не удалось отправить предупреждение об удалении")
	}

	toDelete := []int{msgID}
	if triggerID != 0 {
		toDelete = append(toDelete, triggerID)
	}
	h.after(timeout, func() {
		dctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, m := range toDelete {
			if err := h.media.DeleteMessage(dctx, chatID, m); err != nil {
				logger.WithError(err).WithField("message_id", m).Warn("Не удалось удалить сообщение")
			}
		}
	})
}

// HandleResendCallback — кнопка «Получить файл снова». Доступна после удаления.
func (h *Handler) HandleResendCallback(ctx context.Context, cb transport.Callback) {
	id, availableAt, ok := ParseResend(cb.Data)
	if !ok {
		return
	}
	if h.now().Before(availableAt) {
		h.answer(ctx, cb.ID, "⏳ Файл ещё не удалён, сохраните его из сообщения выше.", true)
		return
	}
	h.answer(ctx, cb.ID, "Отправляю файл снова...", false)
	if !h.gate.Require(ctx, cb.ChatID, cb.UserID, id) {
		return
	}
	h.Deliver(ctx, cb.ChatID, cb.UserID, id, 0)
}

// ParseResend разбирает resend:<id>:<unix ms>.
func ParseResend(data string) (id string, availableAt time.Time, ok bool) {
	rest, found := strings.CutPrefix(data, ResendPrefix)
	if !found {
		return "", time.Time{}, false
	}
	id, msRaw, _ := strings.Cut(rest, ":")
	if id == "" {
		return "", time.Time{}, false
	}
	if msRaw != "" {
		ms, err := strconv.ParseInt(msRaw, 10, 64)
		if err != nil {
			return "", time.Time{}, false
		}
		availableAt = time.UnixMilli(ms)
	}
	return id, availableAt, true
}

// HandleDelete — /delfile <id>.
func (h *Handler) HandleDelete(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		h.reply(ctx, chatID, "❌ Формат: /delfile id")
		return
	}
	removed, err := h.service.Delete(ctx, args[0])
	if err != nil {
		log.WithError(err).WithField("file", args[0]).Error("Ошибка удаления файла")
		h.reply(ctx, chatID, "❌ Не удалось удалить файл")
		return
	}
	if !removed {
		h.reply(ctx, chatID, "❌ "+common.ErrContentNotFound.Error())
		return
	}
	h.reply(ctx, chatID, "🗑 Файл удалён, ссылка больше не работает")
}

// HandleInfo — /fileinfo <id>: тип, подпись, число выдач.
func (h *Handler) HandleInfo(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		h.reply(ctx, chatID, "❌ Формат: /fileinfo id")
		return
	}
	f, err := h.service.Get(ctx, args[0])
	if errors.Is(err, common.ErrContentNotFound) {
		h.reply(ctx, chatID, "❌ "+err.Error())
		return
	}
	if err != nil {
		log.WithError(err).Error("Ошибка чтения файла")
		h.reply(ctx, chatID, "❌ Не удалось получить файл")
		return
	}

	caption := "из настроек"
	if f.Caption != nil {
		caption = html.EscapeString(*f.Caption)
	}
	h.replyHTML(ctx, chatID, fmt.Sprintf(
		"📁 <code>%s</code> (%s)\nПодпись: %s\nВыдан: %s\nСсылка: %s",
		f.ID, f.Kind, caption,
		fmt.Sprintf("%d %s", f.UsageCount, common.Pluralize(f.UsageCount, "раз", "раза", "раз")),
		html.EscapeString(h.Link(f.ID)),
	))
}

func (h *Handler) sendStartText(ctx context.Context, chatID int64) {
	text := h.settings.StartText()
	if text == "" {
		text = "👋 Привет! Файлы выдаются по ссылкам из наших каналов."
	}
	h.reply(ctx, chatID, text)
}

func (h *Handler) answer(ctx context.Context, callbackID, text string, alert bool) {
	if err := h.media.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		log.WithError(err).Debug("Ошибка answerCallbackQuery")
	}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.media.SendText(ctx, chatID, text, transport.SendOptions{}); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

func (h *Handler) replyHTML(ctx context.Context, chatID int64, text string) {
	opts := transport.SendOptions{ParseMode: transport.ParseModeHTML, DisablePreview: true}
	if _, err := h.media.SendText(ctx, chatID, text, opts); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
