// Package bot — цикл получения апдейтов и маршрутизация команд.
// bot.go: long polling, ограничение параллелизма, цепочка фильтров
// (паника → доступ → flood → пользователь) и роутинг.
package bot

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/gatebot/internal/bot/filters"
	"serotonyl.ru/gatebot/internal/bot/middleware"
	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/config"
	"serotonyl.ru/gatebot/internal/features/admin"
	"serotonyl.ru/gatebot/internal/features/broadcast"
	"serotonyl.ru/gatebot/internal/features/content"
	"serotonyl.ru/gatebot/internal/features/forcejoin"
	"serotonyl.ru/gatebot/internal/features/settings"
	"serotonyl.ru/gatebot/internal/features/stats"
	"serotonyl.ru/gatebot/internal/features/users"
	"serotonyl.ru/gatebot/internal/notify"
	"serotonyl.ru/gatebot/internal/transport"
)

// Updater — источник апдейтов.
type Updater interface {
	Updates(ctx context.Context, timeoutSec int) (<-chan telego.Update, error)
}

// Deps — всё, что нужно боту для маршрутизации.
type Deps struct {
	Updater   Updater
	Messenger transport.Messenger
	Notifier  *notify.Notifier

	Filter *filters.ChatFilter
	Flood  *middleware.FloodControl

	Admin     *admin.Service
	Users     *users.Service
	Settings  *settings.Service

	AdminHandler     *admin.Handler
	UsersHandler     *users.Handler
	SettingsHandler  *settings.Handler
	ForceJoinHandler *forcejoin.Handler
	BroadcastHandler *broadcast.Handler
	ContentHandler   *content.Handler
	StatsHandler     *stats.Handler
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	Deps
	cfg    *config.Config
	parser *CommandParser
	now    func() time.Time

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
	wg       sync.WaitGroup
}

// errorAdvisoryKey — ключ антиспама для предупреждений об ошибках
const errorAdvisoryKey = "handler_error"

// New создаёт бота.
func New(cfg *config.Config, deps Deps) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}
	return &Bot{
		Deps:     deps,
		cfg:      cfg,
		parser:   NewCommandParser(),
		now:      time.Now,
		inflight: make(chan struct{}, maxInFlight),
	}
}

// Start запускает long polling и блокируется до отмены ctx.
// Перед выходом дожидается обработки уже принятых апдейтов.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.Updater.Updates(ctx, b.cfg.BotUpdateTimeoutSeconds)
	if err != nil {
		return fmt.Errorf("не удалось запустить long polling: %w", err)
	}

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return nil
			}

			// лимит параллелизма
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
			b.wg.Add(1)
			go func(upd telego.Update) {
				defer b.wg.Done()
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	var chatID int64
	switch {
	case update.Message != nil:
		chatID = update.Message.Chat.ID
	case update.CallbackQuery != nil:
		chatID = update.CallbackQuery.From.ID
	}
	defer middleware.RecoverFromPanic(func(msg string) {
		b.reportFailure(ctx, chatID, update.UpdateID, msg)
	})

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// reportFailure — пользователю общий ответ, операторам предупреждение (не чаще cooldown).
func (b *Bot) reportFailure(ctx context.Context, chatID int64, updateID int, msg string) {
	if chatID != 0 {
		b.send(ctx, chatID, "❌ Произошла ошибка, попробуйте ещё раз позже")
	}
	text := fmt.Sprintf("⚠️ <b>Ошибка в обработчике</b>\n\nupdate_id: %d\nchat_id: <code>%d</code>\n<pre>%s</pre>",
		updateID, chatID, html.EscapeString(truncateRunes(msg, 500)))
	b.Notifier.NotifyThrottled(ctx, errorAdvisoryKey, b.cfg.ForceJoinNotifyCooldown, text)
}

// admit — цепочка: доступ → flood → регистрация пользователя.
func (b *Bot) admit(ctx context.Context, chatID int64, chatType string, from *telego.User) (operator bool, ok bool) {
	operator = b.Admin.IsOperator(ctx, from.ID)

	if !b.Filter.CheckAccess(ctx, filters.Inbound{
		ChatID:   chatID,
		ChatType: chatType,
		UserID:   from.ID,
		Operator: operator,
	}) {
		return operator, false
	}

	if !operator {
		switch b.Flood.Check(from.ID, b.Settings.FloodLimit(), b.cfg.FloodWindow, b.now()) {
		case middleware.Deny:
			b.send(ctx, chatID, fmt.Sprintf("⛔ Слишком много запросов. Вы заблокированы на %s.",
				common.FormatSeconds(b.cfg.FloodBanDuration)))
			return operator, false
		case middleware.Banned:
			return operator, false
		}
	}

	if err := b.Users.EnsureUser(ctx, from.ID, from.Username, from.FirstName, from.LastName); err != nil {
		log.WithError(err).WithField("user_id", from.ID).Warn("EnsureUser failed")
	}
	return operator, true
}

func (b *Bot) handleMessage(ctx context.Context, message *telego.Message) {
	if message.From == nil {
		return
	}
	middleware.LogMessage(message)

	operator, ok := b.admit(ctx, message.Chat.ID, message.Chat.Type, message.From)
	if !ok {
		return
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}
	log.WithFields(log.Fields{
		"cmd":      cmd,
		"args":     len(args),
		"operator": operator,
	}).Debug("parsed command")

	b.routeCommand(ctx, message, operator, cmd, args)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, message *telego.Message, operator bool, cmd string, args []string) {
	chatID := message.Chat.ID
	userID := message.From.ID

	// Команды для всех
	switch cmd {
	case "start":
		if len(args) == 0 && operator {
			b.sendHTML(ctx, chatID, operatorHelp)
			return
		}
		b.ContentHandler.HandleStart(ctx, chatID, userID, message.MessageID, strings.Join(args, " "))
		return

	case "login":
		b.AdminHandler.HandleLogin(ctx, chatID, userID, args)
		// пароль не должен оставаться в истории чата
		if err := b.Messenger.DeleteMessage(ctx, chatID, message.MessageID); err != nil {
			log.WithError(err).Debug("Не удалось удалить сообщение с паролем")
		}
		return
	}

	if !operator {
		if operatorCommands[cmd] {
			b.send(ctx, chatID, "❌ У вас нет прав администратора")
		}
		return
	}

	switch cmd {
	case "help":
		b.sendHTML(ctx, chatID, operatorHelp)
	case "logout":
		b.AdminHandler.HandleLogout(ctx, chatID, userID)

	// --- контент ---
	case "save":
		b.ContentHandler.HandleSave(ctx, chatID, userID, attachmentOf(message.ReplyToMessage), args)
	case "delfile":
		b.ContentHandler.HandleDelete(ctx, chatID, args)
	case "fileinfo":
		b.ContentHandler.HandleInfo(ctx, chatID, args)

	// --- рассылка ---
	case "broadcast":
		b.BroadcastHandler.HandleBroadcast(ctx, chatID, userID, replyID(message), broadcast.ModeCopy)
	case "broadcast_fwd":
		b.BroadcastHandler.HandleBroadcast(ctx, chatID, userID, replyID(message), broadcast.ModeForward)
	case "bcstatus":
		b.BroadcastHandler.HandleStatus(ctx, chatID)
	case "bcstop":
		b.BroadcastHandler.HandleStop(ctx, chatID)
	case "speed":
		b.BroadcastHandler.HandleSpeed(ctx, chatID, args)

	// --- обязательная подписка ---
	case "addch":
		b.ForceJoinHandler.HandleAddTarget(ctx, chatID, args, forcejoin.KindChannel)
	case "addgroup":
		b.ForceJoinHandler.HandleAddTarget(ctx, chatID, args, forcejoin.KindGroup)
	case "rmch":
		b.ForceJoinHandler.HandleRemoveTarget(ctx, chatID, args)
	case "addlink":
		b.ForceJoinHandler.HandleAddLink(ctx, chatID, args)
	case "rmlink":
		b.ForceJoinHandler.HandleRemoveLink(ctx, chatID, args)
	case "targets":
		b.ForceJoinHandler.HandleTargets(ctx, chatID)

	// --- пользователи ---
	case "ban":
		b.UsersHandler.HandleBan(ctx, chatID, userID, args)
	case "unban":
		b.UsersHandler.HandleUnban(ctx, chatID, args)

	// --- настройки ---
	case "floodlimit":
		b.SettingsHandler.HandleFloodLimit(ctx, chatID, args)
	case "bot":
		b.SettingsHandler.HandleBotToggle(ctx, chatID, args)
	case "forcejoin":
		b.SettingsHandler.HandleForceJoinToggle(ctx, chatID, args)
	case "caption":
		b.SettingsHandler.HandleCaption(ctx, chatID, args)
	case "starttext":
		b.SettingsHandler.HandleStartText(ctx, chatID, args)
	case "deltime":
		b.SettingsHandler.HandleDeleteTimeout(ctx, chatID, args)

	case "stats":
		b.StatsHandler.HandleStats(ctx, chatID)
	}
}

func (b *Bot) handleCallback(ctx context.Context, query *telego.CallbackQuery) {
	middleware.LogCallback(query)

	cb := transport.Callback{
		ID:     query.ID,
		UserID: query.From.ID,
		ChatID: query.From.ID,
		Data:   query.Data,
	}
	chatType := filters.ChatTypePrivate
	if query.Message != nil {
		chat := query.Message.GetChat()
		cb.ChatID = chat.ID
		cb.MessageID = query.Message.GetMessageID()
		chatType = chat.Type
	}

	if _, ok := b.admit(ctx, cb.ChatID, chatType, &query.From); !ok {
		return
	}

	switch {
	case strings.HasPrefix(cb.Data, forcejoin.CallbackPrefix):
		b.ForceJoinHandler.HandleCheckCallback(ctx, cb)
	case strings.HasPrefix(cb.Data, content.ResendPrefix):
		b.ContentHandler.HandleResendCallback(ctx, cb)
	default:
		if err := b.Messenger.AnswerCallback(ctx, cb.ID, "", false); err != nil {
			log.WithError(err).Debug("Ошибка answerCallbackQuery")
		}
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if _, err := b.Messenger.SendText(ctx, chatID, text, transport.SendOptions{}); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

func (b *Bot) sendHTML(ctx context.Context, chatID int64, text string) {
	opts := transport.SendOptions{ParseMode: transport.ParseModeHTML, DisablePreview: true}
	if _, err := b.Messenger.SendText(ctx, chatID, text, opts); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
