// Package telegram — реализация транспорта поверх telego.
// Все ответы Bot API с ошибкой приводятся к *transport.Error.
package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"

	"serotonyl.ru/gatebot/internal/transport"
)

// Client — клиент Bot API.
type Client struct {
	bot      *telego.Bot
	username string
}

// New создаёт клиента и запрашивает getMe, чтобы узнать username бота
// (нужен для deep-link ссылок на файлы).
func New(ctx context.Context, token string) (*Client, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("telego.NewBot: %w", err)
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("getMe: %w", wrap(err))
	}

	return &Client{bot: bot, username: me.Username}, nil
}

// Bot возвращает исходный *telego.Bot (нужен циклу обновлений).
func (c *Client) Bot() *telego.Bot { return c.bot }

// Username — username бота без @.
func (c *Client) Username() string { return c.username }

// Updates запускает long polling. Канал закрывается после отмены ctx.
func (c *Client) Updates(ctx context.Context, timeoutSec int) (<-chan telego.Update, error) {
	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: timeoutSec,
		AllowedUpdates: []string{
			"message",
			"callback_query",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("long polling: %w", wrap(err))
	}
	return updates, nil
}

// GetMembership — статус пользователя в чате.
func (c *Client) GetMembership(ctx context.Context, chatID, userID int64) (transport.Membership, error) {
	member, err := c.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(chatID),
		UserID: userID,
	})
	if err != nil {
		return transport.Membership{}, wrap(err)
	}

	m := transport.Membership{Status: transport.MemberStatus(member.MemberStatus())}
	if restricted, ok := member.(*telego.ChatMemberRestricted); ok {
		m.IsMember = restricted.IsMember
	}
	return m, nil
}

// SendText отправляет текст, возвращает message_id.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, opts transport.SendOptions) (int, error) {
	params := &telego.SendMessageParams{
		ChatID:    tu.ID(chatID),
		Text:      text,
		ParseMode: opts.ParseMode,
	}
	if kb := keyboard(opts.Keyboard); kb != nil {
		params.ReplyMarkup = kb
	}
	if opts.DisablePreview {
		params.LinkPreviewOptions = &telego.LinkPreviewOptions{IsDisabled: true}
	}

	msg, err := c.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, wrap(err)
	}
	return msg.MessageID, nil
}

// SendMedia отправляет фото/видео/аудио/документ по file_id.
func (c *Client) SendMedia(ctx context.Context, chatID int64, kind transport.MediaKind, fileID, caption string, opts transport.SendOptions) (int, error) {
	var (
		msg *telego.Message
		err error
	)
	file := tu.FileFromID(fileID)
	kb := keyboard(opts.Keyboard)

	switch kind {
	case transport.MediaPhoto:
		p := &telego.SendPhotoParams{ChatID: tu.ID(chatID), Photo: file, Caption: caption, ParseMode: opts.ParseMode}
		if kb != nil {
			p.ReplyMarkup = kb
		}
		msg, err = c.bot.SendPhoto(ctx, p)
	case transport.MediaVideo:
		p := &telego.SendVideoParams{ChatID: tu.ID(chatID), Video: file, Caption: caption, ParseMode: opts.ParseMode}
		if kb != nil {
			p.ReplyMarkup = kb
		}
		msg, err = c.bot.SendVideo(ctx, p)
	case transport.MediaAudio:
		p := &telego.SendAudioParams{ChatID: tu.ID(chatID), Audio: file, Caption: caption, ParseMode: opts.ParseMode}
		if kb != nil {
			p.ReplyMarkup = kb
		}
		msg, err = c.bot.SendAudio(ctx, p)
	case transport.MediaDocument:
		p := &telego.SendDocumentParams{ChatID: tu.ID(chatID), Document: file, Caption: caption, ParseMode: opts.ParseMode}
		if kb != nil {
			p.ReplyMarkup = kb
		}
		msg, err = c.bot.SendDocument(ctx, p)
	default:
		return 0, fmt.Errorf("unsupported media kind %q", kind)
	}
	if err != nil {
		return 0, wrap(err)
	}
	return msg.MessageID, nil
}

// CopyMessage копирует сообщение без указания автора.
func (c *Client) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	id, err := c.bot.CopyMessage(ctx, &telego.CopyMessageParams{
		ChatID:     tu.ID(toChatID),
		FromChatID: tu.ID(fromChatID),
		MessageID:  messageID,
	})
	if err != nil {
		return 0, wrap(err)
	}
	return id.MessageID, nil
}

// ForwardMessage пересылает сообщение с указанием автора.
func (c *Client) ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	msg, err := c.bot.ForwardMessage(ctx, &telego.ForwardMessageParams{
		ChatID:     tu.ID(toChatID),
		FromChatID: tu.ID(fromChatID),
		MessageID:  messageID,
	})
	if err != nil {
		return 0, wrap(err)
	}
	return msg.MessageID, nil
}

// EditText редактирует текст сообщения (и клавиатуру, если задана).
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, opts transport.SendOptions) error {
	params := &telego.EditMessageTextParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
		Text:      text,
		ParseMode: opts.ParseMode,
	}
	if kb := keyboard(opts.Keyboard); kb != nil {
		params.ReplyMarkup = kb
	}
	if opts.DisablePreview {
		params.LinkPreviewOptions = &telego.LinkPreviewOptions{IsDisabled: true}
	}

	if _, err := c.bot.EditMessageText(ctx, params); err != nil {
		return wrap(err)
	}
	return nil
}

// DeleteMessage удаляет сообщение.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	err := c.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	})
	return wrap(err)
}

// AnswerCallback отвечает на нажатие inline-кнопки.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	err := c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	return wrap(err)
}

func keyboard(kb transport.Keyboard) *telego.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]telego.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btn := tu.InlineKeyboardButton(b.Text)
			if b.URL != "" {
				btn = btn.WithURL(b.URL)
			} else {
				btn = btn.WithCallbackData(b.CallbackData)
			}
			buttons = append(buttons, btn)
		}
		rows = append(rows, tu.InlineKeyboardRow(buttons...))
	}
	return tu.InlineKeyboard(rows...)
}

// wrap превращает *telegoapi.Error в *transport.Error, остальное не трогает.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *telegoapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	out := &transport.Error{
		Code:        apiErr.ErrorCode,
		Description: apiErr.Description,
	}
	if apiErr.Parameters != nil {
		out.RetryAfter = apiErr.Parameters.RetryAfter
	}
	return out
}
