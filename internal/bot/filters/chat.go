// Package filters — кого бот вообще слушает. Проверки идут до flood-контроля:
// только личные чаты, без забаненных, и при выключенном боте только операторы.
package filters

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// ChatTypePrivate — личный чат с ботом.
const ChatTypePrivate = "private"

// BanChecker — бан-лист.
type BanChecker interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
}

// Inbound — то, что известно о входящем апдейте.
type Inbound struct {
	ChatID   int64
	ChatType string
	UserID   int64
	Operator bool
}

type ChatFilter struct {
	bans       BanChecker
	botEnabled func() bool
}

func NewChatFilter(bans BanChecker, botEnabled func() bool) *ChatFilter {
	if botEnabled == nil {
		botEnabled = func() bool { return true }
	}
	return &ChatFilter{bans: bans, botEnabled: botEnabled}
}

// CheckAccess — обрабатывать ли апдейт.
func (f *ChatFilter) CheckAccess(ctx context.Context, in Inbound) bool {
	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   in.ChatID,
		"chat_type": in.ChatType,
		"user_id":   in.UserID,
	})

	// 1) Только личка
	if in.ChatType != ChatTypePrivate {
		logger.Debug("deny: not private")
		return false
	}
	if in.UserID == 0 {
		logger.Warn("deny: no sender")
		return false
	}

	// Операторов не фильтруем дальше
	if in.Operator {
		return true
	}

	// 2) Бан-лист. Ошибка БД = не пускаем
	banned, err := f.bans.IsBanned(ctx, in.UserID)
	if err != nil {
		logger.WithError(err).Error("ban check failed (db)")
		return false
	}
	if banned {
		logger.Debug("deny: banned")
		return false
	}

	// 3) Бот выключен оператором
	if !f.botEnabled() {
		logger.Info("deny: bot disabled")
		return false
	}
	return true
}
