// Package middleware содержит промежуточные обработчики: flood-контроль,
// логирование входящих апдейтов и восстановление после паники.
package middleware

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// LogMessage логирует входящее сообщение.
// Записывает: user_id, chat_id, username, текст (первые 50 символов).
func LogMessage(message *telego.Message) {
	if message == nil || message.From == nil {
		return
	}

	log.WithFields(log.Fields{
		"user_id":  message.From.ID,
		"chat_id":  message.Chat.ID,
		"username": message.From.Username,
		"text":     truncate(message.Text, 50),
	}).Debug("Входящее сообщение")
}

// LogCallback логирует нажатие inline-кнопки.
func LogCallback(query *telego.CallbackQuery) {
	if query == nil {
		return
	}
	log.WithFields(log.Fields{
		"user_id":  query.From.ID,
		"username": query.From.Username,
		"data":     truncate(query.Data, 50),
	}).Debug("Входящий callback")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
