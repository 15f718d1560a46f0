// Package content — файлы, сохранённые за короткими идентификаторами.
// Оператор сохраняет медиа командой /save, пользователь получает его
// по ссылке https://t.me/<бот>?start=<id> после проверки подписки.
package content

import (
	"time"

	"serotonyl.ru/gatebot/internal/transport"
)

// File — сохранённое медиа.
type File struct {
	ID     string
	FileID string
	Kind   transport.MediaKind
	// Caption — собственная подпись файла; nil — подпись из настроек
	Caption    *string
	UsageCount int64
	CreatedBy  int64
	CreatedAt  time.Time
}

// Attachment — вложение из сообщения, на которое ответили /save.
type Attachment struct {
	Kind    transport.MediaKind
	FileID  string
	Caption string
}

const (
	// IDLength — длина идентификатора файла
	IDLength = 10
	// ResendPrefix — callback кнопки повторного получения: resend:<id>:<unix ms>
	ResendPrefix = "resend:"

	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	// maxIDAttempts — сколько раз генерируем id при коллизии
	maxIDAttempts = 5
)
