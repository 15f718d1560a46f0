// Package transport описывает транспорт-независимые типы чата:
// статусы участников, клавиатуры, параметры отправки и таксономию ошибок.
// Конкретный клиент (telego) живёт в подпакете telegram.
package transport

import "context"

// MemberStatus — статус пользователя в канале/группе.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// Membership — ответ на запрос членства.
type Membership struct {
	Status MemberStatus
	// IsMember имеет смысл только для restricted
	IsMember bool
}

// Satisfied — считается ли пользователь подписанным.
// restricted засчитывается только если он всё ещё участник.
func (m Membership) Satisfied() bool {
	switch m.Status {
	case StatusCreator, StatusAdministrator, StatusMember:
		return true
	case StatusRestricted:
		return m.IsMember
	default:
		return false
	}
}

// Button — inline-кнопка: либо ссылка, либо callback.
type Button struct {
	Text         string
	URL          string
	CallbackData string
}

// Keyboard — строки inline-кнопок.
type Keyboard [][]Button

// SendOptions — общие параметры отправки.
type SendOptions struct {
	ParseMode string
	Keyboard  Keyboard
	// DisablePreview отключает превью ссылок (для текстовых сообщений)
	DisablePreview bool
}

// MediaKind — тип медиа, которое можно отправить по file_id.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
)

// Valid — известен ли тип медиа.
func (k MediaKind) Valid() bool {
	switch k {
	case MediaPhoto, MediaVideo, MediaAudio, MediaDocument:
		return true
	}
	return false
}

// ParseModeHTML — единственный режим разметки, который использует бот.
const ParseModeHTML = "HTML"

// Sender — всё, что нужно обработчику для текстового ответа.
// *telegram.Client удовлетворяет этому интерфейсу.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error)
}

// Callback — нажатие inline-кнопки, без привязки к библиотеке.
type Callback struct {
	ID        string
	UserID    int64
	ChatID    int64
	MessageID int
	Data      string
}

// Messenger — отправка, редактирование и удаление сообщений плюс ответы на callback.
type Messenger interface {
	Sender
	EditText(ctx context.Context, chatID int64, messageID int, text string, opts SendOptions) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}
