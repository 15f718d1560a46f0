// Package forcejoin — обязательная подписка: выдача контента только
// участникам заданных каналов/групп.
//
// Каждая проверка читает список каналов из БД заново. Недоступные каналы
// временно исключаются из запросов к Telegram (считаются неподписанными),
// а вступления считаются один раз на пару пользователь-канал.
package forcejoin

import (
	"fmt"
	"time"
)

// ChatKind — канал или группа.
type ChatKind string

const (
	KindChannel ChatKind = "channel"
	KindGroup   ChatKind = "group"
)

// Label — как показывать тип в сообщениях.
func (k ChatKind) Label() string {
	if k == KindGroup {
		return "группа"
	}
	return "канал"
}

// JoinCondition — авто-снятие после Limit уникальных вступлений.
type JoinCondition struct {
	Limit        int
	CurrentCount int
}

// Target — обязательный канал/группа.
type Target struct {
	ID         int64 // chat_id в Telegram
	Title      string
	InviteLink string
	ButtonText string
	Kind       ChatKind
	Condition  *JoinCondition // nil — без лимита
	CreatedAt  time.Time
}

// Button — текст кнопки вступления.
func (t Target) Button() string {
	if t.ButtonText != "" {
		return t.ButtonText
	}
	return "Подписаться: " + t.Title
}

// ExtraLink — дополнительная ссылка без проверки членства.
type ExtraLink struct {
	ID         int64
	Title      string
	InviteLink string
	ButtonText string
}

// Button — текст кнопки; index нумерует ссылки без названия.
func (l ExtraLink) Button(index int) string {
	if l.ButtonText != "" {
		return l.ButtonText
	}
	if l.Title != "" {
		return "🔗 " + l.Title
	}
	return fmt.Sprintf("🔗 Дополнительная ссылка %d", index+1)
}

// Unavailable — канал, членство в котором проверить не удалось.
type Unavailable struct {
	Target Target
	Reason string
}

// Evaluation — результат проверки одного пользователя.
type Evaluation struct {
	Satisfied   bool
	Missing     []Target
	Subscribed  []Target
	Unavailable []Unavailable
}

// Gate — результат проверки вместе с тем, что нужно показать пользователю.
type Gate struct {
	Evaluation
	ExtraLinks []ExtraLink
}

// JoinResult — итог записи вступления.
type JoinResult struct {
	// Inserted — пара (user, target) записана впервые
	Inserted bool
	Count    int
	Limit    int // 0 — без лимита
}

// LimitReached — пора снимать канал.
func (r JoinResult) LimitReached() bool {
	return r.Inserted && r.Limit > 0 && r.Count >= r.Limit
}

const (
	// CallbackPrefix — префикс callback_data кнопки повторной проверки
	CallbackPrefix = "check_sub:"
	// NoFile — в кнопке нет отложенного файла
	NoFile = "no_file"

	reasonCoolingDown = "ещё в периоде недоступности"
)
