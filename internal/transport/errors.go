package transport

import (
	"errors"
	"fmt"
	"strings"
)

// Error — нормализованная ошибка Bot API.
// Клиент обязан заворачивать ответы API в этот тип, чтобы классификаторы
// работали без знания о конкретной библиотеке.
type Error struct {
	Code        int
	Description string
	// RetryAfter в секундах, 0 если подсказки нет
	RetryAfter int
}

func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram: %d %s (retry after %ds)", e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram: %d %s", e.Code, e.Description)
}

// description возвращает текст ошибки в нижнем регистре.
// Для не-API ошибок берём err.Error(): сетевые обёртки часто сохраняют описание.
func description(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return strings.ToLower(apiErr.Description)
	}
	return strings.ToLower(err.Error())
}

func code(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

var inaccessibleMarkers = []string{
	"chat not found",
	"bot is not a member",
	"bot was kicked",
	"member list is inaccessible",
	"chat_admin_required",
	"not enough rights",
	"need administrator rights",
	"forbidden",
}

// IsTargetInaccessible — бот не может проверить членство в канале
// (нет доступа, канал не найден, нужны права администратора и т.п.).
func IsTargetInaccessible(err error) bool {
	if err == nil {
		return false
	}
	if code(err) == 403 {
		return true
	}
	desc := description(err)
	for _, m := range inaccessibleMarkers {
		if strings.Contains(desc, m) {
			return true
		}
	}
	return false
}

// RetryAfter возвращает подсказку retry_after из ошибки 429.
// ok=false, если это не ограничение частоты.
func RetryAfter(err error) (seconds int, ok bool) {
	if err == nil {
		return 0, false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.RetryAfter > 0 {
			return apiErr.RetryAfter, true
		}
		return 0, false
	}
	desc := description(err)
	if strings.Contains(desc, "too many requests") {
		var n int
		if i := strings.Index(desc, "retry after "); i >= 0 {
			_, _ = fmt.Sscanf(desc[i+len("retry after "):], "%d", &n)
		}
		return n, true
	}
	return 0, false
}

// DeliveryFailure — класс окончательной ошибки доставки одному получателю.
type DeliveryFailure string

const (
	FailureBlocked              DeliveryFailure = "blocked"
	FailureNotFound             DeliveryFailure = "not_found"
	FailureForwardSourceMissing DeliveryFailure = "forward_source_missing"
	FailureCopyNotPermitted     DeliveryFailure = "copy_not_permitted"
	FailureOther                DeliveryFailure = "other"
)

// ClassifyDelivery раскладывает ошибку доставки по классам.
// Используется только для логов и разовых подсказок оператору.
func ClassifyDelivery(err error) DeliveryFailure {
	desc := description(err)
	switch {
	case strings.Contains(desc, "bot was blocked by the user"),
		strings.Contains(desc, "blocked"):
		return FailureBlocked
	case strings.Contains(desc, "user is deactivated"),
		strings.Contains(desc, "chat not found"),
		strings.Contains(desc, "user not found"):
		return FailureNotFound
	case strings.Contains(desc, "message to forward not found"),
		strings.Contains(desc, "message to copy not found"):
		return FailureForwardSourceMissing
	case strings.Contains(desc, "can't be copied"),
		strings.Contains(desc, "message can't be forwarded"),
		strings.Contains(desc, "protected"):
		return FailureCopyNotPermitted
	default:
		return FailureOther
	}
}

// IsMessageNotModified — редактирование без изменений, ошибкой не считаем.
func IsMessageNotModified(err error) bool {
	return strings.Contains(description(err), "message is not modified")
}
