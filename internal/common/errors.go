// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки рассылки
var (
	// ErrBroadcastInProgress — другая рассылка ещё не завершилась
	ErrBroadcastInProgress = errors.New("другая рассылка уже выполняется")
	// ErrUnknownProfile — неизвестный профиль скорости
	ErrUnknownProfile = errors.New("неизвестный профиль скорости")
	// ErrNoRecipients — после фильтрации не осталось получателей
	ErrNoRecipients = errors.New("нет активных получателей")
	// ErrMissingSource — не указан исходный чат/сообщение для копирования
	ErrMissingSource = errors.New("не найден исходный чат для копирования")
	// ErrNoActiveBroadcast — отменять нечего
	ErrNoActiveBroadcast = errors.New("активной рассылки нет")
)

// Ошибки обязательной подписки
var (
	// ErrTargetNotFound — канал/группа не найдены в списке обязательных
	ErrTargetNotFound = errors.New("канал не найден в списке обязательных")
	// ErrLinkNotFound — дополнительная ссылка не найдена
	ErrLinkNotFound = errors.New("ссылка не найдена")
	// ErrInvalidLimit — лимит вступлений должен быть >= 1
	ErrInvalidLimit = errors.New("лимит должен быть положительным")
)

// Ошибки контента
var (
	// ErrContentNotFound — файл по идентификатору не найден
	ErrContentNotFound = errors.New("файл не найден")
	// ErrUnsupportedMedia — в сообщении нет поддерживаемого вложения
	ErrUnsupportedMedia = errors.New("поддерживаются только фото, видео, аудио и документы")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является оператором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrInvalidSetting — значение настройки не прошло проверку
	ErrInvalidSetting = errors.New("некорректное значение настройки")
)
