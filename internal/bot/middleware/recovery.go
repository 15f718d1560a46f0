package middleware

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// RecoverFromPanic вызывается через defer в обработчике апдейта.
// onPanic (если задан) получает текст паники: бот отвечает пользователю и предупреждает операторов.
func RecoverFromPanic(onPanic func(msg string)) {
	r := recover()
	if r == nil {
		return
	}

	msg := fmt.Sprintf("%v", r)
	log.WithFields(log.Fields{
		"component": "panic_recovery",
		"panic":     msg,
		"stack":     string(debug.Stack()),
	}).Error("ПАНИКА в обработчике — восстановлено")

	if onPanic != nil {
		onPanic(msg)
	}
}
