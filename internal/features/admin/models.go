// Package admin отвечает за личность оператора: главные админы из конфига
// и вход по паролю (Argon2id) с сессиями и защитой от перебора.
// models.go описывает структуры сессий и попыток входа.
package admin

import "time"

// Session — активная сессия оператора.
type Session struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	IsActive        bool      `db:"is_active"`
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

const (
	// SessionTTL — время жизни сессии
	SessionTTL = 24 * time.Hour
	// MaxFailedAttempts неудачных попыток за AttemptsWindow блокируют вход
	MaxFailedAttempts = 3
	AttemptsWindow    = time.Hour
)
