// Package admin — repository.go работает с таблицами admin_sessions и admin_login_attempts.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с админ-таблицами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateSession создаёт новую сессию. Прежние сессии пользователя гасятся.
func (r *Repository) CreateSession(ctx context.Context, session *Session) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE admin_sessions SET is_active = FALSE WHERE user_id = $1`, session.UserID,
	); err != nil {
		return fmt.Errorf("ошибка деактивации старых сессий: %w", err)
	}

	query := `
		INSERT INTO admin_sessions (user_id, session_token, expires_at, is_active)
		VALUES ($1, $2, $3, TRUE)
	`
	if _, err := tx.Exec(ctx, query, session.UserID, session.SessionToken, session.ExpiresAt); err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return tx.Commit(ctx)
}

// HasActiveSession — есть ли у пользователя действующая сессия.
func (r *Repository) HasActiveSession(ctx context.Context, userID int64, now time.Time) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM admin_sessions
			WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2
		)`, userID, now,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки сессии: %w", err)
	}
	return ok, nil
}

// DeactivateSessions гасит все сессии пользователя.
func (r *Repository) DeactivateSessions(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE admin_sessions SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE`, userID)
	if err != nil {
		return 0, fmt.Errorf("ошибка деактивации сессии: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ActiveOperatorIDs — пользователи с действующими сессиями.
func (r *Repository) ActiveOperatorIDs(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT user_id FROM admin_sessions
		WHERE is_active = TRUE AND expires_at > $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения операторов: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, userID int64, success bool) error {
	query := `INSERT INTO admin_login_attempts (user_id, success) VALUES ($1, $2)`
	_, err := r.db.Exec(ctx, query, userID, success)
	return err
}

// CountFailedAttempts возвращает количество неудачных попыток начиная с since.
func (r *Repository) CountFailedAttempts(ctx context.Context, userID int64, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	err := r.db.QueryRow(ctx, query, userID, since).Scan(&count)
	return count, err
}

// PurgeExpired удаляет истёкшие/погашенные сессии и старые попытки входа.
func (r *Repository) PurgeExpired(ctx context.Context, now time.Time, attemptsBefore time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM admin_sessions WHERE is_active = FALSE OR expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки сессий: %w", err)
	}
	if _, err := r.db.Exec(ctx,
		`DELETE FROM admin_login_attempts WHERE attempt_time < $1`, attemptsBefore); err != nil {
		return tag.RowsAffected(), fmt.Errorf("ошибка очистки попыток входа: %w", err)
	}
	return tag.RowsAffected(), nil
}
