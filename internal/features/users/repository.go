// Package users — repository.go отвечает за операции с таблицами users и banned_users.
package users

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с пользователями.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert добавляет пользователя или обновляет имя/username и last_seen_at.
func (r *Repository) Upsert(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    last_seen_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, u.UserID, u.Username, u.FirstName, u.LastName); err != nil {
		return fmt.Errorf("ошибка создания/обновления пользователя: %w", err)
	}
	return nil
}

// IsBanned — есть ли пользователь в бан-листе.
func (r *Repository) IsBanned(ctx context.Context, userID int64) (bool, error) {
	var banned bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM banned_users WHERE user_id = $1)`, userID,
	).Scan(&banned)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки бана: %w", err)
	}
	return banned, nil
}

// Ban добавляет в бан-лист. Возвращает false, если уже был забанен.
func (r *Repository) Ban(ctx context.Context, userID, bannedBy int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO banned_users (user_id, banned_by) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, bannedBy)
	if err != nil {
		return false, fmt.Errorf("ошибка бана: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Unban убирает из бан-листа. Возвращает false, если бана не было.
func (r *Repository) Unban(ctx context.Context, userID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM banned_users WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("ошибка разбана: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Recipients — все пользователи кроме забаненных и exclude, в порядке регистрации.
func (r *Repository) Recipients(ctx context.Context, exclude int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT u.user_id FROM users u
		WHERE u.user_id <> $1
		  AND NOT EXISTS (SELECT 1 FROM banned_users b WHERE b.user_id = u.user_id)
		ORDER BY u.created_at, u.user_id
	`, exclude)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки получателей: %w", err)
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

// Stats считает пользователей; NewToday — зарегистрированные после since.
func (r *Repository) Stats(ctx context.Context, since time.Time) (Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM banned_users),
			(SELECT COUNT(*) FROM users WHERE created_at >= $1)
	`, since).Scan(&s.Total, &s.Banned, &s.NewToday)
	if err != nil {
		return Stats{}, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return s, nil
}
