// Package forcejoin — repository.go работает с таблицами force_join_targets,
// force_join_extra_links и user_target_joins.
package forcejoin

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/db/postgres"
)

// Repository — хранилище обязательных каналов и журнала вступлений.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListTargets — все обязательные каналы в порядке добавления.
func (r *Repository) ListTargets(ctx context.Context) ([]Target, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, title, invite_link, button_text, chat_type, condition_limit, current_count, created_at
		FROM force_join_targets
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения каналов: %w", err)
	}
	defer rows.Close()

	var out []Target
	for rows.Next() {
		var (
			t     Target
			kind  string
			limit *int
			count int
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.InviteLink, &t.ButtonText, &kind, &limit, &count, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Kind = ChatKind(kind)
		if limit != nil {
			t.Condition = &JoinCondition{Limit: *limit, CurrentCount: count}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddTarget добавляет канал. Повторное добавление обновляет данные и сбрасывает счётчик.
func (r *Repository) AddTarget(ctx context.Context, t Target) error {
	var limit *int
	if t.Condition != nil {
		limit = &t.Condition.Limit
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_target_joins WHERE target_id = $1`, t.ID); err != nil {
		return fmt.Errorf("ошибка очистки журнала: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO force_join_targets (id, title, invite_link, button_text, chat_type, condition_limit, current_count)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
		    invite_link = EXCLUDED.invite_link,
		    button_text = EXCLUDED.button_text,
		    chat_type = EXCLUDED.chat_type,
		    condition_limit = EXCLUDED.condition_limit,
		    current_count = 0
	`, t.ID, t.Title, t.InviteLink, t.ButtonText, string(t.Kind), limit)
	if err != nil {
		return fmt.Errorf("ошибка добавления канала: %w", err)
	}
	return tx.Commit(ctx)
}

// RemoveTarget удаляет канал вместе с журналом вступлений.
// Возвращает false, если канала уже не было.
func (r *Repository) RemoveTarget(ctx context.Context, id int64) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_target_joins WHERE target_id = $1`, id); err != nil {
		return false, fmt.Errorf("ошибка очистки журнала: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM force_join_targets WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления канала: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordJoin атомарно: вставляет (user, target), если пары не было,
// и только в этом случае увеличивает current_count. Одним запросом,
// поэтому параллельные проверки не теряют и не удваивают вступления.
func (r *Repository) RecordJoin(ctx context.Context, userID, targetID int64) (JoinResult, error) {
	var (
		count int
		limit *int
	)
	err := r.db.QueryRow(ctx, `
		WITH ins AS (
			INSERT INTO user_target_joins (user_id, target_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
			RETURNING target_id
		)
		UPDATE force_join_targets t
		SET current_count = t.current_count + 1
		FROM ins
		WHERE t.id = ins.target_id
		RETURNING t.current_count, t.condition_limit
	`, userID, targetID).Scan(&count, &limit)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// пара уже была
		return JoinResult{}, nil
	case postgres.IsForeignKeyViolation(err):
		// канал успели удалить
		return JoinResult{}, nil
	case err != nil:
		return JoinResult{}, fmt.Errorf("ошибка записи вступления: %w", err)
	}

	res := JoinResult{Inserted: true, Count: count}
	if limit != nil {
		res.Limit = *limit
	}
	return res, nil
}

// Retract снимает канал по достижении лимита. true получает ровно один вызывающий.
func (r *Repository) Retract(ctx context.Context, targetID int64) (bool, error) {
	return r.RemoveTarget(ctx, targetID)
}

// ListExtraLinks — дополнительные ссылки.
func (r *Repository) ListExtraLinks(ctx context.Context) ([]ExtraLink, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, title, invite_link, button_text FROM force_join_extra_links ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ссылок: %w", err)
	}
	defer rows.Close()

	var out []ExtraLink
	for rows.Next() {
		var l ExtraLink
		if err := rows.Scan(&l.ID, &l.Title, &l.InviteLink, &l.ButtonText); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// AddExtraLink добавляет ссылку и возвращает её id.
func (r *Repository) AddExtraLink(ctx context.Context, l ExtraLink) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO force_join_extra_links (title, invite_link, button_text)
		VALUES ($1, $2, $3) RETURNING id
	`, l.Title, l.InviteLink, l.ButtonText).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ошибка добавления ссылки: %w", err)
	}
	return id, nil
}

// RemoveExtraLink удаляет ссылку.
func (r *Repository) RemoveExtraLink(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM force_join_extra_links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления ссылки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrLinkNotFound
	}
	return nil
}
