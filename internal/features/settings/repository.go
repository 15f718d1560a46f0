package settings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицей settings.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий настроек.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// All возвращает все настройки.
func (r *Repository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения настроек: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Set сохраняет значение (upsert).
func (r *Repository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("ошибка сохранения настройки %s: %w", key, err)
	}
	return nil
}
