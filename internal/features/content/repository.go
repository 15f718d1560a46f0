// Package content — repository.go отвечает за таблицу files.
package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/db/postgres"
	"serotonyl.ru/gatebot/internal/transport"
)

// ErrDuplicateID — идентификатор уже занят.
var ErrDuplicateID = errors.New("идентификатор файла уже занят")

// Repository работает с файлами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert сохраняет файл. Коллизия id возвращается как ErrDuplicateID.
func (r *Repository) Insert(ctx context.Context, f *File) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO files (id, file_id, kind, caption, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, f.ID, f.FileID, string(f.Kind), f.Caption, f.CreatedBy).Scan(&f.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("ошибка сохранения файла: %w", err)
	}
	return nil
}

// Get ищет файл по id.
func (r *Repository) Get(ctx context.Context, id string) (File, error) {
	var (
		f    File
		kind string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, file_id, kind, caption, usage_count, created_by, created_at
		FROM files WHERE id = $1
	`, id).Scan(&f.ID, &f.FileID, &kind, &f.Caption, &f.UsageCount, &f.CreatedBy, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return File{}, common.ErrContentNotFound
	}
	if err != nil {
		return File{}, fmt.Errorf("ошибка чтения файла: %w", err)
	}
	f.Kind = transport.MediaKind(kind)
	return f, nil
}

// IncrementUsage увеличивает счётчик выдач.
func (r *Repository) IncrementUsage(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `UPDATE files SET usage_count = usage_count + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("ошибка обновления счётчика: %w", err)
	}
	return nil
}

// Delete удаляет файл. false — такого не было.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления файла: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Count — сколько файлов сохранено.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return n, nil
}

// Top — самые запрашиваемые файлы.
func (r *Repository) Top(ctx context.Context, limit int) ([]File, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, file_id, kind, caption, usage_count, created_by, created_at
		FROM files
		ORDER BY usage_count DESC, created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения топа файлов: %w", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var (
			f    File
			kind string
		)
		if err := rows.Scan(&f.ID, &f.FileID, &kind, &f.Caption, &f.UsageCount, &f.CreatedBy, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		f.Kind = transport.MediaKind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}
