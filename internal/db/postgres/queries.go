// Package postgres — вспомогательные функции для работы с БД.
// queries.go содержит общие утилиты для выполнения запросов.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Коды ошибок PostgreSQL, которые разбираем явно.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// ExecMigrationSQL выполняет один SQL-запрос миграции в транзакции.
// Если запрос упадёт — транзакция откатится автоматически.
func ExecMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ошибка проверки миграции: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return fmt.Errorf("ошибка записи версии миграции: %w", err)
	}

	return tx.Commit(ctx)
}

// IsForeignKeyViolation — нарушение внешнего ключа
// (например, запись в журнал вступлений для уже удалённого канала).
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

// IsUniqueViolation — нарушение уникальности.
func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
