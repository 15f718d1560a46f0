// Package postgres управляет подключением к базе данных PostgreSQL.
// Используется пул соединений pgxpool для работы
// с несколькими горутинами одновременно.
//
// При старте в docker compose база поднимается не мгновенно,
// поэтому подключение повторяется с экспоненциальной задержкой.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/gatebot/internal/config"
)

// NewPool создаёт новый пул соединений к PostgreSQL.
//
// Пока не истёк cfg.DBConnectTimeout, попытки повторяются
// (1с, 2с, 4с ... но не реже раза в 10с).
//
// Пример:
//
//	pool, err := postgres.NewPool(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MinConns = cfg.DBMinConns
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	var pool *pgxpool.Pool
	attempt := 0

	connect := func() error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			// кривой конфиг не лечится повтором
			return backoff.Permanent(fmt.Errorf("ошибка создания пула: %w", err))
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			log.WithError(err).WithField("attempt", attempt).Warn("PostgreSQL пока недоступен, повторяем")
			return err
		}
		pool = p
		return nil
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Second),
		backoff.WithMaxInterval(10*time.Second),
		backoff.WithMaxElapsedTime(cfg.DBConnectTimeout),
	)
	if err := backoff.Retry(connect, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("база данных недоступна: %w", err)
	}

	log.WithField("attempts", attempt).Info("Подключение к PostgreSQL установлено")
	return pool, nil
}

// Migration — одна миграция схемы.
type Migration struct {
	Version int
	SQL     string
}

// RunMigrations создаёт schema_migrations и применяет миграции по порядку.
// Уже применённые версии пропускаются.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы миграций: %w", err)
	}

	for _, m := range migrations {
		if err := ExecMigrationSQL(ctx, pool, m.Version, m.SQL); err != nil {
			return err
		}
	}

	log.WithField("count", len(migrations)).Info("Миграции применены")
	return nil
}
