// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, клиент Telegram, репозитории,
// сервисы, обработчики и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/gatebot/internal/bot"
	"serotonyl.ru/gatebot/internal/bot/filters"
	"serotonyl.ru/gatebot/internal/bot/middleware"
	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/config"
	"serotonyl.ru/gatebot/internal/db/postgres"
	"serotonyl.ru/gatebot/internal/features/admin"
	"serotonyl.ru/gatebot/internal/features/broadcast"
	"serotonyl.ru/gatebot/internal/features/content"
	"serotonyl.ru/gatebot/internal/features/forcejoin"
	"serotonyl.ru/gatebot/internal/features/settings"
	"serotonyl.ru/gatebot/internal/features/stats"
	"serotonyl.ru/gatebot/internal/features/users"
	"serotonyl.ru/gatebot/internal/jobs"
	"serotonyl.ru/gatebot/internal/notify"
	"serotonyl.ru/gatebot/internal/transport/telegram"
)

// notifyParallel — сколько операторов оповещаем одновременно
const notifyParallel = 4

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	Broadcast *broadcast.Service
	DB        *pgxpool.Pool
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.RunMigrations(ctx, pool, migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram ===
	client, err := telegram.New(ctx, cfg.TelegramBotToken)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания Telegram клиента: %w", err)
	}
	log.Infof("Авторизован как @%s", client.Username())

	// === 3. Репозитории ===
	userRepo := users.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)
	settingsRepo := settings.NewRepository(pool)
	gateRepo := forcejoin.NewRepository(pool)
	contentRepo := content.NewRepository(pool)

	// === 4. Сервисы ===
	settingsService := settings.NewService(settingsRepo, settings.Defaults{
		FloodLimit:    cfg.FloodDefaultLimit,
		SpeedProfile:  cfg.BroadcastDefaultProfile,
		DeleteTimeout: cfg.ContentDeleteTimeout,
	})
	if err := settingsService.Load(ctx); err != nil {
		// работаем на значениях по умолчанию
		log.WithError(err).Error("Не удалось загрузить настройки")
	}

	userService := users.NewService(userRepo)
	adminService := admin.NewService(adminRepo, cfg.AdminIDs, cfg.AdminPasswordHash)
	notifier := notify.New(adminService, client, notifyParallel)

	breaker := forcejoin.NewBreaker(cfg.ForceJoinRetryAfter, cfg.ForceJoinNotifyCooldown)
	gateService := forcejoin.NewService(gateRepo, client, notifier, breaker, settingsService.ForceJoinEnabled)
	contentService := content.NewService(contentRepo)
	broadcastService := broadcast.NewService(client, userService, settingsService, client, cfg.BroadcastReportInterval)
	flood := middleware.NewFloodControl(cfg.FloodBanDuration)
	statsService := stats.NewService(userService, gateService, contentService, broadcastService, flood)

	// === 5. Обработчики ===
	gateHandler := forcejoin.NewHandler(gateService, client)
	contentHandler := content.NewHandler(contentService, client, gateHandler, settingsService, client.Username())
	gateHandler.SetOnConfirmed(contentHandler.OnConfirmed)

	b := bot.New(cfg, bot.Deps{
		Updater:   client,
		Messenger: client,
		Notifier:  notifier,

		Filter: filters.NewChatFilter(userService, settingsService.BotEnabled),
		Flood:  flood,

		Admin:     adminService,
		Users:     userService,
		Settings:  settingsService,

		AdminHandler:     admin.NewHandler(adminService, client),
		UsersHandler:     users.NewHandler(userService, client, adminService.IsOperator),
		SettingsHandler:  settings.NewHandler(settingsService, client),
		ForceJoinHandler: gateHandler,
		BroadcastHandler: broadcast.NewHandler(broadcastService, settingsService, client),
		ContentHandler:   contentHandler,
		StatsHandler:     stats.NewHandler(statsService, client),
	})

	// === 6. Планировщик задач ===
	scheduler := jobs.NewScheduler(jobs.Deps{
		Flood:    flood,
		Breaker:  breaker,
		Sessions: adminService,
		Digest:   statsService,
		Notifier: notifier,
	}, common.LoadLocation(cfg.AppTimezone), cfg.JobsDigestCron)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		Broadcast: broadcastService,
		DB:        pool,
	}, nil
}
