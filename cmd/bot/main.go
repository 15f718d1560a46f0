// Package main — точка входа бота.
// Загружает конфигурацию, инициализирует приложение и запускает.
// Поддерживает graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/gatebot/internal/app"
	"serotonyl.ru/gatebot/internal/config"
)

func main() {
	setupLogging()

	log.Info("=== Бот запускается ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err == nil {
		log.SetLevel(level)
	}
	if cfg.AppEnv == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	// Контекст отменяется по Ctrl+C / docker stop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось инициализировать приложение")
	}
	defer application.DB.Close()

	if err := application.Scheduler.Start(ctx); err != nil {
		log.WithError(err).Fatal("Не удалось запустить планировщик")
	}
	defer application.Scheduler.Stop()

	log.Info("=== Бот готов к работе ===")

	// Start блокируется до отмены ctx и дожидается обработчиков
	if err := application.Bot.Start(ctx); err != nil {
		log.WithError(err).Error("Бот завершился с ошибкой")
	}

	// незавершённая рассылка досчитывает остаток как пропущенный
	if job := application.Broadcast.Current(); job != nil {
		<-job.Done()
	}

	log.Info("=== Бот остановлен ===")
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
