// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Главные операторы (через запятую). Всегда имеют доступ к админ-командам.
	AdminIDsRaw string  `envconfig:"ADMIN_IDS" required:"true"`
	AdminIDs    []int64 `envconfig:"-"` // заполним вручную

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"gatebot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	// Сколько ждём базу при старте (docker compose поднимает её не мгновенно)
	DBConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"1m"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Flood control ---
	// Окно пополнения ведра. Ёмкость ведра берётся из настроек (flood_limit_count).
	FloodWindow       time.Duration `envconfig:"FLOOD_WINDOW" default:"30s"`
	FloodBanDuration  time.Duration `envconfig:"FLOOD_BAN_DURATION" default:"1m"`
	FloodDefaultLimit int           `envconfig:"FLOOD_DEFAULT_LIMIT" default:"10"`

	// --- Force join ---
	// На сколько исключаем недоступный канал из проверки
	ForceJoinRetryAfter time.Duration `envconfig:"FORCEJOIN_RETRY_AFTER" default:"10m"`
	// Не чаще одного предупреждения операторам на канал за этот период
	ForceJoinNotifyCooldown time.Duration `envconfig:"FORCEJOIN_NOTIFY_COOLDOWN" default:"30m"`

	// --- Broadcast ---
	BroadcastReportInterval time.Duration `envconfig:"BROADCAST_REPORT_INTERVAL" default:"5m"`
	BroadcastDefaultProfile string        `envconfig:"BROADCAST_DEFAULT_PROFILE" default:"safe"`

	// --- Content ---
	ContentDeleteTimeout time.Duration `envconfig:"CONTENT_DELETE_TIMEOUT" default:"30s"`

	// --- Jobs ---
	JobsDigestCron string `envconfig:"JOBS_DIGEST_CRON" default:"0 9 * * *"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// IsPrimaryAdmin — входит ли пользователь в ADMIN_IDS.
func (c *Config) IsPrimaryAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if len(c.AdminIDs) == 0 {
		return fmt.Errorf("ADMIN_IDS пуст")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.FloodWindow <= 0 {
		return fmt.Errorf("FLOOD_WINDOW должен быть > 0")
	}
	if c.FloodBanDuration < 0 {
		return fmt.Errorf("FLOOD_BAN_DURATION не может быть отрицательным")
	}
	if c.FloodDefaultLimit <= 0 {
		return fmt.Errorf("FLOOD_DEFAULT_LIMIT должен быть > 0")
	}
	if c.ForceJoinRetryAfter <= 0 || c.ForceJoinNotifyCooldown <= 0 {
		return fmt.Errorf("FORCEJOIN_RETRY_AFTER и FORCEJOIN_NOTIFY_COOLDOWN должны быть > 0")
	}
	if c.BroadcastReportInterval <= 0 {
		return fmt.Errorf("BROADCAST_REPORT_INTERVAL должен быть > 0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
