// Package stats — сводка для /stats и ежедневного дайджеста операторам.
package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/features/broadcast"
	"serotonyl.ru/gatebot/internal/features/content"
	"serotonyl.ru/gatebot/internal/features/forcejoin"
	"serotonyl.ru/gatebot/internal/features/users"
	"serotonyl.ru/gatebot/internal/transport"
)

type UserStats interface {
	Stats(ctx context.Context) (users.Stats, error)
}

type GateStats interface {
	Targets(ctx context.Context) ([]forcejoin.Target, error)
	ExtraLinks(ctx context.Context) ([]forcejoin.ExtraLink, error)
	Breaker() *forcejoin.Breaker
}

type ContentStats interface {
	Stats(ctx context.Context, top int) (int64, []content.File, error)
}

type BroadcastStatus interface {
	Status() (broadcast.Progress, bool)
}

type FloodStats interface {
	Stats() (buckets, bans int)
}

// topFiles — сколько популярных файлов показывать
const topFiles = 5

// Service собирает сводку из всех модулей.
type Service struct {
	users     UserStats
	gate      GateStats
	content   ContentStats
	broadcast BroadcastStatus
	flood     FloodStats
	now       func() time.Time
}

func NewService(u UserStats, g GateStats, c ContentStats, b BroadcastStatus, f FloodStats) *Service {
	return &Service{users: u, gate: g, content: c, broadcast: b, flood: f, now: time.Now}
}

// Build — текст сводки (HTML). Ошибки отдельных частей не прерывают сборку.
func (s *Service) Build(ctx context.Context, title string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 <b>%s</b>\n\n", title)

	us, err := s.users.Stats(ctx)
	if err != nil {
		return "", fmt.Errorf("статистика пользователей: %w", err)
	}
	fmt.Fprintf(&b, "👥 Пользователей: %s\n", common.FormatNumber(us.Total))
	fmt.Fprintf(&b, "🆕 Новых за сутки: %s\n", common.FormatNumber(us.NewToday))
	fmt.Fprintf(&b, "🚫 Забанено: %s\n", common.FormatNumber(us.Banned))

	buckets, bans := s.flood.Stats()
	fmt.Fprintf(&b, "🌊 Flood: активных вёдер %d, временных банов %d\n\n", buckets, bans)

	targets, err := s.gate.Targets(ctx)
	if err != nil {
		log.WithError(err).Warn("stats: не удалось получить каналы")
		b.WriteString("Каналы: ошибка чтения\n")
	} else {
		links, err := s.gate.ExtraLinks(ctx)
		if err != nil {
			log.WithError(err).Warn("stats: не удалось получить ссылки")
		}
		b.WriteString(forcejoin.FormatTargets(targets, links, s.gate.Breaker().OpenUntil(s.now())))
	}

	total, files, err := s.content.Stats(ctx, topFiles)
	if err != nil {
		log.WithError(err).Warn("stats: не удалось получить файлы")
	} else {
		fmt.Fprintf(&b, "\n📁 Файлов: %s\n", common.FormatNumber(total))
		for i, f := range files {
			fmt.Fprintf(&b, "%d. <code>%s</code> (%s) — %s\n", i+1, f.ID, f.Kind, common.FormatNumber(f.UsageCount))
		}
	}

	if p, ok := s.broadcast.Status(); ok {
		fmt.Fprintf(&b, "\n📣 Идёт рассылка: %d/%d (профиль %s)\n", p.Processed(), p.Total, p.Profile.Label)
	}
	return b.String(), nil
}

// Handler — /stats.
type Handler struct {
	service *Service
	sender  transport.Sender
}

func NewHandler(service *Service, sender transport.Sender) *Handler {
	return &Handler{service: service, sender: sender}
}

func (h *Handler) HandleStats(ctx context.Context, chatID int64) {
	text, err := h.service.Build(ctx, "Статистика")
	if err != nil {
		log.WithError(err).Error("Ошибка сборки статистики")
		text = "❌ Не удалось получить статистику"
	}
	opts := transport.SendOptions{ParseMode: transport.ParseModeHTML, DisablePreview: true}
	if _, err := h.sender.SendText(ctx, chatID, text, opts); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
