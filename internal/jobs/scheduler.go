// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: очистка истёкших flood-банов и
// окон недоступности каналов, чистка сессий операторов и ежедневная сводка.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// BanSweeper — flood-контроль.
type BanSweeper interface {
	SweepBans(now time.Time) int
}

// WindowSweeper — breaker недоступных каналов.
type WindowSweeper interface {
	Sweep(now time.Time) int
}

// SessionPurger — сессии операторов.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// DigestBuilder собирает текст сводки.
type DigestBuilder interface {
	Build(ctx context.Context, title string) (string, error)
}

// Notifier рассылает сводку операторам.
type Notifier interface {
	Notify(ctx context.Context, text string) int
}

// Deps — зависимости планировщика.
type Deps struct {
	Flood    BanSweeper
	Breaker  WindowSweeper
	Sessions SessionPurger
	Digest   DigestBuilder
	Notifier Notifier
}

const (
	sweepSpec = "@every 10m"
	purgeSpec = "@hourly"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron       *cron.Cron
	deps       Deps
	digestSpec string
	now        func() time.Time
}

// NewScheduler создаёт планировщик задач в часовом поясе loc.
func NewScheduler(deps Deps, loc *time.Location, digestSpec string) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		deps:       deps,
		digestSpec: digestSpec,
		now:        time.Now,
	}
}

// Start регистрирует задачи и запускает cron.
// Пустой digestSpec отключает ежедневную сводку.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(sweepSpec, s.sweep); err != nil {
		return fmt.Errorf("sweep job: %w", err)
	}
	if _, err := s.cron.AddFunc(purgeSpec, func() { s.purgeSessions(ctx) }); err != nil {
		return fmt.Errorf("purge job: %w", err)
	}
	if s.digestSpec != "" {
		if _, err := s.cron.AddFunc(s.digestSpec, func() { s.digest(ctx) }); err != nil {
			return fmt.Errorf("digest job (%q): %w", s.digestSpec, err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"jobs":   len(s.cron.Entries()),
		"digest": s.digestSpec,
	}).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт выполняющиеся задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) sweep() {
	now := s.now()
	bans := s.deps.Flood.SweepBans(now)
	windows := s.deps.Breaker.Sweep(now)
	if bans > 0 || windows > 0 {
		log.WithFields(log.Fields{
			"flood_bans": bans,
			"windows":    windows,
		}).Debug("[CRON] Очистка истёкших записей")
	}
}

func (s *Scheduler) purgeSessions(ctx context.Context) {
	n, err := s.deps.Sessions.PurgeExpired(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка очистки сессий")
		return
	}
	if n > 0 {
		log.WithField("removed", n).Info("[CRON] Удалены истёкшие сессии операторов")
	}
}

func (s *Scheduler) digest(ctx context.Context) {
	text, err := s.deps.Digest.Build(ctx, "📊 Ежедневная сводка")
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка сборки сводки")
		return
	}
	delivered := s.deps.Notifier.Notify(ctx, text)
	log.WithField("delivered", delivered).Info("[CRON] Сводка отправлена")
}
