package forcejoin

import (
	"context"
	"fmt"
	"html"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/gatebot/internal/transport"
)

// MembershipChecker — запрос членства у транспорта.
type MembershipChecker interface {
	GetMembership(ctx context.Context, chatID, userID int64) (transport.Membership, error)
}

// Notifier — уведомление операторов.
type Notifier interface {
	Notify(ctx context.Context, text string) int
}

type store interface {
	ListTargets(ctx context.Context) ([]Target, error)
	AddTarget(ctx context.Context, t Target) error
	RemoveTarget(ctx context.Context, id int64) (bool, error)
	RecordJoin(ctx context.Context, userID, targetID int64) (JoinResult, error)
	Retract(ctx context.Context, targetID int64) (bool, error)
	ListExtraLinks(ctx context.Context) ([]ExtraLink, error)
	AddExtraLink(ctx context.Context, l ExtraLink) (int64, error)
	RemoveExtraLink(ctx context.Context, id int64) error
}

// Service — проверка обязательной подписки.
type Service struct {
	repo     store
	members  MembershipChecker
	notifier Notifier
	breaker  *Breaker
	enabled  func() bool
	now      func() time.Time
	// dispatch запускает оповещение операторов; запрос пользователя его не ждёт
	dispatch func(func())
}

// NewService создаёт сервис. enabled — переключатель из настроек (nil = всегда включено).
func NewService(repo store, members MembershipChecker, notifier Notifier, breaker *Breaker, enabled func() bool) *Service {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &Service{
		repo:     repo,
		members:  members,
		notifier: notifier,
		breaker:  breaker,
		enabled:  enabled,
		now:      time.Now,
		dispatch: func(f func()) { go f() },
	}
}

// Breaker — состояние недоступных каналов (для планировщика).
func (s *Service) Breaker() *Breaker { return s.breaker }

// Evaluate проверяет пользователя по списку каналов, по порядку.
// Любая неуверенность трактуется как "не подписан".
func (s *Service) Evaluate(ctx context.Context, userID int64, targets []Target) Evaluation {
	var ev Evaluation
	now := s.now()

	for _, t := range targets {
		logger := log.WithFields(log.Fields{
			"component": "forcejoin",
			"user_id":   userID,
			"target_id": t.ID,
		})

		if s.breaker.Open(t.ID, now) {
			ev.Missing = append(ev.Missing, t)
			ev.Unavailable = append(ev.Unavailable, Unavailable{Target: t, Reason: reasonCoolingDown})
			continue
		}

		m, err := s.members.GetMembership(ctx, t.ID, userID)
		if err != nil {
			ev.Missing = append(ev.Missing, t)
			if transport.IsTargetInaccessible(err) {
				until := s.breaker.Trip(t.ID, now)
				ev.Unavailable = append(ev.Unavailable, Unavailable{Target: t, Reason: err.Error()})
				logger.WithError(err).WithField("retry_at", until.Format(time.RFC3339)).
					Warn("Канал недоступен, временно исключён из проверки")
				continue
			}
			logger.WithError(err).Error("Ошибка проверки членства")
			continue
		}

		if m.Satisfied() {
			ev.Subscribed = append(ev.Subscribed, t)
		} else {
			ev.Missing = append(ev.Missing, t)
		}
	}

	ev.Satisfied = len(ev.Missing) == 0
	return ev
}

// Check — полная проверка: каналы из БД, предупреждения о недоступных,
// учёт вступлений и авто-снятие. Ошибка БД = доступ не выдаётся.
func (s *Service) Check(ctx context.Context, userID int64) (Gate, error) {
	if !s.enabled() {
		return Gate{Evaluation: Evaluation{Satisfied: true}}, nil
	}

	targets, err := s.repo.ListTargets(ctx)
	if err != nil {
		return Gate{}, err
	}
	if len(targets) == 0 {
		return Gate{Evaluation: Evaluation{Satisfied: true}}, nil
	}

	ev := s.Evaluate(ctx, userID, targets)

	if len(ev.Unavailable) > 0 {
		s.warnUnavailable(ctx, ev.Unavailable)
	}

	for _, t := range ev.Subscribed {
		if t.Condition != nil {
			s.trackJoin(ctx, userID, t)
		}
	}

	gate := Gate{Evaluation: ev}
	if !ev.Satisfied {
		links, err := s.repo.ListExtraLinks(ctx)
		if err != nil {
			log.WithError(err).Warn("Не удалось загрузить дополнительные ссылки")
		}
		gate.ExtraLinks = links
	}
	return gate, nil
}

func (s *Service) warnUnavailable(ctx context.Context, items []Unavailable) {
	now := s.now()
	for _, u := range items {
		if !s.breaker.ShouldNotify(u.Target.ID, now) {
			continue
		}
		text := fmt.Sprintf(
			"⚠️ <b>Обязательная подписка</b>\n\n"+
				"Канал временно исключён из проверки: у бота нет доступа.\n\n"+
				"Название: %s\nID: <code>%d</code>\nПричина: %s\n\n"+
				"Сделайте бота администратором или удалите канал (/rmch %d).",
			html.EscapeString(u.Target.Title), u.Target.ID, html.EscapeString(u.Reason), u.Target.ID,
		)
		s.notify(ctx, text)
	}
}

// trackJoin засчитывает вступление один раз на пару и снимает канал по лимиту.
func (s *Service) trackJoin(ctx context.Context, userID int64, t Target) {
	logger := log.WithFields(log.Fields{
		"component": "forcejoin",
		"user_id":   userID,
		"target_id": t.ID,
	})

	res, err := s.repo.RecordJoin(ctx, userID, t.ID)
	if err != nil {
		logger.WithError(err).Error("Не удалось записать вступление")
		return
	}
	if !res.Inserted {
		return
	}
	logger.WithFields(log.Fields{"count": res.Count, "limit": res.Limit}).Info("Засчитано вступление")

	if !res.LimitReached() {
		return
	}
	s.retract(ctx, t, res)
}

func (s *Service) retract(ctx context.Context, t Target, res JoinResult) {
	deleted, err := s.repo.Retract(ctx, t.ID)
	if err != nil {
		log.WithError(err).WithField("target_id", t.ID).Error("Не удалось снять канал по лимиту")
		return
	}
	if !deleted {
		// канал уже снял параллельный запрос
		return
	}
	s.breaker.Reset(t.ID)

	log.WithFields(log.Fields{
		"target_id": t.ID,
		"count":     res.Count,
		"limit":     res.Limit,
	}).Info("Канал снят: достигнут лимит вступлений")

	text := fmt.Sprintf(
		"🔔 <b>Канал снят с обязательной подписки</b>\n"+
			"Достигнут лимит вступлений.\n\n"+
			"• Название: %s\n• Тип: %s\n• ID: <code>%d</code>\n• Ссылка: %s\n• Кнопка: %s\n"+
			"• Лимит: %d\n• Вступило: %d",
		html.EscapeString(t.Title), t.Kind.Label(), t.ID, html.EscapeString(t.InviteLink),
		html.EscapeString(t.Button()), res.Limit, res.Count,
	)
	s.notify(ctx, text)
}

// notify отправляет операторам в фоне, отвязав от отмены запроса.
func (s *Service) notify(ctx context.Context, text string) {
	nctx := context.WithoutCancel(ctx)
	s.dispatch(func() { s.notifier.Notify(nctx, text) })
}

// --- Операции оператора ---

// Targets — текущие каналы.
func (s *Service) Targets(ctx context.Context) ([]Target, error) {
	return s.repo.ListTargets(ctx)
}

// AddTarget добавляет (или перезаписывает) канал.
func (s *Service) AddTarget(ctx context.Context, t Target) error {
	if err := s.repo.AddTarget(ctx, t); err != nil {
		return err
	}
	s.breaker.Reset(t.ID)
	log.WithFields(log.Fields{"target_id": t.ID, "title": t.Title}).Info("Добавлен обязательный канал")
	return nil
}

// RemoveTarget удаляет канал и его журнал.
func (s *Service) RemoveTarget(ctx context.Context, id int64) (bool, error) {
	removed, err := s.repo.RemoveTarget(ctx, id)
	if err != nil {
		return false, err
	}
	s.breaker.Reset(id)
	return removed, nil
}

// ExtraLinks — дополнительные ссылки.
func (s *Service) ExtraLinks(ctx context.Context) ([]ExtraLink, error) {
	return s.repo.ListExtraLinks(ctx)
}

// AddExtraLink добавляет ссылку.
func (s *Service) AddExtraLink(ctx context.Context, l ExtraLink) (int64, error) {
	return s.repo.AddExtraLink(ctx, l)
}

// RemoveExtraLink удаляет ссылку.
func (s *Service) RemoveExtraLink(ctx context.Context, id int64) error {
	return s.repo.RemoveExtraLink(ctx, id)
}
