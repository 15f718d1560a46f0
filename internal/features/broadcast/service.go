package broadcast

import (
	"context"
	"fmt"
	"html"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"

	"serotonyl.ru/gatebot/internal/common"
	"serotonyl.ru/gatebot/internal/transport"
)

// Mode — способ доставки сообщения.
type Mode int

const (
	// ModeCopy — копия без подписи "переслано от"
	ModeCopy Mode = iota
	// ModeForward — пересылка с указанием источника
	ModeForward
)

func (m Mode) String() string {
	if m == ModeForward {
		return "forward"
	}
	return "copy"
}

// Payload — что рассылаем: сообщение из чата оператора.
type Payload struct {
	Mode         Mode
	SourceChatID int64
	MessageID    int
}

// Deliverer — отправка одному получателю.
type Deliverer interface {
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)
	ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)
}

// RecipientSource — снимок получателей без забаненных и без инициатора.
type RecipientSource interface {
	Recipients(ctx context.Context, initiator int64) ([]int64, error)
}

// ProfileSource — текущий ключ профиля скорости из настроек.
type ProfileSource interface {
	SpeedProfile() string
}

// finalReportTimeout — сколько ждём отправки итогового отчёта
const finalReportTimeout = 30 * time.Second

// Sleeper — пауза, прерываемая контекстом.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Result — итог рассылки.
type Result struct {
	Progress
	Err error
}

// Job — выполняемая рассылка.
type Job struct {
	initiator  int64
	payload    Payload
	profile    Profile
	recipients []int64
	total      int
	startedAt  time.Time
	pacer      *Pacer

	sent    atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64
	stop    atomic.Bool

	done   chan struct{}
	result Result
}

// Done закрывается после итогового отчёта и освобождения блокировки.
func (j *Job) Done() <-chan struct{} { return j.done }

// Result — итог; валиден после закрытия Done.
func (j *Job) Result() Result {
	<-j.done
	return j.result
}

func (j *Job) snapshot(now time.Time) Progress {
	return Progress{
		Profile: j.profile,
		Total:   j.total,
		Sent:    int(j.sent.Load()),
		Failed:  int(j.failed.Load()),
		Skipped: int(j.skipped.Load()),
		Elapsed: now.Sub(j.startedAt),
	}
}

// Service — движок рассылки. Одновременно выполняется не больше одной рассылки.
type Service struct {
	deliverer      Deliverer
	recipients     RecipientSource
	profiles       ProfileSource
	reporter       transport.Sender
	reportInterval time.Duration

	now   func() time.Time
	sleep Sleeper
	randN func(n int64) int64

	running atomic.Bool
	mu      sync.Mutex
	current *Job
}

// NewService создаёт движок. reporter отправляет отчёты инициатору.
func NewService(deliverer Deliverer, recipients RecipientSource, profiles ProfileSource, reporter transport.Sender, reportInterval time.Duration) *Service {
	return &Service{
		deliverer:      deliverer,
		recipients:     recipients,
		profiles:       profiles,
		reporter:       reporter,
		reportInterval: reportInterval,
		now:            time.Now,
		sleep:          sleepCtx,
		randN:          rand.Int64N,
	}
}

// Running — идёт ли рассылка.
func (s *Service) Running() bool { return s.running.Load() }

// Current — выполняющаяся рассылка или nil.
func (s *Service) Current() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Status — счётчики текущей рассылки.
func (s *Service) Status() (Progress, bool) {
	s.mu.Lock()
	job := s.current
	s.mu.Unlock()
	if job == nil {
		return Progress{}, false
	}
	return job.snapshot(s.now()), true
}

// Stop просит текущую рассылку остановиться. Проверяется перед каждым получателем.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return common.ErrNoActiveBroadcast
	}
	s.current.stop.Store(true)
	return nil
}

// Start снимает список получателей и запускает рассылку в фоне.
// Вторая рассылка, пока идёт первая, отклоняется с ErrBroadcastInProgress.
// ctx должен жить дольше запроса: рассылка работает в нём до конца.
func (s *Service) Start(ctx context.Context, initiator int64, payload Payload) (*Job, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, common.ErrBroadcastInProgress
	}

	job, err := s.prepare(ctx, initiator, payload)
	if err != nil {
		s.running.Store(false)
		return nil, err
	}

	s.mu.Lock()
	s.current = job
	s.mu.Unlock()

	go s.execute(ctx, job)
	return job, nil
}

func (s *Service) prepare(ctx context.Context, initiator int64, payload Payload) (*Job, error) {
	if payload.SourceChatID == 0 || payload.MessageID == 0 {
		return nil, common.ErrMissingSource
	}

	ids, err := s.recipients.Recipients(ctx, initiator)
	if err != nil {
		return nil, fmt.Errorf("список получателей: %w", err)
	}
	if len(ids) == 0 {
		return nil, common.ErrNoRecipients
	}

	return &Job{
		initiator:  initiator,
		payload:    payload,
		profile:    ResolveProfile(s.profiles.SpeedProfile()),
		recipients: ids,
		total:      len(ids),
		startedAt:  s.now(),
		done:       make(chan struct{}),
	}, nil
}

// execute выполняет рассылку и при любом исходе (включая панику)
// отправляет итог и снимает блокировку.
func (s *Service) execute(ctx context.Context, job *Job) {
	logger := log.WithFields(log.Fields{
		"component": "broadcast",
		"initiator": job.initiator,
		"mode":      job.payload.Mode.String(),
		"profile":   job.profile.Key,
		"total":     job.total,
	})

	defer func() {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		s.running.Store(false)
		close(job.done)
	}()

	logger.Info("Рассылка запущена")

	var pc panics.Catcher
	pc.Try(func() { s.run(ctx, job) })

	job.result.Progress = job.snapshot(s.now())

	// итог доходит до инициатора и после отмены ctx (остановка процесса)
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalReportTimeout)
	defer cancel()

	if r := pc.Recovered(); r != nil {
		job.result.Err = r.AsError()
		logger.WithError(job.result.Err).WithField("stack", string(r.Stack)).Error("Рассылка прервана паникой")
		s.report(rctx, job.initiator, "❌ Ошибка рассылки:\n"+html.EscapeString(job.result.Err.Error()))
		return
	}

	p := job.result.Progress
	logger.WithFields(log.Fields{
		"sent":    p.Sent,
		"failed":  p.Failed,
		"skipped": p.Skipped,
		"elapsed": p.Elapsed.String(),
	}).Info("Рассылка завершена")

	s.report(rctx, job.initiator, p.Report(true))
	summary := fmt.Sprintf("✅ Рассылка завершена.\n\n• Профиль: %s\n• Доставлено: %s\n• Не доставлено: %s",
		p.Profile.Label, common.FormatUsers(int64(p.Sent)), common.FormatUsers(int64(p.Failed)))
	if p.Skipped > 0 {
		summary += fmt.Sprintf("\n• Остановлено, пропущено: %s", common.FormatUsers(int64(p.Skipped)))
	}
	s.report(rctx, job.initiator, summary)
}

// run — основной цикл: получатели строго по порядку снимка.
func (s *Service) run(ctx context.Context, job *Job) {
	p := job.profile
	pacer := NewPacer(p)
	job.pacer = pacer
	lastReport := job.startedAt
	advised := false

	for i, userID := range job.recipients {
		if job.stop.Load() || ctx.Err() != nil {
			job.skipped.Store(int64(job.total - i))
			log.WithFields(log.Fields{
				"component": "broadcast",
				"skipped":   job.total - i,
			}).Warn("Рассылка остановлена")
			break
		}

		d := s.deliver(ctx, job.payload, userID, p, pacer)
		if d.State() == Succeeded {
			job.sent.Add(1)
		} else {
			job.failed.Add(1)
			if !advised && s.logFailure(userID, d) == transport.FailureForwardSourceMissing && job.payload.Mode == ModeForward {
				advised = true
				s.report(ctx, job.initiator,
					"⚠️ Часть сообщений не переслана: исходное сообщение не найдено или у бота нет доступа к исходному чату.\n\n"+
						"Для сообщений из закрытых каналов используйте /broadcast (копия с сохранением форматирования).")
			}
		}

		processed := i + 1
		if p.SafetyIdleEvery > 0 && processed%p.SafetyIdleEvery == 0 {
			_ = s.sleep(ctx, p.SafetyIdle)
		}

		if processed < job.total {
			if p.BatchSize > 0 && processed%p.BatchSize == 0 {
				log.WithFields(log.Fields{
					"component": "broadcast",
					"batch":     processed / p.BatchSize,
					"pause":     p.BatchPause.String(),
				}).Info("Пауза между пачками")
				_ = s.sleep(ctx, p.BatchPause)
			} else {
				_ = s.sleep(ctx, pacer.Next(s.randN))
			}
		}

		if now := s.now(); now.Sub(lastReport) >= s.reportInterval {
			s.report(ctx, job.initiator, job.snapshot(now).Report(false))
			lastReport = now
		}
	}
}

// deliver проводит одного получателя через автомат повторов.
func (s *Service) deliver(ctx context.Context, payload Payload, userID int64, p Profile, pacer *Pacer) *Delivery {
	d := NewDelivery(p.MaxRetries)
	for {
		switch d.State() {
		case Attempting:
			d.Observe(s.send(ctx, payload, userID))
			switch {
			case d.State() == Succeeded:
				pacer.Relax()
			case d.RateLimited():
				pacer.Tighten()
				lo, hi := pacer.Bounds()
				log.WithFields(log.Fields{
					"component": "broadcast",
					"user_id":   userID,
					"attempt":   d.Attempts(),
					"max":       p.MaxRetries,
					"wait":      d.Wait().String(),
					"delay_min": lo.String(),
					"delay_max": hi.String(),
				}).Warn("429 от Telegram, замедляемся")
			}
		case Backoff:
			if err := s.sleep(ctx, d.Wait()); err != nil {
				d.Abort(err)
				continue
			}
			d.Resume()
		default:
			return d
		}
	}
}

func (s *Service) send(ctx context.Context, payload Payload, userID int64) error {
	var err error
	if payload.Mode == ModeForward {
		_, err = s.deliverer.ForwardMessage(ctx, userID, payload.SourceChatID, payload.MessageID)
	} else {
		_, err = s.deliverer.CopyMessage(ctx, userID, payload.SourceChatID, payload.MessageID)
	}
	return err
}

// logFailure пишет причину неудачи в лог и возвращает её класс.
func (s *Service) logFailure(userID int64, d *Delivery) transport.DeliveryFailure {
	logger := log.WithFields(log.Fields{
		"component": "broadcast",
		"user_id":   userID,
		"attempts":  d.Attempts(),
	}).WithError(d.Err())

	if d.RateLimited() {
		logger.Warn("Получатель пропущен: исчерпаны повторы после 429")
		return transport.FailureOther
	}

	class := transport.ClassifyDelivery(d.Err())
	switch class {
	case transport.FailureBlocked:
		logger.Info("Пользователь заблокировал бота")
	case transport.FailureNotFound:
		logger.Info("Пользователь не найден или удалён")
	case transport.FailureForwardSourceMissing, transport.FailureCopyNotPermitted:
		logger.WithField("class", string(class)).Warn("Сообщение нельзя доставить")
	default:
		logger.Warn("Ошибка доставки")
	}
	return class
}

func (s *Service) report(ctx context.Context, chatID int64, text string) {
	opts := transport.SendOptions{ParseMode: transport.ParseModeHTML, DisablePreview: true}
	if _, err := s.reporter.SendText(ctx, chatID, text, opts); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("Не удалось отправить отчёт рассылки")
	}
}
