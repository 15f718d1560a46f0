// Package notify — канал уведомлений операторов.
// Доставка best-effort: ошибки логируются и дальше не идут.
package notify

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"serotonyl.ru/gatebot/internal/transport"
)

// OperatorSource возвращает список операторов.
type OperatorSource interface {
	OperatorIDs(ctx context.Context) ([]int64, error)
}

// Notifier рассылает сообщения всем операторам.
type Notifier struct {
	operators   OperatorSource
	sender      transport.Sender
	maxParallel int
	now         func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// New создаёт Notifier. maxParallel ограничивает одновременные отправки.
func New(operators OperatorSource, sender transport.Sender, maxParallel int) *Notifier {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Notifier{
		operators:   operators,
		sender:      sender,
		maxParallel: maxParallel,
		now:         time.Now,
		last:        make(map[string]time.Time),
	}
}

// Notify отправляет text (HTML) всем операторам и ждёт завершения отправок.
// Возвращает число успешных доставок.
func (n *Notifier) Notify(ctx context.Context, text string) int {
	ids, err := n.operators.OperatorIDs(ctx)
	if err != nil {
		log.WithError(err).Warn("notify: список операторов получен частично")
	}
	if len(ids) == 0 {
		return 0
	}

	var (
		mu        sync.Mutex
		delivered int
	)
	p := pool.New().WithMaxGoroutines(n.maxParallel)
	for _, id := range ids {
		p.Go(func() {
			_, err := n.sender.SendText(ctx, id, text, transport.SendOptions{
				ParseMode:      transport.ParseModeHTML,
				DisablePreview: true,
			})
			if err != nil {
				log.WithError(err).WithField("operator_id", id).Warn("notify: не удалось отправить")
				return
			}
			mu.Lock()
			delivered++
			mu.Unlock()
		})
	}
	p.Wait()
	return delivered
}

// NotifyThrottled отправляет уведомление не чаще раза в cooldown на ключ.
// Возвращает false, если ключ ещё "остывает".
func (n *Notifier) NotifyThrottled(ctx context.Context, key string, cooldown time.Duration, text string) bool {
	now := n.now()

	n.mu.Lock()
	if last, ok := n.last[key]; ok && now.Sub(last) < cooldown {
		n.mu.Unlock()
		return false
	}
	n.last[key] = now
	n.mu.Unlock()

	n.Notify(ctx, text)
	return true
}
