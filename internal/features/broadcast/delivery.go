package broadcast

import (
	"time"

	"serotonyl.ru/gatebot/internal/transport"
)

// State — состояние доставки одному получателю.
type State int

const (
	Attempting State = iota
	Backoff
	Succeeded
	FailedPermanently
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Backoff:
		return "backoff"
	case Succeeded:
		return "succeeded"
	case FailedPermanently:
		return "failed"
	default:
		return "unknown"
	}
}

// Delivery — автомат повторов для одного получателя. Сам ничего не ждёт
// и не отправляет: вызывающий сообщает результат попытки через Observe
// и выдерживает паузу Wait в состоянии Backoff.
//
//	Attempting --ok--> Succeeded
//	Attempting --429--> Backoff --Resume, попытки есть--> Attempting
//	Backoff --Resume, попытки кончились--> FailedPermanently
//	Attempting --другая ошибка--> FailedPermanently
type Delivery struct {
	maxRetries int

	state       State
	attempts    int
	retryAfter  int
	rateLimited bool
	err         error
}

// NewDelivery создаёт автомат. maxRetries — всего попыток на получателя.
func NewDelivery(maxRetries int) *Delivery {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Delivery{maxRetries: maxRetries, state: Attempting}
}

func (d *Delivery) State() State { return d.state }

func (d *Delivery) Attempts() int { return d.attempts }

func (d *Delivery) Err() error { return d.err }

// RateLimited — последняя ошибка была 429.
func (d *Delivery) RateLimited() bool { return d.rateLimited }

// Observe принимает результат попытки.
func (d *Delivery) Observe(err error) State {
	if d.state != Attempting {
		return d.state
	}
	d.attempts++
	d.err = err

	if err == nil {
		d.rateLimited = false
		d.state = Succeeded
		return d.state
	}

	if secs, ok := transport.RetryAfter(err); ok {
		d.rateLimited = true
		d.retryAfter = secs
		// пауза выдерживается и после последней попытки
		d.state = Backoff
		return d.state
	}

	d.rateLimited = false
	d.state = FailedPermanently
	return d.state
}

// Wait — сколько ждать перед следующей попыткой: retry_after + 1 секунда.
func (d *Delivery) Wait() time.Duration {
	return time.Duration(d.retryAfter+1) * time.Second
}

// Resume вызывается после паузы: следующая попытка или отказ, если попытки кончились.
func (d *Delivery) Resume() State {
	if d.state != Backoff {
		return d.state
	}
	if d.attempts >= d.maxRetries {
		d.state = FailedPermanently
	} else {
		d.state = Attempting
	}
	return d.state
}

// Abort завершает доставку неудачей (например, отменён контекст во время паузы).
func (d *Delivery) Abort(err error) {
	if d.state == Succeeded {
		return
	}
	d.err = err
	d.state = FailedPermanently
}
