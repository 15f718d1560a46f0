package broadcast

import (
	"fmt"
	"strings"
	"time"

	"serotonyl.ru/gatebot/internal/common"
)

// Progress — снимок счётчиков рассылки.
type Progress struct {
	Profile Profile
	Total   int
	Sent    int
	Failed  int
	Skipped int
	Elapsed time.Duration
}

// Processed — получатели, по которым есть итог (успех или неудача).
func (p Progress) Processed() int { return p.Sent + p.Failed }

// Remaining — ещё не обработанные получатели.
func (p Progress) Remaining() int {
	return max(0, p.Total-p.Processed()-p.Skipped)
}

func (p Progress) elapsedMs() float64 {
	return float64(max(1, p.Elapsed.Milliseconds()))
}

// SpeedPerHour — доставок в час: processed * 3600000 / elapsedMs.
func (p Progress) SpeedPerHour() float64 {
	return float64(p.Processed()) * 3600000 / p.elapsedMs()
}

// ETA — оставшееся время: remaining * (elapsedMs / processed).
// ok=false, пока не обработан ни один получатель.
func (p Progress) ETA() (time.Duration, bool) {
	processed := p.Processed()
	if processed == 0 {
		return 0, false
	}
	msLeft := float64(p.Remaining()) * (p.elapsedMs() / float64(processed))
	return time.Duration(msLeft * float64(time.Millisecond)), true
}

// Report — текст периодического или итогового отчёта.
func (p Progress) Report(final bool) string {
	var b strings.Builder
	if final {
		b.WriteString("📊 <b>Итоговый отчёт рассылки</b>\n\n")
	} else {
		b.WriteString("📊 <b>Ход рассылки</b>\n\n")
	}

	eta := "неизвестно"
	if d, ok := p.ETA(); ok {
		eta = common.FormatMinutes(int64((d + time.Minute - 1) / time.Minute))
	}

	fmt.Fprintf(&b, "• Профиль: %s\n", p.Profile.Label)
	fmt.Fprintf(&b, "• Всего получателей: %s\n", common.FormatNumber(int64(p.Total)))
	fmt.Fprintf(&b, "• Обработано: %s\n", common.FormatNumber(int64(p.Processed())))
	fmt.Fprintf(&b, "• Доставлено: %s\n", common.FormatNumber(int64(p.Sent)))
	fmt.Fprintf(&b, "• Не доставлено: %s\n", common.FormatNumber(int64(p.Failed)))
	if p.Skipped > 0 {
		fmt.Fprintf(&b, "• Пропущено (остановка): %s\n", common.FormatNumber(int64(p.Skipped)))
	}
	fmt.Fprintf(&b, "• Скорость: ~%s в час\n", common.FormatNumber(int64(p.SpeedPerHour()+0.5)))
	if !final {
		fmt.Fprintf(&b, "• Осталось примерно: %s\n", eta)
	}
	return b.String()
}
