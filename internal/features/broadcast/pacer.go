package broadcast

import "time"

// Pacer хранит текущий адаптивный диапазон задержки.
// Нижняя граница диапазона — базовые значения профиля, верхняя — потолок.
type Pacer struct {
	profile  Profile
	min, max time.Duration
}

// NewPacer начинает с базового диапазона профиля.
func NewPacer(p Profile) *Pacer {
	return &Pacer{profile: p, min: p.DelayMin, max: p.DelayMax}
}

// Relax сдвигает диапазон к базовому после успешной доставки.
func (p *Pacer) Relax() {
	p.min = max(p.profile.DelayMin, p.min-p.profile.DecreaseStep)
	p.max = max(p.profile.DelayMax, p.max-p.profile.DecreaseStep)
}

// Tighten расширяет задержку после 429.
func (p *Pacer) Tighten() {
	p.min = min(p.profile.CeilingMin, p.min+p.profile.IncreaseStep)
	p.max = min(p.profile.CeilingMax, p.max+p.profile.IncreaseStep)
}

// Bounds — текущий диапазон.
func (p *Pacer) Bounds() (time.Duration, time.Duration) {
	return p.min, p.max
}

// Next — случайная задержка из текущего диапазона.
// randN возвращает число в [0, n).
func (p *Pacer) Next(randN func(n int64) int64) time.Duration {
	lo, hi := p.min, p.max
	if hi < lo {
		lo, hi = hi, lo
	}
	span := int64(hi - lo)
	if span <= 0 {
		return lo
	}
	return lo + time.Duration(randN(span+1))
}
