package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPacerStaysWithinProfile(t *testing.T) {
	for _, key := range ProfileKeys() {
		t.Run(key, func(t *testing.T) {
			p := profiles[key]
			pacer := NewPacer(p)

			for i := 0; i < 50; i++ {
				pacer.Tighten()
			}
			lo, hi := pacer.Bounds()
			assert.Equal(t, p.CeilingMin, lo)
			assert.Equal(t, p.CeilingMax, hi)

			for i := 0; i < 1000; i++ {
				pacer.Relax()
			}
			lo, hi = pacer.Bounds()
			assert.Equal(t, p.DelayMin, lo)
			assert.Equal(t, p.DelayMax, hi)
		})
	}
}

func TestPacerNext(t *testing.T) {
	p := profiles[ProfileSafe]
	pacer := NewPacer(p)

	assert.Equal(t, p.DelayMin, pacer.Next(func(int64) int64 { return 0 }))
	assert.Equal(t, p.DelayMax, pacer.Next(func(n int64) int64 { return n - 1 }))
}

func TestResolveProfile(t *testing.T) {
	assert.Equal(t, ProfileBalanced, ResolveProfile(" Balanced ").Key)
	assert.Equal(t, ProfileSafe, ResolveProfile("").Key)
	assert.Equal(t, ProfileSafe, ResolveProfile("warp").Key)

	_, err := LookupProfile("warp")
	assert.Error(t, err)
}
