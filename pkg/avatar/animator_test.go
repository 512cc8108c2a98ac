package avatar

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnimatorPopGuard(t *testing.T) {
	a := NewAnimator(DefaultConfig(), epoch)

	assert.True(t, a.Trigger(at(0)))
	assert.False(t, a.Trigger(at(100*time.Millisecond)), "second onset inside the pop is ignored")
	assert.Equal(t, at(0), a.LastOnset())

	b := NewAnimator(DefaultConfig(), epoch)
	assert.True(t, b.Trigger(at(0)))
	assert.True(t, b.Trigger(at(300*time.Millisecond)))
	assert.Equal(t, at(300*time.Millisecond), b.LastOnset())
}

func TestPopValue(t *testing.T) {
	d := 250 * time.Millisecond
	assert.InDelta(t, 0, popValue(0, d), 1e-9)
	assert.InDelta(t, 1, popValue(d/2, d), 1e-9)
	assert.InDelta(t, 0, popValue(d, d), 1e-9)
	assert.Zero(t, popValue(-1, d))
	assert.Zero(t, popValue(d+time.Millisecond, d))
}

func TestScaleAtConservesShape(t *testing.T) {
	cfg := DefaultConfig()

	s := ScaleAt(cfg, 0, -1)
	assert.InDelta(t, 1, s.X, 1e-12)
	assert.InDelta(t, 1, s.Y, 1e-12)

	quarter := math.Pi / 2 * float64(time.Second)
	s = ScaleAt(cfg, time.Duration(quarter), -1)
	assert.InDelta(t, 1-cfg.BreathAmplitude, s.X, 1e-6)
	assert.InDelta(t, 1+cfg.BreathAmplitude, s.Y, 1e-6)
}

func TestScaleWithinMaxDeviation(t *testing.T) {
	a := NewAnimator(DefaultConfig(), epoch)
	limit := a.MaxDeviation()
	assert.InDelta(t, DefaultBreathAmplitude*2.5, limit, 1e-12)

	for ms := 0; ms < 10_000; ms += 7 {
		now := at(time.Duration(ms) * time.Millisecond)
		if ms%900 == 0 {
			a.Trigger(now)
		}
		s := a.Scale(now)
		assert.LessOrEqual(t, math.Abs(s.X-1), limit+1e-12)
		assert.LessOrEqual(t, math.Abs(s.Y-1), limit+1e-12)
	}
}
