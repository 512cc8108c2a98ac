package avatar

import (
	"math"
	"time"
)

// Animator derives breathing and pop scale factors from the clock.
// Its only state is the start time and the last pop onset.
type Animator struct {
	cfg       Config
	start     time.Time
	lastOnset time.Time
}

// NewAnimator creates an animator whose breathing phase starts at start.
func NewAnimator(cfg Config, start time.Time) *Animator {
	return &Animator{cfg: cfg, start: start}
}

// Trigger records a speech onset at now unless the previous onset is less
// than PopDuration old. It reports whether a new pop started.
func (a *Animator) Trigger(now time.Time) bool {
	if !a.lastOnset.IsZero() && now.Sub(a.lastOnset) < a.cfg.PopDuration {
		return false
	}
	a.lastOnset = now
	return true
}

// LastOnset returns the time of the last accepted pop onset.
func (a *Animator) LastOnset() time.Time {
	return a.lastOnset
}

// Scale returns the scale factors at now.
func (a *Animator) Scale(now time.Time) Scale {
	sinceOnset := time.Duration(-1)
	if !a.lastOnset.IsZero() {
		sinceOnset = now.Sub(a.lastOnset)
	}
	return ScaleAt(a.cfg, now.Sub(a.start), sinceOnset)
}

// MaxDeviation is the largest |scale - 1| the animator can produce.
func (a *Animator) MaxDeviation() float64 {
	return a.cfg.BreathAmplitude * (1 + a.cfg.PopAmount)
}

// ScaleAt is the pure breathing function. A negative sinceOnset means no pop.
// X shrinks while Y grows so the apparent area stays roughly constant.
func ScaleAt(cfg Config, sinceStart, sinceOnset time.Duration) Scale {
	v := math.Sin(sinceStart.Seconds()*cfg.BreathRate) + popValue(sinceOnset, cfg.PopDuration)*cfg.PopAmount
	v *= cfg.BreathAmplitude
	return Scale{X: 1 - v, Y: 1 + v}
}

// popValue is a downward parabola on [0, d] peaking at 1 in the middle.
func popValue(t, d time.Duration) float64 {
	if t < 0 || t > d || d <= 0 {
		return 0
	}
	x := 2*t.Seconds()/d.Seconds() - 1
	return clamp(1-x*x, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
