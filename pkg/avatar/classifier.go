package avatar

import (
	"math"
	"time"
)

// Classifier maps a loudness reading to a speaking tier.
//
// The committed tier only changes when more than MinFrameTime has passed
// since the last committed change. Candidates arriving inside that window
// are dropped, not queued.
type Classifier struct {
	thresholds   []Threshold
	minFrameTime time.Duration

	committed  Tier
	lastChange time.Time
}

// NewClassifier creates a classifier starting in TierQuiet.
func NewClassifier(cfg Config) *Classifier {
	th := make([]Threshold, len(cfg.Thresholds))
	copy(th, cfg.Thresholds)
	return &Classifier{
		thresholds:   th,
		minFrameTime: cfg.MinFrameTime,
		committed:    TierQuiet,
	}
}

// Candidate returns the raw tier for db without touching the debounce state.
// Comparisons are strict: a tier needs db > threshold. NaN is TierQuiet.
func (c *Classifier) Candidate(db float32) Tier {
	if math.IsNaN(float64(db)) {
		return TierQuiet
	}
	tier := TierQuiet
	for _, th := range c.thresholds {
		if db > th.Level {
			tier = th.Tier
		}
	}
	return tier
}

// Classify updates the committed tier and returns it. onset is true when
// this call committed a transition out of TierQuiet.
func (c *Classifier) Classify(db float32, now time.Time) (tier Tier, onset bool) {
	candidate := c.Candidate(db)
	if candidate == c.committed {
		return c.committed, false
	}
	if !c.lastChange.IsZero() && now.Sub(c.lastChange) <= c.minFrameTime {
		return c.committed, false
	}

	prev := c.committed
	c.committed = candidate
	c.lastChange = now
	return c.committed, prev == TierQuiet
}

// Tier returns the committed tier.
func (c *Classifier) Tier() Tier {
	return c.committed
}

// LastChange returns when the committed tier last changed.
func (c *Classifier) LastChange() time.Time {
	return c.lastChange
}
