package avatar

import (
	"math/rand/v2"
	"time"
)

// Blinker schedules blinks at random intervals.
//
// The eyes are closed while now <= lastBlink + duration. A new blink fires
// when now reaches nextBlink, which is always lastBlink plus a delay drawn
// uniformly from [minDelay, maxDelay].
type Blinker struct {
	minDelay time.Duration
	maxDelay time.Duration
	duration time.Duration
	rng      *rand.Rand

	lastBlink time.Time
	delay     time.Duration
	nextBlink time.Time
}

// NewBlinker creates a blinker whose first blink happens at start.
// A nil rng uses a randomly seeded source.
func NewBlinker(cfg Config, start time.Time, rng *rand.Rand) *Blinker {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	b := &Blinker{
		minDelay: cfg.BlinkMinDelay,
		maxDelay: cfg.BlinkMaxDelay,
		duration: cfg.BlinkDuration,
		rng:      rng,
	}
	b.fire(start)
	return b
}

func (b *Blinker) randomDelay() time.Duration {
	span := b.maxDelay - b.minDelay
	if span <= 0 {
		return b.minDelay
	}
	return b.minDelay + time.Duration(b.rng.Float64()*float64(span))
}

func (b *Blinker) fire(now time.Time) {
	b.lastBlink = now
	b.delay = b.randomDelay()
	b.nextBlink = now.Add(b.delay)
}

// Update advances the schedule and returns the phase at now. forceShut
// reports BlinkClosed without touching the schedule.
func (b *Blinker) Update(now time.Time, forceShut bool) BlinkPhase {
	if !now.Before(b.nextBlink) {
		b.fire(now)
	}
	if forceShut {
		return BlinkClosed
	}
	return b.Phase(now)
}

// Phase returns the phase at now without advancing the schedule.
func (b *Blinker) Phase(now time.Time) BlinkPhase {
	if !now.After(b.lastBlink.Add(b.duration)) {
		return BlinkClosed
	}
	return BlinkOpen
}

// Reset treats now as a blink. It is called when the eye mood changes so
// the new mood starts from a fresh blink instead of the old mood's timing.
func (b *Blinker) Reset(now time.Time) {
	b.lastBlink = now
	b.nextBlink = now.Add(b.delay)
}

// LastBlink returns when the last blink started.
func (b *Blinker) LastBlink() time.Time {
	return b.lastBlink
}

// NextBlink returns when the next blink is due.
func (b *Blinker) NextBlink() time.Time {
	return b.nextBlink
}
