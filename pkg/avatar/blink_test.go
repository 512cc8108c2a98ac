package avatar

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestBlinkerDelayRange(t *testing.T) {
	cfg := DefaultConfig()
	b := NewBlinker(cfg, epoch, testRand())

	for i := 0; i < 200; i++ {
		delay := b.NextBlink().Sub(b.LastBlink())
		require.GreaterOrEqual(t, delay, cfg.BlinkMinDelay)
		require.LessOrEqual(t, delay, cfg.BlinkMaxDelay)
		b.Update(b.NextBlink(), false)
	}
}

func TestBlinkerIdempotentWithinInstant(t *testing.T) {
	b := NewBlinker(DefaultConfig(), epoch, testRand())
	now := at(500 * time.Millisecond)

	next := b.NextBlink()
	for i := 0; i < 10; i++ {
		b.Update(now, false)
	}
	assert.Equal(t, next, b.NextBlink())

	// Firing once at the due time, then repeating the same instant, only
	// reschedules once.
	due := b.NextBlink()
	b.Update(due, false)
	rescheduled := b.NextBlink()
	b.Update(due, false)
	b.Update(due, false)
	assert.Equal(t, rescheduled, b.NextBlink())
	assert.Equal(t, due, b.LastBlink())
}

func TestBlinkerPhase(t *testing.T) {
	cfg := DefaultConfig()
	b := NewBlinker(cfg, epoch, testRand())

	assert.Equal(t, BlinkClosed, b.Update(epoch, false))
	assert.Equal(t, BlinkClosed, b.Update(at(cfg.BlinkDuration), false), "boundary is inclusive")
	assert.Equal(t, BlinkOpen, b.Update(at(cfg.BlinkDuration+time.Millisecond), false))

	due := b.NextBlink()
	assert.Equal(t, BlinkClosed, b.Update(due, false))
	assert.Equal(t, BlinkClosed, b.Update(due.Add(100*time.Millisecond), false))
	assert.Equal(t, BlinkOpen, b.Update(due.Add(300*time.Millisecond), false))
}

func TestBlinkerForceShut(t *testing.T) {
	b := NewBlinker(DefaultConfig(), epoch, testRand())
	now := at(600 * time.Millisecond)

	last, next := b.LastBlink(), b.NextBlink()
	assert.Equal(t, BlinkClosed, b.Update(now, true))
	assert.Equal(t, last, b.LastBlink())
	assert.Equal(t, next, b.NextBlink())
	assert.Equal(t, BlinkOpen, b.Update(now, false))
}

func TestBlinkerReset(t *testing.T) {
	b := NewBlinker(DefaultConfig(), epoch, testRand())
	delay := b.NextBlink().Sub(b.LastBlink())

	now := at(700 * time.Millisecond)
	require.Equal(t, BlinkOpen, b.Phase(now))

	b.Reset(now)
	assert.Equal(t, now, b.LastBlink())
	assert.Equal(t, now.Add(delay), b.NextBlink())
	assert.Equal(t, BlinkClosed, b.Phase(now))
}
