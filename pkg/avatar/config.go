package avatar

import (
	"errors"
	"fmt"
	"time"
)

// Default tuning values.
const (
	DefaultHalfThreshold = -30.0 // dBFS
	DefaultFullThreshold = -20.0 // dBFS
	DefaultYellThreshold = 5.0   // dBFS, reachable only with positive gain

	DefaultMinFrameTime = time.Second / 24

	DefaultBlinkMinDelay = 1 * time.Second
	DefaultBlinkMaxDelay = 5 * time.Second
	DefaultBlinkDuration = 200 * time.Millisecond

	DefaultBreathRate      = 1.0 // radians per second
	DefaultBreathAmplitude = 1.0 / 75.0
	DefaultPopDuration     = 250 * time.Millisecond
	DefaultPopAmount       = 1.5
)

// Threshold maps a tier to the dBFS level it must exceed.
type Threshold struct {
	Tier  Tier
	Level float32
}

// Config holds the resolver tuning values.
type Config struct {
	// Thresholds lists the non-quiet tiers in ascending order.
	Thresholds []Threshold

	// MinFrameTime is the debounce between committed tier changes.
	MinFrameTime time.Duration

	// Blink scheduling.
	BlinkMinDelay time.Duration
	BlinkMaxDelay time.Duration
	BlinkDuration time.Duration

	// Breathing: sin(elapsed * BreathRate) scaled by BreathAmplitude.
	BreathRate      float64
	BreathAmplitude float64

	// Pop emphasis on speech onset.
	PopDuration time.Duration
	PopAmount   float64
}

// DefaultConfig returns the tuning used by the original art set.
func DefaultConfig() Config {
	return Config{
		Thresholds: []Threshold{
			{Tier: TierHalfSpeak, Level: DefaultHalfThreshold},
			{Tier: TierFullSpeak, Level: DefaultFullThreshold},
			{Tier: TierYell, Level: DefaultYellThreshold},
		},
		MinFrameTime:    DefaultMinFrameTime,
		BlinkMinDelay:   DefaultBlinkMinDelay,
		BlinkMaxDelay:   DefaultBlinkMaxDelay,
		BlinkDuration:   DefaultBlinkDuration,
		BreathRate:      DefaultBreathRate,
		BreathAmplitude: DefaultBreathAmplitude,
		PopDuration:     DefaultPopDuration,
		PopAmount:       DefaultPopAmount,
	}
}

// Validate checks the tuning values and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	prev := TierQuiet
	for i, th := range c.Thresholds {
		if th.Tier <= prev || th.Tier > TierYell {
			errs = append(errs, fmt.Errorf("thresholds[%d]: tier %s out of order", i, th.Tier))
		}
		if i > 0 && th.Level <= c.Thresholds[i-1].Level {
			errs = append(errs, fmt.Errorf("thresholds[%d]: level %.1f must exceed %.1f", i, th.Level, c.Thresholds[i-1].Level))
		}
		prev = th.Tier
	}
	if c.MinFrameTime < 0 {
		errs = append(errs, fmt.Errorf("min_frame_time must not be negative, got %v", c.MinFrameTime))
	}
	if c.BlinkMinDelay <= 0 || c.BlinkMaxDelay < c.BlinkMinDelay {
		errs = append(errs, fmt.Errorf("blink delay range [%v, %v] is invalid", c.BlinkMinDelay, c.BlinkMaxDelay))
	}
	if c.BlinkDuration <= 0 || c.BlinkDuration >= c.BlinkMinDelay {
		errs = append(errs, fmt.Errorf("blink duration %v must be positive and shorter than the minimum delay", c.BlinkDuration))
	}
	if c.BreathAmplitude < 0 || c.PopAmount < 0 {
		errs = append(errs, errors.New("breath amplitude and pop amount must not be negative"))
	}
	if c.PopDuration <= 0 {
		errs = append(errs, fmt.Errorf("pop duration must be positive, got %v", c.PopDuration))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
