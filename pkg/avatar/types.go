// Package avatar resolves, once per rendered frame, which art the tuber shows.
//
// The resolver combines four small state trackers polled from a single
// frame loop: a loudness classifier that turns dBFS into a speaking tier, a
// blink scheduler for the eyes, an expression selector driven by hotkeys, and
// a procedural animator producing breathing and "pop" scale factors.
//
// Nothing in this package is safe for concurrent use. The only value shared
// with another goroutine is the loudness reading, which callers pass in.
package avatar

import (
	"fmt"
	"strings"
	"time"
)

// Tier is a discrete speaking intensity.
type Tier int

const (
	// TierQuiet means the character is not speaking.
	TierQuiet Tier = iota
	// TierHalfSpeak means quiet speech.
	TierHalfSpeak
	// TierFullSpeak means normal speech.
	TierFullSpeak
	// TierYell means very loud speech.
	TierYell
)

// String returns the configuration name of the tier.
func (t Tier) String() string {
	switch t {
	case TierQuiet:
		return "quiet"
	case TierHalfSpeak:
		return "half"
	case TierFullSpeak:
		return "full"
	case TierYell:
		return "yell"
	default:
		return "unknown"
	}
}

// ParseTier parses a tier name as written in configuration files.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiet", "idle":
		return TierQuiet, nil
	case "half", "halfspeak", "half_speak":
		return TierHalfSpeak, nil
	case "full", "fullspeak", "full_speak":
		return TierFullSpeak, nil
	case "yell":
		return TierYell, nil
	default:
		return TierQuiet, fmt.Errorf("unknown tier %q", s)
	}
}

// BlinkPhase is the open/closed state of the eyes.
type BlinkPhase int

const (
	// BlinkOpen means the eyes are open.
	BlinkOpen BlinkPhase = iota
	// BlinkClosed means the eyes are shut, either blinking or forced.
	BlinkClosed
)

// String returns a human-readable phase name.
func (p BlinkPhase) String() string {
	if p == BlinkClosed {
		return "closed"
	}
	return "open"
}

// Scale holds the procedural scale multipliers applied to the whole sprite.
type Scale struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Frame is everything a renderer needs to draw one frame.
type Frame struct {
	// Time is the frame clock.
	Time time.Time `json:"time"`

	// Loudness is the dBFS value the tier was classified from, after gain.
	Loudness float32 `json:"loudness"`

	// Tier is the committed speaking tier.
	Tier Tier `json:"tier"`

	// HeadMood and EyeMood are the mood names actually drawn, after any
	// hold override and default-mood fallback.
	HeadMood string `json:"head_mood"`
	EyeMood  string `json:"eye_mood"`

	// HeadImage and EyeImage identify the art to draw.
	HeadImage string `json:"head_image"`
	EyeImage  string `json:"eye_image"`

	// Blink is the eye phase.
	Blink BlinkPhase `json:"blink"`

	// Scale is the breathing/pop scale.
	Scale Scale `json:"scale"`

	// Override is true while a hold hotkey is down.
	Override bool `json:"override"`
}

// KeyState reports the hotkey state for a single frame.
//
// Pressed reports a press edge that happened since the previous frame; Down
// reports whether the key is physically held right now.
type KeyState interface {
	Pressed(key string) bool
	Down(key string) bool
}

// NoKeys is a KeyState with nothing pressed.
var NoKeys KeyState = noKeys{}

type noKeys struct{}

func (noKeys) Pressed(string) bool { return false }
func (noKeys) Down(string) bool    { return false }
