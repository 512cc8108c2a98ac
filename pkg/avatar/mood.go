package avatar

import (
	"fmt"
	"strings"
)

// HeadSet holds the head art for each speaking tier. Only Idle is required.
type HeadSet struct {
	Idle string `yaml:"idle" json:"idle"`
	Half string `yaml:"half,omitempty" json:"half,omitempty"`
	Full string `yaml:"full,omitempty" json:"full,omitempty"`
	Yell string `yaml:"yell,omitempty" json:"yell,omitempty"`
}

// EyeSet holds the eye art for each blink phase.
type EyeSet struct {
	Open   string `yaml:"open" json:"open"`
	Closed string `yaml:"closed,omitempty" json:"closed,omitempty"`
}

// Mood is a named bundle of head and eye art.
// A mood may define only one of the two sets; the other axis then falls
// back to the registry default when this mood is selected for it.
type Mood struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Head        HeadSet `yaml:"head,omitempty" json:"head"`
	Eyes        EyeSet  `yaml:"eyes,omitempty" json:"eyes"`
}

// HasHead reports whether the mood defines head art.
func (m *Mood) HasHead() bool {
	return m != nil && m.Head.Idle != ""
}

// HasEyes reports whether the mood defines eye art.
func (m *Mood) HasEyes() bool {
	return m != nil && (m.Eyes.Open != "" || m.Eyes.Closed != "")
}

// Validate checks that the mood can be drawn.
func (m *Mood) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidMood)
	}
	if !m.HasHead() && !m.HasEyes() {
		return fmt.Errorf("%w: mood %q defines no art", ErrInvalidMood, m.Name)
	}
	h := m.Head
	if h.Idle == "" && (h.Half != "" || h.Full != "" || h.Yell != "") {
		return fmt.Errorf("%w: mood %q has speaking art but no idle head", ErrInvalidMood, m.Name)
	}
	return nil
}

// headChain lists the tiers tried, in order, when tier has no art.
var headChain = map[Tier][]Tier{
	TierYell:      {TierYell, TierFullSpeak, TierHalfSpeak, TierQuiet},
	TierFullSpeak: {TierFullSpeak, TierHalfSpeak, TierQuiet},
	TierHalfSpeak: {TierHalfSpeak, TierQuiet},
	TierQuiet:     {TierQuiet},
}

// eyeChain lists the phases tried, in order, when phase has no art.
var eyeChain = map[BlinkPhase][]BlinkPhase{
	BlinkClosed: {BlinkClosed, BlinkOpen},
	BlinkOpen:   {BlinkOpen, BlinkClosed},
}

func (h HeadSet) at(t Tier) string {
	switch t {
	case TierHalfSpeak:
		return h.Half
	case TierFullSpeak:
		return h.Full
	case TierYell:
		return h.Yell
	default:
		return h.Idle
	}
}

func (e EyeSet) at(p BlinkPhase) string {
	if p == BlinkClosed {
		return e.Closed
	}
	return e.Open
}

// firstDefined walks chain and returns the first non-empty image.
func firstDefined[K comparable](chain []K, lookup func(K) string) string {
	for _, k := range chain {
		if img := lookup(k); img != "" {
			return img
		}
	}
	return ""
}

// HeadImage returns the head art for tier, walking down the tier chain.
func (m *Mood) HeadImage(t Tier) string {
	chain, ok := headChain[t]
	if !ok {
		chain = headChain[TierQuiet]
	}
	return firstDefined(chain, m.Head.at)
}

// EyeImage returns the eye art for phase, falling back to the other phase.
func (m *Mood) EyeImage(p BlinkPhase) string {
	return firstDefined(eyeChain[p], m.Eyes.at)
}

// Images lists every distinct image the mood references.
func (m *Mood) Images() []string {
	var out []string
	seen := make(map[string]bool)
	for _, img := range []string{m.Head.Idle, m.Head.Half, m.Head.Full, m.Head.Yell, m.Eyes.Open, m.Eyes.Closed} {
		if img != "" && !seen[img] {
			seen[img] = true
			out = append(out, img)
		}
	}
	return out
}
