package avatar

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(DefaultConfig(), builtInRegistry(t), testBindings(),
		WithStart(epoch), WithRand(testRand()))
}

func TestResolverSteadySpeech(t *testing.T) {
	r := newTestResolver(t)

	var f Frame
	for ms := 0; ms <= 500; ms += 16 {
		f = r.Step(Input{Now: at(time.Duration(ms) * time.Millisecond), Loudness: -15})
		assert.LessOrEqual(t, math.Abs(f.Scale.X-1), r.MaxDeviation()+1e-12)
		assert.LessOrEqual(t, math.Abs(f.Scale.Y-1), r.MaxDeviation()+1e-12)
	}
	assert.Equal(t, TierFullSpeak, f.Tier)
	assert.Equal(t, "normal", f.HeadMood)
	assert.Equal(t, "head/happy_speak.png", f.HeadImage)
	assert.Contains(t, []string{"eyes/normal_open.png", "eyes/normal_closed.png"}, f.EyeImage)
	assert.False(t, f.Override)
}

func TestResolverPopOnOnset(t *testing.T) {
	r := newTestResolver(t)

	r.Step(Input{Now: at(0), Loudness: -90})
	r.Step(Input{Now: at(100 * time.Millisecond), Loudness: -15})
	ev := r.Events()
	assert.True(t, ev.TierChanged)
	assert.True(t, ev.Onset)
	assert.True(t, ev.Pop)

	// Back to quiet and up again within the pop window: no second pop.
	r.Step(Input{Now: at(150 * time.Millisecond), Loudness: -90})
	r.Step(Input{Now: at(200 * time.Millisecond), Loudness: -15})
	ev = r.Events()
	assert.True(t, ev.Onset)
	assert.False(t, ev.Pop)
}

func TestResolverHoldOverride(t *testing.T) {
	r := newTestResolver(t)
	keys := newFakeKeys()

	keys.press("F1")
	f := r.Step(Input{Now: at(0), Loudness: -90, Keys: keys})
	assert.Equal(t, State{Head: "happy", Eyes: "normal"}, r.State())
	assert.Equal(t, "happy", f.HeadMood)
	keys.release("F1")
	keys.frame()

	keys.press("F12")
	f = r.Step(Input{Now: at(16 * time.Millisecond), Loudness: -90, Keys: keys})
	assert.Equal(t, "frown", f.HeadMood)
	assert.Equal(t, "normal", f.EyeMood)
	assert.True(t, f.Override)
	keys.frame()

	keys.release("F12")
	f = r.Step(Input{Now: at(32 * time.Millisecond), Loudness: -90, Keys: keys})
	assert.Equal(t, "happy", f.HeadMood)
	assert.False(t, f.Override)
}

func TestResolverEyeChangeResetsBlink(t *testing.T) {
	r := newTestResolver(t)

	f := r.Step(Input{Now: at(600 * time.Millisecond), Loudness: -90})
	require.Equal(t, BlinkOpen, f.Blink)

	r.Latch(ChangeEyes("sad"))
	f = r.Step(Input{Now: at(616 * time.Millisecond), Loudness: -90})
	assert.Equal(t, "sad", f.EyeMood)
	assert.Equal(t, BlinkClosed, f.Blink)
	assert.Equal(t, "eyes/sad_closed.png", f.EyeImage)
}

func TestResolverForceBlink(t *testing.T) {
	r := newTestResolver(t)
	keys := newFakeKeys()
	keys.press("Space")

	f := r.Step(Input{Now: at(700 * time.Millisecond), Loudness: -90, Keys: keys})
	assert.Equal(t, BlinkClosed, f.Blink)
	assert.Equal(t, "eyes/normal_closed.png", f.EyeImage)
}

func TestResolverReconfigure(t *testing.T) {
	r := newTestResolver(t)
	r.Latch(ChangeBoth("happy", "angry"))

	reg := NewRegistry("")
	require.NoError(t, reg.LoadBuiltIn())
	require.NoError(t, reg.Register(&Mood{Name: "happy", Eyes: EyeSet{Open: "x.png"}}))

	cfg := DefaultConfig()
	cfg.PopAmount = 0
	r.Reconfigure(cfg, reg, Bindings{})

	assert.Equal(t, State{Head: "happy", Eyes: "angry"}, r.State())
	assert.InDelta(t, DefaultBreathAmplitude, r.MaxDeviation(), 1e-12)
	assert.Same(t, reg, r.Registry())

	f := r.Step(Input{Now: at(time.Second), Loudness: -90})
	assert.Equal(t, "normal", f.HeadMood, "happy no longer has a head")
}
