package avatar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtInRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry("")
	require.NoError(t, r.LoadBuiltIn())
	require.NoError(t, r.Validate())
	return r
}

func TestHeadFallbackChain(t *testing.T) {
	m := &Mood{Name: "partial", Head: HeadSet{Idle: "idle.png", Full: "full.png"}}
	require.NoError(t, m.Validate())

	assert.Equal(t, "idle.png", m.HeadImage(TierQuiet))
	assert.Equal(t, "idle.png", m.HeadImage(TierHalfSpeak))
	assert.Equal(t, "full.png", m.HeadImage(TierFullSpeak))
	assert.Equal(t, "full.png", m.HeadImage(TierYell))
}

func TestEyeFallback(t *testing.T) {
	open := &Mood{Name: "o", Eyes: EyeSet{Open: "open.png"}}
	assert.Equal(t, "open.png", open.EyeImage(BlinkClosed))

	closed := &Mood{Name: "c", Eyes: EyeSet{Closed: "closed.png"}}
	assert.Equal(t, "closed.png", closed.EyeImage(BlinkOpen))
}

func TestMoodValidate(t *testing.T) {
	assert.ErrorIs(t, (&Mood{Name: "x"}).Validate(), ErrInvalidMood)
	assert.ErrorIs(t, (&Mood{Name: " "}).Validate(), ErrInvalidMood)
	assert.ErrorIs(t, (&Mood{Name: "x", Head: HeadSet{Full: "a"}}).Validate(), ErrInvalidMood)
	assert.NoError(t, (&Mood{Name: "x", Eyes: EyeSet{Open: "a"}}).Validate())
}

func TestRegistryBuiltIn(t *testing.T) {
	r := builtInRegistry(t)

	assert.Equal(t, []string{"angry", "frown", "happy", "normal", "sad"}, r.List())
	assert.Equal(t, 5, r.Count())

	m, err := r.Get("HAPPY")
	require.NoError(t, err)
	assert.Equal(t, "happy", m.Name)

	_, err = r.Get("bored")
	assert.ErrorIs(t, err, ErrUnknownMood)
}

func TestRegistryAxisFallback(t *testing.T) {
	r := builtInRegistry(t)

	// sad defines eyes only; its head comes from the default mood.
	mood, img := r.HeadImage("sad", TierFullSpeak)
	assert.Equal(t, "normal", mood)
	assert.Equal(t, "head/happy_speak.png", img)

	mood, img = r.EyeImage("sad", BlinkClosed)
	assert.Equal(t, "sad", mood)
	assert.Equal(t, "eyes/sad_closed.png", img)

	// Unknown names never fail at frame time.
	mood, _ = r.EyeImage("nope", BlinkOpen)
	assert.Equal(t, "normal", mood)

	// frown: idle + full only.
	_, img = r.HeadImage("frown", TierHalfSpeak)
	assert.Equal(t, "head/frown_quiet.png", img)
	_, img = r.HeadImage("frown", TierYell)
	assert.Equal(t, "head/frown_speak.png", img)
}

func TestRegistryValidateDefault(t *testing.T) {
	r := NewRegistry("sad")
	require.NoError(t, r.LoadBuiltIn())
	assert.ErrorIs(t, r.Validate(), ErrInvalidMood)

	r = NewRegistry("missing")
	assert.ErrorIs(t, r.Validate(), ErrUnknownMood)
}

func TestParseMood(t *testing.T) {
	m, err := ParseMood("Sleepy", []byte("eyes:\n  open: a.png\n  closed: b.png\n"))
	require.NoError(t, err)
	assert.Equal(t, "sleepy", m.Name)

	_, err = ParseMood("bad", []byte("eyes:\n  opn: a.png\n"))
	assert.ErrorIs(t, err, ErrInvalidMood)
}

func TestLoadDirOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sad.yaml"),
		[]byte("eyes:\n  open: custom/sad.png\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	r := builtInRegistry(t)
	require.NoError(t, r.LoadDir(dir))

	_, img := r.EyeImage("sad", BlinkClosed)
	assert.Equal(t, "custom/sad.png", img)
	assert.Equal(t, 5, r.Count())
}

func TestEmbedded(t *testing.T) {
	names, err := ListEmbedded()
	require.NoError(t, err)
	assert.Len(t, names, 5)

	m, err := LoadEmbedded("Happy")
	require.NoError(t, err)
	assert.Equal(t, "head/happy_yell.png", m.HeadImage(TierYell))

	_, err = LoadEmbedded("nope")
	assert.ErrorIs(t, err, ErrUnknownMood)
}
