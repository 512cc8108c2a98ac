package config

import (
	"fmt"

	"github.com/teslashibe/go-tuber/pkg/audioio"
	"github.com/teslashibe/go-tuber/pkg/avatar"
)

// AudioIO returns the capture configuration.
func (c *Config) AudioIO() audioio.Config {
	a := c.Audio
	return audioio.Config{
		Backend:        audioio.Backend(a.Backend),
		SampleRate:     a.SampleRate,
		Channels:       a.Channels,
		BufferDuration: a.BufferDuration,
		Device:         a.Device,
		File:           a.File,
		Loop:           a.Loop,
	}
}

// AvatarTuning returns the resolver tuning.
func (c *Config) AvatarTuning() avatar.Config {
	a := c.Avatar
	var th []avatar.Threshold
	for _, t := range []struct {
		tier  avatar.Tier
		level *float32
	}{
		{avatar.TierHalfSpeak, a.Thresholds.Half},
		{avatar.TierFullSpeak, a.Thresholds.Full},
		{avatar.TierYell, a.Thresholds.Yell},
	} {
		if t.level != nil {
			th = append(th, avatar.Threshold{Tier: t.tier, Level: *t.level})
		}
	}
	return avatar.Config{
		Thresholds:      th,
		MinFrameTime:    a.MinFrameTime,
		BlinkMinDelay:   a.Blink.MinDelay,
		BlinkMaxDelay:   a.Blink.MaxDelay,
		BlinkDuration:   a.Blink.Duration,
		BreathRate:      a.Breath.Rate,
		BreathAmplitude: a.Breath.Amplitude,
		PopDuration:     a.Pop.Duration,
		PopAmount:       a.Pop.Amount,
	}
}

// Bindings returns the hotkey table in file order.
func (c *Config) Bindings() avatar.Bindings {
	conv := func(in []BindingConfig) []avatar.Binding {
		out := make([]avatar.Binding, 0, len(in))
		for _, b := range in {
			out = append(out, avatar.Binding{
				Key:    b.Key,
				Change: avatar.Change{Head: b.Head, Eyes: b.Eyes},
			})
		}
		return out
	}
	return avatar.Bindings{
		Switches:   conv(c.Hotkeys.Switches),
		Holds:      conv(c.Hotkeys.Holds),
		ForceBlink: c.Hotkeys.ForceBlink,
	}
}

// InitialState returns the expression latched at startup.
func (c *Config) InitialState() avatar.State {
	s := avatar.State{Head: c.Avatar.Initial.Head, Eyes: c.Avatar.Initial.Eyes}
	if s.Head == "" {
		s.Head = c.Avatar.DefaultMood
	}
	if s.Eyes == "" {
		s.Eyes = c.Avatar.DefaultMood
	}
	return s
}

// Registry builds the mood registry: built-in moods, then any mood files
// in avatar.mood_dir, then a check that the default mood is drawable and
// that every bound mood exists.
func (c *Config) Registry() (*avatar.Registry, error) {
	reg := avatar.NewRegistry(c.Avatar.DefaultMood)
	if err := reg.LoadBuiltIn(); err != nil {
		return nil, err
	}
	if c.Avatar.MoodDir != "" {
		if err := reg.LoadDir(c.Avatar.MoodDir); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	check := func(where string, name *string) error {
		if name != nil && !reg.Has(*name) {
			return fmt.Errorf("%s: %w: %s", where, avatar.ErrUnknownMood, *name)
		}
		return nil
	}
	for _, b := range c.Hotkeys.Switches {
		if err := check("switch "+b.Key, b.Head); err != nil {
			return nil, err
		}
		if err := check("switch "+b.Key, b.Eyes); err != nil {
			return nil, err
		}
	}
	for _, b := range c.Hotkeys.Holds {
		if err := check("hold "+b.Key, b.Head); err != nil {
			return nil, err
		}
		if err := check("hold "+b.Key, b.Eyes); err != nil {
			return nil, err
		}
	}
	initial := c.InitialState()
	if err := check("avatar.initial.head", &initial.Head); err != nil {
		return nil, err
	}
	if err := check("avatar.initial.eyes", &initial.Eyes); err != nil {
		return nil, err
	}
	return reg, nil
}
