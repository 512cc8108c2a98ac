package config

import (
	"errors"
	"fmt"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the whole configuration and reports every problem.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	audio := c.AudioIO()
	if err := audio.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("audio: %w", err))
	}

	if c.Avatar.FPS < 1 || c.Avatar.FPS > 240 {
		errs = append(errs, fmt.Errorf("avatar.fps %d must be between 1 and 240", c.Avatar.FPS))
	}
	if c.Avatar.DefaultMood == "" {
		errs = append(errs, errors.New("avatar.default_mood is required"))
	}
	tuning := c.AvatarTuning()
	if err := tuning.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("avatar: %w", err))
	}
	if err := c.Bindings().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hotkeys: %w", err))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
