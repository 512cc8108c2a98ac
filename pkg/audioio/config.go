// Package audioio captures microphone audio and turns it into a loudness
// reading for the frame loop.
//
// This package supports multiple backends:
//   - malgo - native capture through miniaudio (requires cgo)
//   - wav - a WAV file played at real-time pace, for demos and tests
//   - remote - chunks pushed by a network peer (see pkg/remote)
//   - mock - synthetic silence or sine wave for CI
//
// Every backend feeds the same Source interface. A Meter drains a Source
// and stores the peak dBFS of each buffer in a Level cell, which is the
// only value shared with the frame loop.
package audioio

import (
	"errors"
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects malgo when it is compiled in, mock otherwise.
	BackendAuto Backend = "auto"
	// BackendMalgo captures from a local device through miniaudio.
	BackendMalgo Backend = "malgo"
	// BackendWAV streams a WAV file.
	BackendWAV Backend = "wav"
	// BackendRemote receives audio from a network peer.
	BackendRemote Backend = "remote"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// ParseBackend validates a backend name from configuration.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendAuto, BackendMalgo, BackendWAV, BackendRemote, BackendMock:
		return b, nil
	case "":
		return BackendAuto, nil
	default:
		return "", fmt.Errorf("unknown audio backend %q", s)
	}
}

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the capture sample rate in Hz.
	// Default: 48000 (native opus rate, avoids resampling remote audio)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the size of audio buffers. One loudness reading is
	// produced per buffer.
	// Default: 20ms
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is a substring of the capture device name for malgo.
	// Empty selects the system default.
	Device string `yaml:"device" json:"device"`

	// File is the WAV file played by the wav backend.
	File string `yaml:"file" json:"file"`

	// Loop replays the WAV file when it ends.
	Loop bool `yaml:"loop" json:"loop"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     48000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
		Loop:           true,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		errs = append(errs, err)
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.Channels <= 0 || c.Channels > 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2, got %d", c.Channels))
	}
	if c.BufferDuration <= 0 {
		errs = append(errs, fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration))
	}
	if c.Backend == BackendWAV && c.File == "" {
		errs = append(errs, errors.New("wav backend needs a file"))
	}
	return errors.Join(errs...)
}

// BufferSize returns the number of frames per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a buffer in bytes (assuming int16 samples).
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
