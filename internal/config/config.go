// Package config loads the go-tuber configuration: built-in defaults from an
// embedded YAML document, overlaid by an optional user file and a few
// environment variables.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig `yaml:"server"`
	Log     LogConfig    `yaml:"log"`
	Audio   AudioConfig  `yaml:"audio"`
	Remote  RemoteConfig `yaml:"remote"`
	Avatar  AvatarConfig `yaml:"avatar"`
	Hotkeys HotkeyConfig `yaml:"hotkeys"`

	// Path is the file this config was loaded from, if any.
	Path string `yaml:"-"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	AssetsDir string `yaml:"assets_dir"`
	Overlay   bool   `yaml:"overlay"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AudioConfig configures microphone capture.
type AudioConfig struct {
	Backend        string        `yaml:"backend"`
	SampleRate     int           `yaml:"sample_rate"`
	Channels       int           `yaml:"channels"`
	BufferDuration time.Duration `yaml:"buffer_duration"`
	Device         string        `yaml:"device"`
	File           string        `yaml:"file"`
	Loop           bool          `yaml:"loop"`
}

// RemoteConfig configures remote microphone ingest.
type RemoteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// AvatarConfig holds the resolver tuning.
type AvatarConfig struct {
	FPS          int             `yaml:"fps"`
	GainDB       float32         `yaml:"gain_db"`
	DefaultMood  string          `yaml:"default_mood"`
	Initial      MoodPair        `yaml:"initial"`
	MoodDir      string          `yaml:"mood_dir"`
	Thresholds   ThresholdConfig `yaml:"thresholds"`
	MinFrameTime time.Duration   `yaml:"min_frame_time"`
	Blink        BlinkConfig     `yaml:"blink"`
	Breath       BreathConfig    `yaml:"breath"`
	Pop          PopConfig       `yaml:"pop"`
}

// MoodPair names a head and an eye mood.
type MoodPair struct {
	Head string `yaml:"head"`
	Eyes string `yaml:"eyes"`
}

// ThresholdConfig holds the dBFS level each tier must exceed. A null
// entry disables that tier.
type ThresholdConfig struct {
	Half *float32 `yaml:"half"`
	Full *float32 `yaml:"full"`
	Yell *float32 `yaml:"yell"`
}

// BlinkConfig configures the blink scheduler.
type BlinkConfig struct {
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
	Duration time.Duration `yaml:"duration"`
}

// BreathConfig configures the idle breathing motion.
type BreathConfig struct {
	Rate      float64 `yaml:"rate"`
	Amplitude float64 `yaml:"amplitude"`
}

// PopConfig configures the speech onset pop.
type PopConfig struct {
	Duration time.Duration `yaml:"duration"`
	Amount   float64       `yaml:"amount"`
}

// HotkeyConfig is the hotkey table. Order is significant.
type HotkeyConfig struct {
	Switches   []BindingConfig `yaml:"switches"`
	Holds      []BindingConfig `yaml:"holds"`
	ForceBlink string          `yaml:"force_blink"`
}

// BindingConfig binds a key to a partial mood change.
type BindingConfig struct {
	Key  string  `yaml:"key"`
	Head *string `yaml:"head,omitempty"`
	Eyes *string `yaml:"eyes,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	if err := decode(bytes.NewReader(defaultYAML), cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// DefaultYAML returns the embedded default document.
func DefaultYAML() []byte {
	return bytes.Clone(defaultYAML)
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads defaults and environment only;
// TUBER_CONFIG supplies a path when none is given.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		cfg.Path = path
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates it. Environment
// variables are not consulted.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(bytes.NewReader(data), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
