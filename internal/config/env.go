package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables that override the file.
const (
	EnvConfig       = "TUBER_CONFIG"
	EnvPort         = "TUBER_PORT"
	EnvLogLevel     = "TUBER_LOG_LEVEL"
	EnvAudioBackend = "TUBER_AUDIO_BACKEND"
	EnvMoodDir      = "TUBER_MOOD_DIR"
)

// Env returns the value of key, or def when it is unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ApplyEnv overlays the environment variables onto c.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvPort, v, err)
		}
		c.Server.Port = port
	}
	c.Log.Level = Env(EnvLogLevel, c.Log.Level)
	c.Audio.Backend = Env(EnvAudioBackend, c.Audio.Backend)
	c.Avatar.MoodDir = Env(EnvMoodDir, c.Avatar.MoodDir)
	return nil
}
