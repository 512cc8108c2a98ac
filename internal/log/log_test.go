package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "debug", Format: "json", Output: &buf})

	With("component", "test").Debug("hello", "n", 1)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "hello" || rec["component"] != "test" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "info", Format: "text", Output: &buf})

	Debug("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug message logged at info level")
	}

	SetLevel("debug")
	if Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", Level())
	}
	Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("debug message missing after SetLevel")
	}
}
