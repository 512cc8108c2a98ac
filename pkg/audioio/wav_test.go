package audioio

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// writeTone writes a mono 16-bit WAV with a 440Hz tone at amplitude amp.
func writeTone(t *testing.T, rate beep.SampleRate, d time.Duration, amp float64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	var pos int
	tone := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			v := amp * math.Sin(2*math.Pi*440*float64(pos)/float64(rate))
			samples[i] = [2]float64{v, v}
			pos++
		}
		return len(samples), true
	})

	format := beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, beep.Take(rate.N(d), tone), format); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestWAVSource_MissingFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendWAV
	cfg.File = filepath.Join(t.TempDir(), "nope.wav")

	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestWAVSource_StreamsAtPace(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendWAV
	cfg.BufferDuration = 10 * time.Millisecond
	cfg.Loop = false
	cfg.File = writeTone(t, 44100, 100*time.Millisecond, 0.5)

	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var chunks int
	var peak float32 = Silence
	for {
		chunk, err := src.Read(ctx)
		if err != nil {
			break
		}
		chunks++
		if chunk.SampleRate != cfg.SampleRate {
			t.Errorf("Expected resampled rate %d, got %d", cfg.SampleRate, chunk.SampleRate)
		}
		if db := PeakDBFS(chunk.Samples); db > peak {
			peak = db
		}
	}
	elapsed := time.Since(start)

	if chunks < 8 {
		t.Errorf("Expected about 10 chunks for 100ms of audio, got %d", chunks)
	}
	if elapsed < 70*time.Millisecond {
		t.Errorf("Source ran faster than real time: %v", elapsed)
	}
	// -6 dBFS tone, allowing for resampler ripple.
	if peak < -7 || peak > -5 {
		t.Errorf("Expected peak near -6 dBFS, got %.2f", peak)
	}
}

func TestWAVSource_Loop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendWAV
	cfg.BufferDuration = 10 * time.Millisecond
	cfg.SampleRate = 44100
	cfg.File = writeTone(t, 44100, 30*time.Millisecond, 0.25)

	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// 30ms of audio looped must keep producing beyond its length.
	for i := 0; i < 8; i++ {
		if _, err := src.Read(ctx); err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
	}
}
