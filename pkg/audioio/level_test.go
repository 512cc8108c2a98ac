package audioio

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestPeakDBFS(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    float64
	}{
		{"full scale", []int16{0, 32767, -100}, 0},
		{"negative full scale clips", []int16{-32768}, 0},
		{"half", []int16{16384, -2}, 20 * math.Log10(16384.0/32767)},
	}
	for _, tt := range tests {
		got := float64(PeakDBFS(tt.samples))
		if math.Abs(got-tt.want) > 1e-4 {
			t.Errorf("%s: expected %.4f, got %.4f", tt.name, tt.want, got)
		}
		if got > 0 {
			t.Errorf("%s: %.6f dBFS is above full scale", tt.name, got)
		}
	}
}

func TestPeakDBFS_Silence(t *testing.T) {
	if db := PeakDBFS(make([]int16, 480)); !math.IsInf(float64(db), -1) {
		t.Errorf("Expected -Inf for silence, got %v", db)
	}
	if db := PeakDBFS(nil); !math.IsInf(float64(db), -1) {
		t.Errorf("Expected -Inf for empty buffer, got %v", db)
	}
}

func TestLevel(t *testing.T) {
	l := NewLevel()
	if !math.IsInf(float64(l.Get()), -1) {
		t.Errorf("Expected new level to be silent, got %v", l.Get())
	}
	if !l.Updated().IsZero() {
		t.Error("Expected zero update time before first Set")
	}

	l.Set(-12.5)
	if l.Get() != -12.5 {
		t.Errorf("Expected -12.5, got %v", l.Get())
	}
	if time.Since(l.Updated()) > time.Second {
		t.Errorf("Update time not recorded: %v", l.Updated())
	}
}

func TestMeter_Run(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond

	src := NewMockSource(cfg, nil, WithLevel(-6))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	level := NewLevel()
	meter := NewMeter(src, level, nil)
	done := make(chan error, 1)
	go func() { done <- meter.Run(ctx) }()

	deadline := time.After(150 * time.Millisecond)
	for meter.Chunks() < 2 {
		select {
		case <-deadline:
			t.Fatalf("Meter measured only %d chunks", meter.Chunks())
		case <-time.After(5 * time.Millisecond):
		}
	}

	if db := level.Get(); db < -6.2 || db > -5.8 {
		t.Errorf("Expected level near -6 dBFS, got %.2f", db)
	}

	src.Stop()
	if err := <-done; err != nil {
		t.Errorf("Expected nil error when stream closes, got %v", err)
	}
	if !math.IsInf(float64(level.Get()), -1) {
		t.Errorf("Expected silence after stream closed, got %v", level.Get())
	}
}

func BenchmarkPeakDBFS(b *testing.B) {
	samples := make([]int16, 960)
	for i := range samples {
		samples[i] = int16(i * 17)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PeakDBFS(samples)
	}
}
