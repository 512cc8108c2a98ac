package audioio

import (
	"context"
	"math"
	"testing"
)

func TestRemoteSource_Push(t *testing.T) {
	src := NewRemoteSource(DefaultConfig(), nil)
	defer src.Close()

	chunk := AudioChunk{Samples: []int16{1, 2, 3}, SampleRate: 48000, Channels: 1}
	if src.Push(chunk) {
		t.Error("Expected push before Start to be dropped")
	}

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !src.Push(chunk) {
		t.Fatal("Push after Start was dropped")
	}

	got, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got.Samples) != 3 {
		t.Errorf("Expected 3 samples, got %d", len(got.Samples))
	}
	if src.Name() != "remote" {
		t.Errorf("Expected name 'remote', got %q", src.Name())
	}
}

func TestRemoteSource_PushLevel(t *testing.T) {
	src := NewRemoteSource(DefaultConfig(), nil)
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src.PushLevel(-18)
	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if db := PeakDBFS(chunk.Samples); math.Abs(float64(db)+18) > 0.01 {
		t.Errorf("Expected -18 dBFS round trip, got %.3f", db)
	}

	src.PushLevel(float32(math.Inf(-1)))
	chunk, _ = src.Read(ctx)
	if db := PeakDBFS(chunk.Samples); !math.IsInf(float64(db), -1) {
		t.Errorf("Expected silence round trip, got %v", db)
	}
}

func TestRemoteSource_Overrun(t *testing.T) {
	src := NewRemoteSource(DefaultConfig(), nil)
	defer src.Close()
	src.Start(context.Background())

	for i := 0; i < 15; i++ {
		src.PushLevel(-10)
	}
	stats := src.Stats()
	if stats.ChunksRead != 10 {
		t.Errorf("Expected 10 buffered chunks, got %d", stats.ChunksRead)
	}
	if stats.Overruns != 5 {
		t.Errorf("Expected 5 overruns, got %d", stats.Overruns)
	}
}
