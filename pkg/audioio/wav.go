package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// resampleQuality is the beep resampler quality (1..64).
const resampleQuality = 4

// WAVSource streams a WAV file at real-time pace, as if it were a
// microphone. The file is decoded with beep and resampled to the
// configured rate.
type WAVSource struct {
	stream

	path string
	loop bool
}

func newWAVSource(cfg Config, logger *slog.Logger) (*WAVSource, error) {
	if _, err := os.Stat(cfg.File); err != nil {
		return nil, fmt.Errorf("audioio: wav file: %w", err)
	}
	return &WAVSource{
		stream: newStream(string(BackendWAV), cfg, logger),
		path:   cfg.File,
		loop:   cfg.Loop,
	}, nil
}

// Start opens the file and begins streaming.
func (w *WAVSource) Start(ctx context.Context) error {
	started, err := w.begin()
	if err != nil || !started {
		return err
	}

	f, err := os.Open(w.path)
	if err != nil {
		w.end()
		return fmt.Errorf("audioio: open wav: %w", err)
	}
	decoded, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		w.end()
		return fmt.Errorf("audioio: decode wav: %w", err)
	}

	var streamer beep.Streamer = decoded
	if w.loop {
		streamer = beep.Loop(-1, decoded)
	}
	target := beep.SampleRate(w.cfg.SampleRate)
	if format.SampleRate != target {
		streamer = beep.Resample(resampleQuality, format.SampleRate, target, streamer)
	}

	go w.playLoop(ctx, w.stopped(), decoded, streamer)

	w.logger.Info("wav audio source started",
		"file", w.path,
		"file_rate", int(format.SampleRate),
		"sample_rate", w.cfg.SampleRate,
		"loop", w.loop,
	)
	return nil
}

func (w *WAVSource) playLoop(ctx context.Context, stop <-chan struct{}, closer beep.StreamSeekCloser, s beep.Streamer) {
	defer closer.Close()

	ticker := time.NewTicker(w.cfg.BufferDuration)
	defer ticker.Stop()

	frames := w.cfg.BufferSize()
	buf := make([][2]float64, frames)

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-stop:
			return
		case <-ticker.C:
			n, ok := s.Stream(buf)
			if n > 0 {
				w.push(w.toChunk(buf[:n]))
			}
			if !ok {
				if err := s.Err(); err != nil {
					w.logger.Warn("wav stream error", "error", err)
				} else {
					w.logger.Info("wav file finished")
				}
				w.Stop()
				return
			}
		}
	}
}

func (w *WAVSource) toChunk(frames [][2]float64) AudioChunk {
	ch := w.cfg.Channels
	samples := make([]int16, len(frames)*ch)
	for i, f := range frames {
		if ch == 1 {
			samples[i] = FloatToSample((f[0] + f[1]) / 2)
			continue
		}
		samples[i*2] = FloatToSample(f[0])
		samples[i*2+1] = FloatToSample(f[1])
	}
	return AudioChunk{
		Samples:    samples,
		SampleRate: w.cfg.SampleRate,
		Channels:   ch,
	}
}

// Stop halts streaming.
func (w *WAVSource) Stop() error {
	if w.end() {
		w.logger.Info("wav audio source stopped")
	}
	return nil
}

// Close releases resources.
func (w *WAVSource) Close() error {
	if w.markClosed() {
		return w.Stop()
	}
	return nil
}

var _ SourceWithStats = (*WAVSource)(nil)
