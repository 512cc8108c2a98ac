package audioio

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// Silence is the dBFS reading of an all-zero buffer.
var Silence = float32(math.Inf(-1))

// PeakDBFS returns 20*log10(max|s| / 32767) for the buffer, so the result
// never exceeds 0. An empty or silent buffer yields -Inf.
func PeakDBFS(samples []int16) float32 {
	var peak int32
	for _, s := range samples {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return Silence
	}
	peak = min(peak, math.MaxInt16)
	return float32(20 * math.Log10(float64(peak)/32767))
}

// Level is a latest-value cell holding one dBFS reading. It is written by
// the audio context and read by the frame loop. Readers see some recent
// value, never a torn one.
type Level struct {
	bits    atomic.Uint32
	updated atomic.Int64
}

// NewLevel returns a cell initialised to silence.
func NewLevel() *Level {
	l := &Level{}
	l.bits.Store(math.Float32bits(Silence))
	return l
}

// Set stores a reading.
func (l *Level) Set(db float32) {
	l.bits.Store(math.Float32bits(db))
	l.updated.Store(time.Now().UnixNano())
}

// Get returns the latest reading.
func (l *Level) Get() float32 {
	return math.Float32frombits(l.bits.Load())
}

// Updated returns when Set was last called, or the zero time.
func (l *Level) Updated() time.Time {
	ns := l.updated.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Meter drains a Source and writes the peak of each chunk into a Level.
type Meter struct {
	src    Source
	level  *Level
	logger *slog.Logger

	chunks atomic.Int64
}

// NewMeter creates a meter feeding level from src.
func NewMeter(src Source, level *Level, logger *slog.Logger) *Meter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Meter{src: src, level: level, logger: logger}
}

// Level returns the cell the meter writes.
func (m *Meter) Level() *Level {
	return m.level
}

// Chunks returns the number of chunks measured.
func (m *Meter) Chunks() int64 {
	return m.chunks.Load()
}

// Run consumes the source until ctx is done or the stream closes.
// The source must already be started.
func (m *Meter) Run(ctx context.Context) error {
	stream := m.src.Stream()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-stream:
			if !ok {
				attrs := []any{"backend", m.src.Name(), "chunks", m.chunks.Load()}
				if st, ok := m.src.(SourceWithStats); ok {
					attrs = append(attrs, "overruns", st.Stats().Overruns)
				}
				m.logger.Debug("audio stream closed", attrs...)
				m.level.Set(Silence)
				return nil
			}
			m.level.Set(chunk.Peak())
			m.chunks.Add(1)
		}
	}
}
