package audioio

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// MockSource emits a steady tone (or silence) on the buffer clock. It stands
// in for a microphone in tests and on machines without capture devices.
type MockSource struct {
	stream

	freq  float64 // Hz, 0 for silence
	amp   float64 // peak, 0..1
	phase float64 // radians
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave generates a sine of the given frequency and peak amplitude.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.freq = frequency
		m.amp = amplitude
	}
}

// WithLevel generates a 440 Hz tone peaking at db dBFS.
func WithLevel(db float64) MockSourceOption {
	return WithSineWave(440, math.Pow(10, db/20))
}

// NewMockSource returns a silent mock unless an option sets a tone.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	m := &MockSource{stream: newStream(string(BackendMock), cfg, logger)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockSource) Start(ctx context.Context) error {
	started, err := m.begin()
	if err != nil || !started {
		return err
	}
	go m.run(ctx, m.stopped())
	m.logger.Info("mock audio started", "frequency", m.freq, "amplitude", m.amp)
	return nil
}

func (m *MockSource) run(ctx context.Context, stop <-chan struct{}) {
	tick := time.NewTicker(m.cfg.BufferDuration)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-stop:
			return
		case <-tick.C:
			m.push(m.next())
		}
	}
}

// next renders one buffer. Only the run goroutine touches phase.
func (m *MockSource) next() AudioChunk {
	frames, ch := m.cfg.BufferSize(), m.cfg.Channels
	out := make([]int16, frames*ch)
	if m.freq > 0 {
		step := 2 * math.Pi * m.freq / float64(m.cfg.SampleRate)
		for i := 0; i < frames; i++ {
			v := FloatToSample(m.amp * math.Sin(m.phase))
			for c := 0; c < ch; c++ {
				out[i*ch+c] = v
			}
			m.phase = math.Mod(m.phase+step, 2*math.Pi)
		}
	}
	return AudioChunk{Samples: out, SampleRate: m.cfg.SampleRate, Channels: ch}
}

func (m *MockSource) Stop() error {
	if m.end() {
		m.logger.Info("mock audio stopped")
	}
	return nil
}

func (m *MockSource) Close() error {
	if m.markClosed() {
		return m.Stop()
	}
	return nil
}

var _ SourceWithStats = (*MockSource)(nil)
