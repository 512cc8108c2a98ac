package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// AudioChunk is one buffer of interleaved PCM16 audio.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes encodes the samples as little-endian PCM16.
func (c AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// Frames returns the number of sample frames (samples per channel).
func (c AudioChunk) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration is the playback length of the chunk.
func (c AudioChunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Peak returns the chunk's loudness in dBFS.
func (c AudioChunk) Peak() float32 {
	return PeakDBFS(c.Samples)
}

// Source delivers captured audio as a stream of chunks. Start may be
// called again after Stop; Close is final.
type Source interface {
	Start(ctx context.Context) error
	// Stop is idempotent. It closes the channel returned by Stream.
	Stop() error
	// Read blocks for the next chunk and returns io.EOF once stopped.
	Read(ctx context.Context) (AudioChunk, error)
	Stream() <-chan AudioChunk
	Config() Config
	// Name is the backend: malgo, wav, mock or remote.
	Name() string
	io.Closer
}

// SourceStats counts what a source has delivered.
type SourceStats struct {
	Backend     string `json:"backend"`
	Running     bool   `json:"running"`
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	// Overruns are chunks dropped because the consumer fell behind.
	Overruns int64 `json:"overruns"`
}

// SourceWithStats is implemented by every built-in backend.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// stream is the start/stop/channel plumbing shared by every backend.
// Backends call begin and end from their Start/Stop and deliver audio
// with push.
type stream struct {
	cfg    Config
	logger *slog.Logger
	name   string

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newStream(name string, cfg Config, logger *slog.Logger) stream {
	if logger == nil {
		logger = slog.Default()
	}
	return stream{
		cfg:      cfg,
		logger:   logger.With("backend", name),
		name:     name,
		streamCh: make(chan AudioChunk, 10),
		stopCh:   make(chan struct{}),
	}
}

// begin marks the stream running. It reports false when already running.
func (s *stream) begin() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, io.ErrClosedPipe
	}
	if s.running {
		return false, nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.streamCh = make(chan AudioChunk, 10)
	return true, nil
}

// end marks the stream stopped. It reports false when it was not running.
func (s *stream) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	s.running = false
	close(s.stopCh)
	close(s.streamCh)
	return true
}

// push delivers a chunk without blocking; a full buffer drops it.
func (s *stream) push(chunk AudioChunk) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	select {
	case s.streamCh <- chunk:
		s.chunksRead.Add(1)
		s.samplesRead.Add(int64(len(chunk.Samples)))
		return true
	default:
		s.overruns.Add(1)
		s.logger.Debug("buffer full, dropping chunk")
		return false
	}
}

func (s *stream) stopped() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCh
}

func (s *stream) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

// Read reads the next audio chunk.
func (s *stream) Read(ctx context.Context) (AudioChunk, error) {
	ch := s.Stream()
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (s *stream) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *stream) Config() Config {
	return s.cfg
}

// Name returns the backend name.
func (s *stream) Name() string {
	return s.name
}

// Stats returns source statistics.
func (s *stream) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     s.name,
	}
}
