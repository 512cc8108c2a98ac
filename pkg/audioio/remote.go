package audioio

import (
	"context"
	"log/slog"
	"math"
)

// RemoteSource is fed by a network peer instead of a device. The ingest
// server calls Push for every decoded buffer.
type RemoteSource struct {
	stream
}

// NewRemoteSource creates a source that only produces what is pushed to it.
func NewRemoteSource(cfg Config, logger *slog.Logger) *RemoteSource {
	return &RemoteSource{stream: newStream(string(BackendRemote), cfg, logger)}
}

// Start begins accepting pushed audio.
func (r *RemoteSource) Start(ctx context.Context) error {
	started, err := r.begin()
	if err != nil || !started {
		return err
	}
	go func(stop <-chan struct{}) {
		select {
		case <-ctx.Done():
			r.Stop()
		case <-stop:
		}
	}(r.stopped())

	r.logger.Info("remote audio source started")
	return nil
}

// Push delivers a chunk received from the network. It reports false when
// the chunk was dropped.
func (r *RemoteSource) Push(chunk AudioChunk) bool {
	return r.push(chunk)
}

// PushLevel delivers a peer-computed dBFS reading as a one-sample chunk
// whose peak measures back to db.
func (r *RemoteSource) PushLevel(db float32) bool {
	var sample int16
	if !math.IsInf(float64(db), -1) && !math.IsNaN(float64(db)) {
		sample = FloatToSample(math.Pow(10, float64(db)/20))
	}
	return r.push(AudioChunk{
		Samples:    []int16{sample},
		SampleRate: r.cfg.SampleRate,
		Channels:   1,
	})
}

// Stop halts the source.
func (r *RemoteSource) Stop() error {
	if r.end() {
		r.logger.Info("remote audio source stopped")
	}
	return nil
}

// Close releases resources.
func (r *RemoteSource) Close() error {
	if r.markClosed() {
		return r.Stop()
	}
	return nil
}

var _ SourceWithStats = (*RemoteSource)(nil)
