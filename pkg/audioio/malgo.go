//go:build cgo

package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/malgo"
)

// malgoAvailable reports whether native capture is compiled in.
const malgoAvailable = true

// MalgoSource captures audio through miniaudio.
type MalgoSource struct {
	stream

	mctx   *malgo.AllocatedContext
	device *malgo.Device

	// pending accumulates callback frames until a full buffer is ready.
	pending []int16
}

func newMalgoSource(cfg Config, logger *slog.Logger) (*MalgoSource, error) {
	s := &MalgoSource{stream: newStream(string(BackendMalgo), cfg, logger)}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		s.logger.Debug("miniaudio", "msg", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("audioio: malgo init: %w", err)
	}
	s.mctx = mctx
	return s, nil
}

// Start opens the capture device.
func (s *MalgoSource) Start(ctx context.Context) error {
	started, err := s.begin()
	if err != nil || !started {
		return err
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = uint32(s.cfg.Channels)
	devCfg.SampleRate = uint32(s.cfg.SampleRate)
	devCfg.PeriodSizeInMilliseconds = uint32(s.cfg.BufferDuration.Milliseconds())
	devCfg.Alsa.NoMMap = 1

	name := "default"
	if s.cfg.Device != "" {
		info, err := s.findDevice(s.cfg.Device)
		if err != nil {
			s.end()
			return err
		}
		devCfg.Capture.DeviceID = info.ID.Pointer()
		name = info.Name()
	}

	bufLen := s.cfg.BufferSize() * s.cfg.Channels
	s.pending = make([]int16, 0, bufLen*2)
	onData := func(_, input []byte, frameCount uint32) {
		if frameCount == 0 {
			return
		}
		s.pending = append(s.pending, BytesToSamples(input)...)
		for len(s.pending) >= bufLen {
			samples := make([]int16, bufLen)
			copy(samples, s.pending[:bufLen])
			s.pending = append(s.pending[:0], s.pending[bufLen:]...)
			s.push(AudioChunk{Samples: samples, SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels})
		}
	}

	device, err := malgo.InitDevice(s.mctx.Context, devCfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		s.end()
		return fmt.Errorf("audioio: init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		s.end()
		return fmt.Errorf("audioio: start capture device: %w", err)
	}
	s.device = device

	go func(stop <-chan struct{}) {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stop:
		}
	}(s.stopped())

	s.logger.Info("malgo audio source started",
		"device", name,
		"sample_rate", s.cfg.SampleRate,
		"channels", s.cfg.Channels,
	)
	return nil
}

func (s *MalgoSource) findDevice(match string) (malgo.DeviceInfo, error) {
	infos, err := s.mctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("audioio: list capture devices: %w", err)
	}
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(match)) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("audioio: no capture device matching %q", match)
}

// Stop halts capture.
func (s *MalgoSource) Stop() error {
	if !s.end() {
		return nil
	}
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	s.logger.Info("malgo audio source stopped")
	return nil
}

// Close releases the device and context.
func (s *MalgoSource) Close() error {
	if !s.markClosed() {
		return nil
	}
	s.Stop()
	if s.mctx != nil {
		_ = s.mctx.Uninit()
		s.mctx.Free()
		s.mctx = nil
	}
	return nil
}

// ListCaptureDevices returns the names of the available capture devices.
func ListCaptureDevices() ([]string, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audioio: malgo init: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("audioio: list capture devices: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

var _ SourceWithStats = (*MalgoSource)(nil)
