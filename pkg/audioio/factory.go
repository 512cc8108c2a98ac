package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource builds the source for cfg.Backend. BackendAuto picks native
// capture when this build has it and the mock otherwise.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("audioio: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Backend == BackendAuto {
		cfg.Backend = detectBestBackend()
	}
	logger.Info("opening audio source",
		"backend", cfg.Backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer", cfg.BufferDuration,
	)

	var (
		src Source
		err error
	)
	switch cfg.Backend {
	case BackendMalgo:
		src, err = newMalgoSource(cfg, logger)
	case BackendWAV:
		src, err = newWAVSource(cfg, logger)
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendRemote:
		return NewRemoteSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("audioio: backend %q not available", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

func detectBestBackend() Backend {
	if malgoAvailable {
		return BackendMalgo
	}
	return BackendMock
}

// AvailableBackends lists the backends compiled into this build.
func AvailableBackends() []Backend {
	out := []Backend{BackendMock, BackendWAV, BackendRemote}
	if malgoAvailable {
		out = append(out, BackendMalgo)
	}
	return out
}
