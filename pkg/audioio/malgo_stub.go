//go:build !cgo

package audioio

import (
	"errors"
	"log/slog"
)

const malgoAvailable = false

var errNoMalgo = errors.New("audioio: malgo backend needs a cgo build")

func newMalgoSource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, errNoMalgo
}

// ListCaptureDevices returns an error in builds without cgo.
func ListCaptureDevices() ([]string, error) {
	return nil, errNoMalgo
}
