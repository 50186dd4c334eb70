//go:build !portaudio
// +build !portaudio

package capture

import (
	"context"
	"fmt"
	"log/slog"
)

// stubAcquirer is used when portaudio support is not compiled in.
type stubAcquirer struct {
	logger *slog.Logger
}

// NewAcquirer creates the stub acquirer.
func NewAcquirer(logger *slog.Logger) Acquirer {
	return &stubAcquirer{logger: logger}
}

func (a *stubAcquirer) ListInputDevices() ([]Device, error) {
	return nil, fmt.Errorf("%w: portaudio support not compiled in, rebuild with -tags portaudio", ErrDeviceUnavailable)
}

func (a *stubAcquirer) Acquire(_ context.Context, _ SourceConfig) (Source, error) {
	return nil, fmt.Errorf("%w: portaudio support not compiled in, rebuild with -tags portaudio", ErrDeviceUnavailable)
}
