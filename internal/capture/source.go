package capture

import (
	"context"
	"errors"

	"github.com/skypro1111/mic-capture-service/internal/audio"
)

// DefaultBlockSize is the per-callback delivery size in frames.
const DefaultBlockSize = 4096

var (
	// ErrPermissionDenied indicates the platform rejected opening the input stream.
	ErrPermissionDenied = errors.New("input stream permission denied")

	// ErrDeviceUnavailable indicates the selected input device does not exist
	// or can no longer be opened.
	ErrDeviceUnavailable = errors.New("input device unavailable")

	// ErrEncoderUnavailable indicates no usable external encoder could be
	// constructed, even after retrying without a fixed codec.
	ErrEncoderUnavailable = errors.New("external encoder unavailable")
)

// Device describes an available audio input device.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// SourceConfig selects the device and stream parameters for acquisition.
// An empty DeviceID requests the platform default input device.
type SourceConfig struct {
	DeviceID   string
	SampleRate int
	Channels   int
	BlockSize  int
}

// Source is an open live audio input stream. Blocks are delivered at a fixed
// cadence on the returned channel until the source is closed; the channel is
// closed when delivery ends. Close releases the underlying device and
// guarantees no further block is delivered after it returns.
type Source interface {
	Blocks() <-chan audio.Block
	SampleRate() int
	Channels() int
	Close() error
}

// Acquirer opens input sources and enumerates input devices.
type Acquirer interface {
	ListInputDevices() ([]Device, error)
	Acquire(ctx context.Context, cfg SourceConfig) (Source, error)
}

func (c *SourceConfig) normalize() {
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
}
