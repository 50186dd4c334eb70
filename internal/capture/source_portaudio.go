//go:build portaudio
// +build portaudio

package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/skypro1111/mic-capture-service/internal/audio"
)

// paAcquirer opens portaudio input streams. Device IDs are portaudio device
// indices rendered as strings; labels are the device names.
type paAcquirer struct {
	logger *slog.Logger
}

// NewAcquirer creates the portaudio-backed acquirer.
func NewAcquirer(logger *slog.Logger) Acquirer {
	return &paAcquirer{logger: logger}
}

// ListInputDevices enumerates devices with at least one input channel.
func (a *paAcquirer) ListInputDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	defer terminate(a.logger)

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		if info.MaxInputChannels < 1 {
			continue
		}
		devices = append(devices, Device{
			ID:    strconv.Itoa(i),
			Label: info.Name,
		})
	}

	return devices, nil
}

// Acquire opens a live input stream for the configured device. An empty
// DeviceID opens the default input device with the platform's default
// processing (echo cancellation and noise suppression where the host
// provides them). No stream is left open on failure.
func (a *paAcquirer) Acquire(ctx context.Context, cfg SourceConfig) (Source, error) {
	cfg.normalize()

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initializing portaudio: %v", ErrPermissionDenied, err)
	}

	info, err := a.lookupDevice(cfg.DeviceID)
	if err != nil {
		terminate(a.logger)
		return nil, err
	}

	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.BlockSize

	// Non-interleaved buffers: one plane per channel.
	planes := make([][]float32, cfg.Channels)
	for i := range planes {
		planes[i] = make([]float32, cfg.BlockSize)
	}

	stream, err := portaudio.OpenStream(params, planes)
	if err != nil {
		terminate(a.logger)
		return nil, fmt.Errorf("%w: opening stream: %v", ErrPermissionDenied, err)
	}

	if err := stream.Start(); err != nil {
		if cerr := stream.Close(); cerr != nil {
			a.logger.Warn("Failed to close stream during acquire cleanup",
				slog.String("error", cerr.Error()),
			)
		}
		terminate(a.logger)
		return nil, fmt.Errorf("%w: starting stream: %v", ErrPermissionDenied, err)
	}

	src := &paSource{
		stream:     stream,
		planes:     planes,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		blocks:     make(chan audio.Block, 8),
		done:       make(chan struct{}),
		logger:     a.logger,
	}

	src.wg.Add(1)
	go src.readLoop(ctx)

	a.logger.Info("Input source acquired",
		slog.String("device", info.Name),
		slog.Int("sample_rate", cfg.SampleRate),
		slog.Int("channels", cfg.Channels),
		slog.Int("block_size", cfg.BlockSize),
	)

	return src, nil
}

func (a *paAcquirer) lookupDevice(deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" {
		info, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input device: %v", ErrDeviceUnavailable, err)
		}
		return info, nil
	}

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating devices: %v", ErrDeviceUnavailable, err)
	}

	index, err := strconv.Atoi(deviceID)
	if err != nil || index < 0 || index >= len(infos) {
		return nil, fmt.Errorf("%w: unknown device %q", ErrDeviceUnavailable, deviceID)
	}

	info := infos[index]
	if info.MaxInputChannels < 1 {
		return nil, fmt.Errorf("%w: device %q has no input channels", ErrDeviceUnavailable, info.Name)
	}

	return info, nil
}

// paSource delivers fixed-size blocks read from a portaudio stream.
type paSource struct {
	stream     *portaudio.Stream
	planes     [][]float32
	sampleRate int
	channels   int

	blocks chan audio.Block
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
	logger    *slog.Logger
}

func (s *paSource) Blocks() <-chan audio.Block {
	return s.blocks
}

func (s *paSource) SampleRate() int {
	return s.sampleRate
}

func (s *paSource) Channels() int {
	return s.channels
}

// readLoop delivers blocks until the source is closed. Each delivered block
// owns copies of the stream buffers so the next Read cannot mutate it.
func (s *paSource) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.blocks)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			select {
			case <-s.done:
				// Expected: Close stops the stream underneath a blocked Read.
			default:
				s.logger.Error("Stream read failed, ending delivery",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		block := audio.Block{Channels: make([][]float32, len(s.planes))}
		for i, plane := range s.planes {
			block.Channels[i] = make([]float32, len(plane))
			copy(block.Channels[i], plane)
		}

		select {
		case s.blocks <- block:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Close stops delivery and releases the stream and the portaudio host.
// Release failures are logged and swallowed: they must never block teardown.
func (s *paSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)

		if err := s.stream.Stop(); err != nil {
			s.logger.Warn("Failed to stop input stream", slog.String("error", err.Error()))
		}
		if err := s.stream.Close(); err != nil {
			s.logger.Warn("Failed to close input stream", slog.String("error", err.Error()))
		}

		s.wg.Wait()
		terminate(s.logger)
	})

	return nil
}

func terminate(logger *slog.Logger) {
	if err := portaudio.Terminate(); err != nil {
		logger.Warn("Failed to terminate portaudio", slog.String("error", err.Error()))
	}
}
