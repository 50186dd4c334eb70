package capture

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"

	"github.com/skypro1111/mic-capture-service/internal/audio"
)

const encoderChunkSize = 4096

// EncoderConfig describes the external encoder process for the compressed
// capture path. The encoder reads signed 16-bit little-endian PCM on stdin
// and writes the compressed container to stdout.
type EncoderConfig struct {
	Command    string `yaml:"command"`   // encoder binary, default "ffmpeg"
	Codec      string `yaml:"codec"`     // preferred codec, e.g. "libopus"
	Bitrate    string `yaml:"bitrate"`   // e.g. "64k"
	Container  string `yaml:"container"` // output container format, e.g. "ogg"
	MIME       string `yaml:"mime"`      // reported MIME type
	SampleRate int    `yaml:"-"`
	Channels   int    `yaml:"-"`
}

func (c *EncoderConfig) normalize() {
	if c.Command == "" {
		c.Command = "ffmpeg"
	}
	if c.Container == "" {
		c.Container = "ogg"
	}
	if c.MIME == "" {
		c.MIME = audio.DefaultContainerMIME
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
}

// Validate checks the encoder configuration.
func (c *EncoderConfig) Validate() error {
	if c.Command == "" {
		return fmt.Errorf("encoder command must not be empty")
	}
	if c.Container == "" {
		return fmt.Errorf("encoder container must not be empty")
	}
	return nil
}

// StreamEncoder pipes raw PCM through an external encoder process and emits
// the process output as opaque encoded chunks. Pause gates the PCM feed; the
// process itself keeps running so resume needs no renegotiation.
type StreamEncoder struct {
	cfg    EncoderConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer

	chunks chan audio.EncodedChunk
	readWG sync.WaitGroup

	mu     sync.Mutex
	paused bool
	closed bool

	closeOnce sync.Once
	closeErr  error

	logger *slog.Logger
}

// NewStreamEncoder constructs and starts the external encoder. If startup
// with the configured codec fails, construction is retried once without
// fixing a codec (letting the container pick its default) before giving up
// with ErrEncoderUnavailable.
func NewStreamEncoder(cfg EncoderConfig, logger *slog.Logger) (*StreamEncoder, error) {
	cfg.normalize()

	enc, err := startEncoder(cfg, logger)
	if err != nil && cfg.Codec != "" {
		logger.Warn("Encoder startup failed with fixed codec, retrying with container default",
			slog.String("codec", cfg.Codec),
			slog.String("error", err.Error()),
		)

		retry := cfg
		retry.Codec = ""
		enc, err = startEncoder(retry, logger)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoderUnavailable, err)
	}

	return enc, nil
}

func startEncoder(cfg EncoderConfig, logger *slog.Logger) (*StreamEncoder, error) {
	if _, err := exec.LookPath(cfg.Command); err != nil {
		return nil, fmt.Errorf("encoder command %q not found: %w", cfg.Command, err)
	}

	cmd := exec.Command(cfg.Command, buildEncoderArgs(cfg)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening encoder stdin: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening encoder stdout: %w", err)
	}

	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting encoder process: %w", err)
	}

	enc := &StreamEncoder{
		cfg:    cfg,
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		chunks: make(chan audio.EncodedChunk, 64),
		logger: logger,
	}

	enc.readWG.Add(1)
	go enc.readLoop(stdout)

	logger.Info("External encoder started",
		slog.String("command", cfg.Command),
		slog.String("codec", cfg.Codec),
		slog.String("container", cfg.Container),
		slog.Int("sample_rate", cfg.SampleRate),
		slog.Int("channels", cfg.Channels),
	)

	return enc, nil
}

// buildEncoderArgs constructs the encoder command line: raw s16le PCM on
// stdin, the configured container on stdout.
func buildEncoderArgs(cfg EncoderConfig) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(cfg.Channels),
		"-i", "pipe:0",
	}

	if cfg.Codec != "" {
		args = append(args, "-c:a", cfg.Codec)
	}
	if cfg.Bitrate != "" {
		args = append(args, "-b:a", cfg.Bitrate)
	}

	return append(args, "-f", cfg.Container, "pipe:1")
}

// readLoop forwards encoder output as chunks until stdout reaches EOF.
func (e *StreamEncoder) readLoop(stdout io.Reader) {
	defer e.readWG.Done()
	defer close(e.chunks)

	buf := make([]byte, encoderChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			e.chunks <- audio.EncodedChunk{Data: data, MIME: e.cfg.MIME}
		}
		if err != nil {
			if err != io.EOF {
				e.logger.Warn("Encoder output read failed",
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// WriteBlock feeds one captured block to the encoder. Blocks written while
// paused are dropped so the compressed output carries no pause-time audio.
func (e *StreamEncoder) WriteBlock(block audio.Block) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("encoder is closed")
	}
	if e.paused {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	pcm := audio.PCM16Bytes(audio.FloatsToPCM16(audio.Interleave(block.Channels)))
	if _, err := e.stdin.Write(pcm); err != nil {
		return fmt.Errorf("writing to encoder: %w", err)
	}

	return nil
}

// Pause stops feeding PCM to the encoder.
func (e *StreamEncoder) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume re-enables the PCM feed.
func (e *StreamEncoder) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

// Chunks returns the encoded output channel. It is closed after Close once
// the encoder has flushed its final output.
func (e *StreamEncoder) Chunks() <-chan audio.EncodedChunk {
	return e.chunks
}

// MIME returns the container MIME type the encoder reports for its output.
func (e *StreamEncoder) MIME() string {
	return e.cfg.MIME
}

// Close ends the PCM feed, waits for the encoder to flush and exit, and
// drains the output reader. Safe to call more than once.
func (e *StreamEncoder) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		if err := e.stdin.Close(); err != nil {
			e.logger.Warn("Failed to close encoder stdin", slog.String("error", err.Error()))
		}

		// EOF on stdin makes the encoder flush and exit; the read loop ends
		// at stdout EOF.
		e.readWG.Wait()

		if err := e.cmd.Wait(); err != nil {
			e.closeErr = fmt.Errorf("encoder exited with error: %w (stderr: %s)",
				err, e.stderr.String())
		}
	})

	return e.closeErr
}
