package session

import (
	"fmt"
	"sync"

	"github.com/skypro1111/mic-capture-service/internal/audio"
	"github.com/skypro1111/mic-capture-service/internal/capture"
)

// activeCapture is one open capture path. The state machine is written once
// against this interface and stays ignorant of whether raw samples or an
// external encoder back it. finalize seals the path's buffer and produces
// the output bytes; abort releases the path without producing output.
type activeCapture interface {
	deliver(block audio.Block) error
	pause()
	resume()
	finalize() (data []byte, mime string, err error)
	abort()
}

// pcmCapture buffers raw sample blocks and encodes them to WAV at finalize.
type pcmCapture struct {
	buffer     *audio.SampleBuffer
	sampleRate int
	channels   int
}

func newPCMCapture(sampleRate, channels int) *pcmCapture {
	return &pcmCapture{
		buffer:     audio.NewSampleBuffer(channels),
		sampleRate: sampleRate,
		channels:   channels,
	}
}

func (p *pcmCapture) deliver(block audio.Block) error {
	return p.buffer.Append(block)
}

// Raw capture has nothing to gate: the session discards blocks while paused.
func (p *pcmCapture) pause()  {}
func (p *pcmCapture) resume() {}

func (p *pcmCapture) finalize() ([]byte, string, error) {
	samples := p.buffer.Flatten()
	if len(samples) == 0 {
		return nil, "", ErrEmptyRecording
	}

	data, err := audio.EncodeWAV(samples, p.sampleRate, p.channels)
	if err != nil {
		return nil, "", fmt.Errorf("encoding WAV: %w", err)
	}

	return data, "audio/wav", nil
}

func (p *pcmCapture) abort() {
	p.buffer.Flatten() // seal and discard
}

// encodedCapture feeds blocks to an external stream encoder and collects its
// opaque output chunks. A single drain goroutine consumes the encoder output
// in arrival order; it exits when the encoder is closed and its channel
// drains, so finalize sees every chunk.
type encodedCapture struct {
	encoder *capture.StreamEncoder
	buffer  *audio.ChunkBuffer
	drainWG sync.WaitGroup
}

func newEncodedCapture(encoder *capture.StreamEncoder) *encodedCapture {
	c := &encodedCapture{
		encoder: encoder,
		buffer:  audio.NewChunkBuffer(),
	}

	c.drainWG.Add(1)
	go func() {
		defer c.drainWG.Done()
		for chunk := range encoder.Chunks() {
			// Append only fails once the buffer is sealed, which cannot
			// happen before this loop ends.
			_ = c.buffer.Append(chunk)
		}
	}()

	return c
}

func (c *encodedCapture) deliver(block audio.Block) error {
	return c.encoder.WriteBlock(block)
}

func (c *encodedCapture) pause() {
	c.encoder.Pause()
}

func (c *encodedCapture) resume() {
	c.encoder.Resume()
}

func (c *encodedCapture) finalize() ([]byte, string, error) {
	err := c.encoder.Close()
	c.drainWG.Wait()

	data, mime := c.buffer.Concatenate()
	if err != nil {
		return nil, "", fmt.Errorf("closing encoder: %w", err)
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyRecording
	}

	return data, mime, nil
}

func (c *encodedCapture) abort() {
	_ = c.encoder.Close()
	c.drainWG.Wait()
	c.buffer.Concatenate() // seal and discard
}
