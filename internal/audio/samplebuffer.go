package audio

import (
	"fmt"
	"sync"
)

// SampleBuffer accumulates raw sample blocks for the PCM capture path.
// Blocks are retained in arrival order; multi-channel blocks are interleaved
// channel-minor at append time so every stored block is already flat.
// Flatten seals the buffer: appends after sealing are rejected, which gives
// finalize its immutability barrier.
type SampleBuffer struct {
	channels int

	blocks  [][]float32
	samples int
	sealed  bool

	mu sync.Mutex
}

// SampleBufferStats represents buffer statistics for monitoring
type SampleBufferStats struct {
	Blocks   int  `json:"blocks"`
	Samples  int  `json:"samples"`
	Channels int  `json:"channels"`
	Sealed   bool `json:"sealed"`
}

// NewSampleBuffer creates a sample buffer for the given channel count.
func NewSampleBuffer(channels int) *SampleBuffer {
	return &SampleBuffer{
		channels: channels,
		blocks:   make([][]float32, 0, 64),
	}
}

// Append stores one delivered block. Blocks with more than one channel are
// interleaved before storage; single-channel blocks are copied unmodified.
// Appending to a sealed buffer is rejected.
func (b *SampleBuffer) Append(block Block) error {
	if block.ChannelCount() == 0 || block.Frames() == 0 {
		return fmt.Errorf("cannot append empty block")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return fmt.Errorf("buffer is sealed, block discarded")
	}

	flat := Interleave(block.Channels)
	b.blocks = append(b.blocks, flat)
	b.samples += len(flat)

	return nil
}

// Flatten seals the buffer and returns every stored sample as one flat
// sequence in arrival order. A buffer with zero blocks returns an empty
// slice; the caller decides how to surface the empty-recording condition.
func (b *SampleBuffer) Flatten() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sealed = true

	out := make([]float32, 0, b.samples)
	for _, block := range b.blocks {
		out = append(out, block...)
	}
	return out
}

// Len returns the total number of stored samples.
func (b *SampleBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samples
}

// BlockCount returns the number of stored blocks.
func (b *SampleBuffer) BlockCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blocks)
}

// Channels returns the channel count the buffer was created for.
func (b *SampleBuffer) Channels() int {
	return b.channels
}

// Stats returns a snapshot of the buffer state for monitoring.
func (b *SampleBuffer) Stats() SampleBufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return SampleBufferStats{
		Blocks:   len(b.blocks),
		Samples:  b.samples,
		Channels: b.channels,
		Sealed:   b.sealed,
	}
}
