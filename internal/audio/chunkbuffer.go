package audio

import (
	"fmt"
	"sync"
)

// DefaultContainerMIME is used when no chunk reported a MIME type.
const DefaultContainerMIME = "audio/ogg"

// EncodedChunk is an opaque blob emitted by an external streaming encoder,
// tagged with the container MIME type it belongs to.
type EncodedChunk struct {
	Data []byte
	MIME string
}

// ChunkBuffer accumulates encoded chunks for the compressed capture path.
// Zero-length chunks are dropped on arrival. Concatenate seals the buffer
// the same way SampleBuffer.Flatten does.
type ChunkBuffer struct {
	chunks []EncodedChunk
	size   int
	mime   string // MIME of the first non-empty chunk
	sealed bool

	mu sync.Mutex
}

// ChunkBufferStats represents buffer statistics for monitoring
type ChunkBufferStats struct {
	Chunks int    `json:"chunks"`
	Bytes  int    `json:"bytes"`
	MIME   string `json:"mime,omitempty"`
	Sealed bool   `json:"sealed"`
}

// NewChunkBuffer creates an empty chunk buffer.
func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{
		chunks: make([]EncodedChunk, 0, 16),
	}
}

// Append stores one encoded chunk in arrival order. Empty chunks are
// silently dropped. Appending to a sealed buffer is rejected.
func (b *ChunkBuffer) Append(chunk EncodedChunk) error {
	if len(chunk.Data) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return fmt.Errorf("buffer is sealed, chunk discarded")
	}

	if b.mime == "" {
		b.mime = chunk.MIME
	}

	b.chunks = append(b.chunks, chunk)
	b.size += len(chunk.Data)

	return nil
}

// Concatenate seals the buffer and returns all chunk bytes joined in arrival
// order, together with the MIME type of the first non-empty chunk
// (DefaultContainerMIME if none was observed).
func (b *ChunkBuffer) Concatenate() ([]byte, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sealed = true

	out := make([]byte, 0, b.size)
	for _, chunk := range b.chunks {
		out = append(out, chunk.Data...)
	}

	mime := b.mime
	if mime == "" {
		mime = DefaultContainerMIME
	}

	return out, mime
}

// Len returns the total number of buffered bytes.
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// ChunkCount returns the number of buffered chunks.
func (b *ChunkBuffer) ChunkCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Stats returns a snapshot of the buffer state for monitoring.
func (b *ChunkBuffer) Stats() ChunkBufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return ChunkBufferStats{
		Chunks: len(b.chunks),
		Bytes:  b.size,
		MIME:   b.mime,
		Sealed: b.sealed,
	}
}
