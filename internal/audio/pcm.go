package audio

// Block is one fixed-size delivery of raw float32 samples from the capture
// layer, one plane per channel. All planes have equal length.
type Block struct {
	Channels [][]float32
}

// ChannelCount returns the number of channels in the block.
func (b Block) ChannelCount() int {
	return len(b.Channels)
}

// Frames returns the number of sample frames (per-channel samples) in the block.
func (b Block) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Interleave merges per-channel sample planes into a single flat slice in
// channel-minor order: for each frame, every channel's value is written
// before advancing to the next frame.
func Interleave(planes [][]float32) []float32 {
	if len(planes) == 0 {
		return nil
	}
	if len(planes) == 1 {
		out := make([]float32, len(planes[0]))
		copy(out, planes[0])
		return out
	}

	frames := len(planes[0])
	out := make([]float32, 0, frames*len(planes))
	for i := 0; i < frames; i++ {
		for _, plane := range planes {
			out = append(out, plane[i])
		}
	}
	return out
}

// PCM16Sample converts one float32 sample to 16-bit linear PCM. The input is
// clamped to [-1.0, 1.0], then negative values scale by 32768 and
// non-negative values by 32767, truncating toward zero.
func PCM16Sample(s float32) int16 {
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// FloatsToPCM16 converts a flat float32 sample sequence to 16-bit PCM.
func FloatsToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = PCM16Sample(s)
	}
	return out
}

// PCM16Bytes serializes 16-bit PCM samples to little-endian bytes.
func PCM16Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}
