package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	// Generate test audio samples (440Hz sine wave for 0.1 seconds at 44.1kHz)
	sampleRate := 44100
	duration := 0.1
	frequency := 440.0

	numSamples := int(float64(sampleRate) * duration)
	samples := make([]float32, numSamples)

	for i := 0; i < numSamples; i++ {
		ts := float64(i) / float64(sampleRate)
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*frequency*ts))
	}

	wavData, err := EncodeWAV(samples, sampleRate, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	expectedSize := 44 + len(samples)*2
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	if err := ValidateWAV(wavData); err != nil {
		t.Errorf("Generated WAV is invalid: %v", err)
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("Failed to get WAV info: %v", err)
	}

	if info.SampleRate != uint32(sampleRate) {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, info.SampleRate)
	}

	if info.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", info.Channels)
	}

	if info.BitsPerSample != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", info.BitsPerSample)
	}

	if info.NumSamples != uint32(numSamples) {
		t.Errorf("Expected %d samples, got %d", numSamples, info.NumSamples)
	}

	expectedDuration := float64(numSamples) / float64(sampleRate)
	if math.Abs(info.Duration-expectedDuration) > 0.001 {
		t.Errorf("Expected duration %.3f, got %.3f", expectedDuration, info.Duration)
	}
}

func TestEncodeWAVHeaderLayout(t *testing.T) {
	samples := []float32{0, 0, 0, 0}
	sampleRate := 8000
	channels := 2

	wavData, err := EncodeWAV(samples, sampleRate, channels)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if string(wavData[0:4]) != "RIFF" {
		t.Errorf("Bytes 0-3: expected RIFF, got %q", wavData[0:4])
	}
	if got := binary.LittleEndian.Uint32(wavData[4:8]); got != uint32(36+len(samples)*2) {
		t.Errorf("File size field: expected %d, got %d", 36+len(samples)*2, got)
	}
	if string(wavData[8:12]) != "WAVE" {
		t.Errorf("Bytes 8-11: expected WAVE, got %q", wavData[8:12])
	}
	if string(wavData[12:16]) != "fmt " {
		t.Errorf("Bytes 12-15: expected fmt chunk ID, got %q", wavData[12:16])
	}
	if got := binary.LittleEndian.Uint32(wavData[16:20]); got != 16 {
		t.Errorf("fmt chunk length: expected 16, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(wavData[20:22]); got != 1 {
		t.Errorf("Audio format tag: expected 1 (PCM), got %d", got)
	}
	if got := binary.LittleEndian.Uint16(wavData[22:24]); got != uint16(channels) {
		t.Errorf("Channel count: expected %d, got %d", channels, got)
	}
	if got := binary.LittleEndian.Uint32(wavData[24:28]); got != uint32(sampleRate) {
		t.Errorf("Sample rate: expected %d, got %d", sampleRate, got)
	}
	blockAlign := channels * 2
	if got := binary.LittleEndian.Uint32(wavData[28:32]); got != uint32(sampleRate*blockAlign) {
		t.Errorf("Byte rate: expected %d, got %d", sampleRate*blockAlign, got)
	}
	if got := binary.LittleEndian.Uint16(wavData[32:34]); got != uint16(blockAlign) {
		t.Errorf("Block align: expected %d, got %d", blockAlign, got)
	}
	if got := binary.LittleEndian.Uint16(wavData[34:36]); got != 16 {
		t.Errorf("Bits per sample: expected 16, got %d", got)
	}
	if string(wavData[36:40]) != "data" {
		t.Errorf("Bytes 36-39: expected data chunk ID, got %q", wavData[36:40])
	}
	if got := binary.LittleEndian.Uint32(wavData[40:44]); got != uint32(len(samples)*2) {
		t.Errorf("Data size field: expected %d, got %d", len(samples)*2, got)
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	original := []float32{0.5, -0.5, 0.25, -0.25, 1.0, -1.0}
	sampleRate := 22050
	channels := 2

	wavData, err := EncodeWAV(original, sampleRate, channels)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, decodedRate, decodedChannels, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decodedRate != sampleRate {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, decodedRate)
	}

	if decodedChannels != channels {
		t.Errorf("Expected %d channels, got %d", channels, decodedChannels)
	}

	if len(decoded) != len(original) {
		t.Fatalf("Expected %d samples, got %d", len(original), len(decoded))
	}

	for i, s := range original {
		if decoded[i] != PCM16Sample(s) {
			t.Errorf("Sample %d: expected %d, got %d", i, PCM16Sample(s), decoded[i])
		}
	}
}

func TestPCM16SampleBoundaries(t *testing.T) {
	cases := []struct {
		input    float32
		expected int16
	}{
		{-1.5, -32768},
		{-1.0, -32768},
		{-0.0000001, 0},
		{0, 0},
		{0.0000001, 0},
		{1.0, 32767},
		{1.5, 32767},
		{0.5, 16383},
		{-0.5, -16384},
	}

	for _, c := range cases {
		if got := PCM16Sample(c.input); got != c.expected {
			t.Errorf("PCM16Sample(%v): expected %d, got %d", c.input, c.expected, got)
		}
	}
}

func TestPCM16SampleDecodedExactly(t *testing.T) {
	inputs := []float32{-1.5, -1.0, -0.0000001, 0, 0.0000001, 1.0, 1.5}

	wavData, err := EncodeWAV(inputs, 8000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, _, _, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	for i, in := range inputs {
		if decoded[i] != PCM16Sample(in) {
			t.Errorf("Sample %d (%v): expected %d, got %d", i, in, PCM16Sample(in), decoded[i])
		}
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	if _, err := EncodeWAV(nil, 8000, 1); err == nil {
		t.Error("Expected error for empty samples, got nil")
	}

	if _, err := EncodeWAV([]float32{0.1}, 0, 1); err == nil {
		t.Error("Expected error for zero sample rate, got nil")
	}

	if _, err := EncodeWAV([]float32{0.1}, 8000, 0); err == nil {
		t.Error("Expected error for zero channels, got nil")
	}
}

func TestValidateWAV(t *testing.T) {
	wavData, err := EncodeWAV([]float32{0.1, 0.2}, 8000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if err := ValidateWAV(wavData); err != nil {
		t.Errorf("Valid WAV rejected: %v", err)
	}

	if err := ValidateWAV([]byte("too short")); err == nil {
		t.Error("Expected error for short data, got nil")
	}

	corrupted := make([]byte, len(wavData))
	copy(corrupted, wavData)
	copy(corrupted[0:4], "JUNK")
	if err := ValidateWAV(corrupted); err == nil {
		t.Error("Expected error for corrupted RIFF header, got nil")
	}
}

func TestGetWAVDuration(t *testing.T) {
	sampleRate := 16000
	samples := make([]float32, sampleRate*2) // 2 seconds of silence

	wavData, err := EncodeWAV(samples, sampleRate, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	duration, err := GetWAVDuration(wavData)
	if err != nil {
		t.Fatalf("GetWAVDuration failed: %v", err)
	}

	if math.Abs(duration-2.0) > 0.001 {
		t.Errorf("Expected duration 2.0, got %.3f", duration)
	}
}
