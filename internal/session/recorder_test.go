package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/mic-capture-service/internal/audio"
	"github.com/skypro1111/mic-capture-service/internal/capture"
	"github.com/skypro1111/mic-capture-service/internal/metrics"
)

type fakeSource struct {
	blocks     chan audio.Block
	sampleRate int
	channels   int

	mu     sync.Mutex
	closed bool
}

func newFakeSource(sampleRate, channels int) *fakeSource {
	return &fakeSource{
		blocks:     make(chan audio.Block, 16),
		sampleRate: sampleRate,
		channels:   channels,
	}
}

func (f *fakeSource) Blocks() <-chan audio.Block { return f.blocks }
func (f *fakeSource) SampleRate() int            { return f.sampleRate }
func (f *fakeSource) Channels() int              { return f.channels }

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.blocks)
	}
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSource) push(t *testing.T, block audio.Block) {
	t.Helper()
	select {
	case f.blocks <- block:
	case <-time.After(time.Second):
		t.Fatal("timed out pushing block to fake source")
	}
}

type fakeAcquirer struct {
	mu      sync.Mutex
	sources []*fakeSource
	err     error
}

func (f *fakeAcquirer) ListInputDevices() ([]capture.Device, error) {
	return []capture.Device{{ID: "0", Label: "Fake Microphone"}}, nil
}

func (f *fakeAcquirer) Acquire(_ context.Context, cfg capture.SourceConfig) (capture.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	src := newFakeSource(cfg.SampleRate, cfg.Channels)
	f.sources = append(f.sources, src)
	return src, nil
}

func (f *fakeAcquirer) lastSource() *fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sources) == 0 {
		return nil
	}
	return f.sources[len(f.sources)-1]
}

func newTestRecorder(acquirer capture.Acquirer) *Recorder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMetricsWith(prometheus.NewRegistry())
	return NewRecorder(logger, m, acquirer)
}

func monoBlock(samples ...float32) audio.Block {
	return audio.Block{Channels: [][]float32{samples}}
}

func zeroBlock(frames int) audio.Block {
	return monoBlock(make([]float32, frames)...)
}

func pcmOptions() Options {
	return Options{
		SampleRate: 44100,
		Channels:   1,
		BlockSize:  4096,
		Mode:       ModePCM,
	}
}

func waitReceived(t *testing.T, r *Recorder, n uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.Info().BlocksReceived == n
	}, time.Second, time.Millisecond, "expected %d received blocks", n)
}

func TestStartRejectedWhileActive(t *testing.T) {
	acquirer := &fakeAcquirer{}
	recorder := newTestRecorder(acquirer)

	require.NoError(t, recorder.Start(context.Background(), pcmOptions()))
	defer recorder.Close()

	err := recorder.Start(context.Background(), pcmOptions())
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Len(t, acquirer.sources, 1, "rejected start must not acquire a second source")
}

func TestOperationsRejectedFromWrongState(t *testing.T) {
	recorder := newTestRecorder(&fakeAcquirer{})

	require.ErrorIs(t, recorder.Pause(), ErrInvalidState)
	require.ErrorIs(t, recorder.Resume(), ErrInvalidState)
	require.ErrorIs(t, recorder.Reset(), ErrInvalidState)

	_, err := recorder.Stop()
	require.ErrorIs(t, err, ErrInvalidState)

	assert.Equal(t, StatusIdle, recorder.Status(), "rejected operations must not change state")
}

func TestPCMRecordingThreeBlocks(t *testing.T) {
	acquirer := &fakeAcquirer{}
	recorder := newTestRecorder(acquirer)

	require.NoError(t, recorder.Start(context.Background(), pcmOptions()))
	require.Equal(t, StatusRecording, recorder.Status())

	src := acquirer.lastSource()
	for i := 0; i < 3; i++ {
		src.push(t, zeroBlock(4096))
	}
	waitReceived(t, recorder, 3)

	artifact, err := recorder.Stop()
	require.NoError(t, err)
	require.Equal(t, StatusReady, recorder.Status())

	assert.Len(t, artifact.Data, 44+3*4096*2)
	assert.Equal(t, "audio/wav", artifact.MIME)
	assert.Regexp(t, `^recording-\d{8}-\d{6}\.wav$`, artifact.Filename)
	assert.True(t, src.isClosed(), "input source must be released on stop")

	// Three blocks of silence: every data byte is zero
	for i, b := range artifact.Data[44:] {
		if b != 0 {
			t.Fatalf("expected zero sample byte at offset %d, got 0x%02x", i, b)
		}
	}

	info, err := audio.GetWAVInfo(artifact.Data)
	require.NoError(t, err)
	assert.Equal(t, uint32(44100), info.SampleRate)
	assert.Equal(t, uint16(1), info.Channels)
	assert.Equal(t, uint32(3*4096), info.NumSamples)
}

func TestStopWithZeroBlocksFailsEmpty(t *testing.T) {
	acquirer := &fakeAcquirer{}
	recorder := newTestRecorder(acquirer)

	require.NoError(t, recorder.Start(context.Background(), pcmOptions()))

	artifact, err := recorder.Stop()
	require.ErrorIs(t, err, ErrEmptyRecording)

	assert.Nil(t, artifact)
	assert.Nil(t, recorder.Artifact())
	assert.Equal(t, StatusFailed, recorder.Status())
	assert.NotEmpty(t, recorder.Info().FailureReason)
	assert.True(t, acquirer.lastSource().isClosed(), "source must be released even on failed finalize")
}

func TestPauseDiscardsAndResumeKeepsOrder(t *testing.T) {
	acquirer := &fakeAcquirer{}
	recorder := newTestRecorder(acquirer)

	require.NoError(t, recorder.Start(context.Background(), pcmOptions()))
	src := acquirer.lastSource()

	src.push(t, monoBlock(0.25, 0.5))
	waitReceived(t, recorder, 1)

	require.NoError(t, recorder.Pause())
	require.Equal(t, StatusPaused, recorder.Status())

	// Block arriving while paused is discarded, not accumulated
	src.push(t, monoBlock(0.99, 0.99))
	require.Eventually(t, func() bool {
		return recorder.Info().BlocksDiscarded == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, recorder.Resume())
	require.Equal(t, StatusRecording, recorder.Status())

	src.push(t, monoBlock(-0.5, -0.25))
	waitReceived(t, recorder, 2)

	artifact, err := recorder.Stop()
	require.NoError(t, err)

	samples, _, _, err := audio.DecodeWAV(artifact.Data)
	require.NoError(t, err)

	expected := []float32{0.25, 0.5, -0.5, -0.25}
	require.Len(t, samples, len(expected))
	for i, s := range expected {
		assert.Equal(t, audio.PCM16Sample(s), samples[i], "sample %d", i)
	}
}

func TestElapsedFrozenAcrossPause(t *testing.T) {
	acquirer := &fakeAcquirer{}
	recorder := newTestRecorder(acquirer)

	require.NoError(t, recorder.Start(context.Background(), pcmOptions()))
	defer recorder.Close()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, recorder.Pause())
	beforePause := recorder.Elapsed()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, recorder.Resume())
	afterResume := recorder.Elapsed()

	assert.InDelta(t, beforePause.Seconds(), afterResume.Seconds(), 0.02)
}

func TestAcquisitionFailureFailsSession(t *testing.T) {
	acquirer := &fakeAcquirer{err: capture.ErrDeviceUnavailable}
	recorder := newTestRecorder(acquirer)

	err := recorder.Start(context.Background(), pcmOptions())
	require.ErrorIs(t, err, capture.ErrDeviceUnavailable)

	assert.Equal(t, StatusFailed, recorder.Status())
	assert.NotEmpty(t, recorder.Info().FailureReason)
	assert.Nil(t, recorder.Artifact())
}

func TestEncoderUnavailableReleasesSource(t *testing.T) {
	acquirer := &fakeAcquirer{}
	recorder := newTestRecorder(acquirer)

	opts := pcmOptions()
	opts.Mode = ModeCompressed
	opts.Encoder = capture.EncoderConfig{Command: "definitely-not-a-real-encoder"}

	err := recorder.Start(context.Background(), opts)
	require.ErrorIs(t, err, capture.ErrEncoderUnavailable)

	assert.Equal(t, StatusFailed, recorder.Status())
	assert.True(t, acquirer.lastSource().isClosed(),
		"acquired stream must be released when encoder construction fails")
}

func TestResetReturnsToIdleAndAllowsRestart(t *testing.T) {
	acquirer := &fakeAcquirer{}
	recorder := newTestRecorder(acquirer)

	require.NoError(t, recorder.Start(context.Background(), pcmOptions()))
	_, err := recorder.Stop()
	require.ErrorIs(t, err, ErrEmptyRecording)

	require.NoError(t, recorder.Reset())
	assert.Equal(t, StatusIdle, recorder.Status())
	assert.Nil(t, recorder.Artifact())
	assert.Empty(t, recorder.Info().FailureReason)
	assert.Zero(t, recorder.Elapsed())

	// A fresh session starts cleanly after reset
	require.NoError(t, recorder.Start(context.Background(), pcmOptions()))
	acquirer.lastSource().push(t, zeroBlock(128))
	waitReceived(t, recorder, 1)

	artifact, err := recorder.Stop()
	require.NoError(t, err)
	assert.Len(t, artifact.Data, 44+128*2)
}

func TestCloseTearsDownAbandonedSession(t *testing.T) {
	acquirer := &fakeAcquirer{}
	recorder := newTestRecorder(acquirer)

	require.NoError(t, recorder.Start(context.Background(), pcmOptions()))
	src := acquirer.lastSource()
	src.push(t, zeroBlock(128))
	waitReceived(t, recorder, 1)

	recorder.Close()

	assert.Equal(t, StatusFailed, recorder.Status())
	assert.Nil(t, recorder.Artifact())
	assert.True(t, src.isClosed(), "abandoned session must release the input source")

	// Idempotent
	recorder.Close()

	require.NoError(t, recorder.Reset())
	assert.Equal(t, StatusIdle, recorder.Status())
}

func TestOnTickReceivesElapsed(t *testing.T) {
	acquirer := &fakeAcquirer{}
	recorder := newTestRecorder(acquirer)

	ticks := make(chan time.Duration, 16)
	opts := pcmOptions()
	opts.TickInterval = 5 * time.Millisecond
	opts.OnTick = func(elapsed time.Duration) {
		select {
		case ticks <- elapsed:
		default:
		}
	}

	require.NoError(t, recorder.Start(context.Background(), opts))
	defer recorder.Close()

	select {
	case elapsed := <-ticks:
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	case <-time.After(time.Second):
		t.Fatal("tick callback never fired")
	}
}
