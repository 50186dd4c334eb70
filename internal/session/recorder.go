package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/mic-capture-service/internal/audio"
	"github.com/skypro1111/mic-capture-service/internal/capture"
	"github.com/skypro1111/mic-capture-service/internal/metrics"
)

var (
	// ErrInvalidState indicates an operation was called from a status that
	// does not allow it. The operation has no side effects in that case.
	ErrInvalidState = errors.New("operation not valid in current session state")

	// ErrEmptyRecording indicates finalize ran with zero captured audio.
	ErrEmptyRecording = errors.New("no audio captured")
)

// Mode selects the capture path of a recording session.
type Mode int

const (
	// ModePCM buffers raw samples and finalizes to a lossless WAV file.
	ModePCM Mode = iota
	// ModeCompressed streams samples through an external encoder and
	// finalizes to its compressed container.
	ModeCompressed
)

func (m Mode) String() string {
	switch m {
	case ModePCM:
		return "pcm"
	case ModeCompressed:
		return "compressed"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMode parses a mode name as it appears in configuration.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "pcm", "wav":
		return ModePCM, nil
	case "compressed":
		return ModeCompressed, nil
	default:
		return ModePCM, fmt.Errorf("unknown recording mode %q", s)
	}
}

// Status is a recording session lifecycle state.
type Status int

const (
	StatusIdle Status = iota
	StatusAcquiring
	StatusRecording
	StatusPaused
	StatusFinalizing
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusAcquiring:
		return "acquiring"
	case StatusRecording:
		return "recording"
	case StatusPaused:
		return "paused"
	case StatusFinalizing:
		return "finalizing"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Options configures one recording session.
type Options struct {
	DeviceID       string
	SampleRate     int
	Channels       int
	BlockSize      int
	Mode           Mode
	Encoder        capture.EncoderConfig
	FilenamePrefix string

	// TickInterval enables the elapsed-time tick loop; zero disables it.
	TickInterval time.Duration
	// OnTick is invoked from the tick loop with the current elapsed time.
	OnTick func(elapsed time.Duration)
}

// Recorder is the recording session state machine. At most one session is
// active at a time: Start is rejected unless the recorder is Idle.
//
// Blocks from the input source are consumed by a single processing loop, so
// buffer mutation is ordered. Stop establishes the finalize barrier: the
// loop is stopped and drained before any buffer is sealed, and blocks that
// arrive while not Recording are discarded.
type Recorder struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	acquirer capture.Acquirer

	mu              sync.Mutex
	id              string
	status          Status
	opts            Options
	source          capture.Source
	active          activeCapture
	timer           *Timer
	artifact        *Artifact
	failure         string
	startTime       time.Time
	blocksReceived  uint64
	blocksDiscarded uint64

	loopCancel context.CancelFunc
	loopWG     sync.WaitGroup
}

// SessionInfo is a snapshot of the session for monitoring and APIs.
type SessionInfo struct {
	ID              string    `json:"id,omitempty"`
	Status          string    `json:"status"`
	Mode            string    `json:"mode"`
	DeviceID        string    `json:"device_id,omitempty"`
	SampleRate      int       `json:"sample_rate,omitempty"`
	Channels        int       `json:"channels,omitempty"`
	StartTime       time.Time `json:"start_time"`
	ElapsedSeconds  float64   `json:"elapsed_seconds"`
	BlocksReceived  uint64    `json:"blocks_received"`
	BlocksDiscarded uint64    `json:"blocks_discarded"`
	ArtifactBytes   int       `json:"artifact_bytes,omitempty"`
	ArtifactMIME    string    `json:"artifact_mime,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	FailureReason   string    `json:"failure_reason,omitempty"`
}

// NewRecorder creates an idle recorder.
func NewRecorder(logger *slog.Logger, m *metrics.Metrics, acquirer capture.Acquirer) *Recorder {
	return &Recorder{
		logger:   logger,
		metrics:  m,
		acquirer: acquirer,
		status:   StatusIdle,
		timer:    NewTimer(),
	}
}

// Start acquires the input source, opens the capture path for the chosen
// mode, and begins recording. Valid only from Idle; starting over an active
// session is rejected without side effects. On failure the session moves to
// Failed with a human-readable reason and no stream is left open.
func (r *Recorder) Start(ctx context.Context, opts Options) error {
	r.mu.Lock()
	if r.status != StatusIdle {
		status := r.status
		r.mu.Unlock()
		return fmt.Errorf("%w: start requires idle, session is %s", ErrInvalidState, status)
	}

	r.id = uuid.NewString()
	r.status = StatusAcquiring
	r.opts = opts
	r.startTime = time.Now()
	r.artifact = nil
	r.failure = ""
	r.blocksReceived = 0
	r.blocksDiscarded = 0
	r.mu.Unlock()

	r.metrics.SessionsStarted.Inc()
	r.logger.Info("Recording session starting",
		slog.String("session_id", r.id),
		slog.String("mode", opts.Mode.String()),
		slog.String("device_id", opts.DeviceID),
		slog.Int("sample_rate", opts.SampleRate),
		slog.Int("channels", opts.Channels),
	)

	src, err := r.acquirer.Acquire(ctx, capture.SourceConfig{
		DeviceID:   opts.DeviceID,
		SampleRate: opts.SampleRate,
		Channels:   opts.Channels,
		BlockSize:  opts.BlockSize,
	})
	if err != nil {
		r.fail(fmt.Sprintf("acquiring input source: %v", err))
		return err
	}

	active, err := r.openCapturePath(src, opts)
	if err != nil {
		r.releaseSource(src)
		r.fail(fmt.Sprintf("opening capture path: %v", err))
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.source = src
	r.active = active
	r.status = StatusRecording
	r.loopCancel = cancel
	r.timer = NewTimer()
	r.timer.Start()
	timer := r.timer
	r.mu.Unlock()

	r.loopWG.Add(1)
	go r.consumeLoop(loopCtx, src)

	if opts.TickInterval > 0 {
		timer.StartTicking(opts.TickInterval, func(elapsed time.Duration) {
			r.metrics.ElapsedSeconds.Set(elapsed.Seconds())
			if opts.OnTick != nil {
				opts.OnTick(elapsed)
			}
		})
	}

	r.metrics.ActiveSessions.Set(1)
	r.logger.Info("Recording started",
		slog.String("session_id", r.id),
		slog.Int("sample_rate", src.SampleRate()),
		slog.Int("channels", src.Channels()),
	)

	return nil
}

// openCapturePath builds the mode's activeCapture variant against the
// negotiated stream parameters.
func (r *Recorder) openCapturePath(src capture.Source, opts Options) (activeCapture, error) {
	switch opts.Mode {
	case ModePCM:
		return newPCMCapture(src.SampleRate(), src.Channels()), nil

	case ModeCompressed:
		encCfg := opts.Encoder
		encCfg.SampleRate = src.SampleRate()
		encCfg.Channels = src.Channels()

		encoder, err := capture.NewStreamEncoder(encCfg, r.logger)
		if err != nil {
			return nil, err
		}
		return newEncodedCapture(encoder), nil

	default:
		return nil, fmt.Errorf("unknown recording mode %d", opts.Mode)
	}
}

// consumeLoop is the single event-processing loop: every delivered block is
// handled here, in arrival order, until the loop is cancelled or the source
// closes its channel.
func (r *Recorder) consumeLoop(ctx context.Context, src capture.Source) {
	defer r.loopWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-src.Blocks():
			if !ok {
				return
			}
			r.handleBlock(block)
		}
	}
}

// handleBlock appends one delivered block, or discards it when the session
// is not actively Recording (paused, finalizing, or already stopped).
func (r *Recorder) handleBlock(block audio.Block) {
	r.mu.Lock()
	status := r.status
	active := r.active
	r.mu.Unlock()

	if status != StatusRecording || active == nil {
		r.discardBlock()
		return
	}

	if err := active.deliver(block); err != nil {
		r.logger.Warn("Block delivery failed, discarding",
			slog.String("session_id", r.id),
			slog.String("error", err.Error()),
		)
		r.discardBlock()
		return
	}

	r.mu.Lock()
	r.blocksReceived++
	r.mu.Unlock()
	r.metrics.BlocksReceived.Inc()
}

func (r *Recorder) discardBlock() {
	r.mu.Lock()
	r.blocksDiscarded++
	r.mu.Unlock()
	r.metrics.BlocksDiscarded.Inc()
}

// Pause freezes the timer and gates the capture path. Valid only from
// Recording. Blocks delivered while paused are discarded, not accumulated.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusRecording {
		return fmt.Errorf("%w: pause requires recording, session is %s", ErrInvalidState, r.status)
	}

	r.status = StatusPaused
	r.timer.Pause()
	r.active.pause()

	r.logger.Info("Recording paused",
		slog.String("session_id", r.id),
		slog.Duration("elapsed", r.timer.Elapsed()),
	)

	return nil
}

// Resume continues a paused session. The timer re-bases so elapsed time
// carries on from where Pause left it.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusPaused {
		return fmt.Errorf("%w: resume requires paused, session is %s", ErrInvalidState, r.status)
	}

	r.status = StatusRecording
	r.timer.Resume()
	r.active.resume()

	r.logger.Info("Recording resumed",
		slog.String("session_id", r.id),
		slog.Duration("elapsed", r.timer.Elapsed()),
	)

	return nil
}

// Stop finalizes the session. Valid from Recording or Paused. The delivery
// loop is drained and the input stream released before the capture path is
// sealed, so no block can land after finalize begins. The acquired hardware
// is released on every outcome; a session that captured nothing ends Failed
// with ErrEmptyRecording and a nil artifact.
func (r *Recorder) Stop() (*Artifact, error) {
	r.mu.Lock()
	if r.status != StatusRecording && r.status != StatusPaused {
		status := r.status
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: stop requires recording or paused, session is %s", ErrInvalidState, status)
	}

	r.status = StatusFinalizing
	src := r.source
	active := r.active
	timer := r.timer
	cancel := r.loopCancel
	opts := r.opts
	r.mu.Unlock()

	timer.StopTicking()
	elapsed := timer.Stop()

	// Delivery barrier: no block handling is in flight once the loop exits.
	cancel()
	r.loopWG.Wait()

	r.releaseSource(src)

	data, mime, err := active.finalize()
	r.metrics.SessionDuration.Observe(elapsed.Seconds())
	r.metrics.ActiveSessions.Set(0)

	if err != nil {
		r.fail(fmt.Sprintf("finalizing recording: %v", err))
		return nil, err
	}

	artifact := &Artifact{
		Data:     data,
		MIME:     mime,
		Filename: artifactFilename(opts.FilenamePrefix, mime, time.Now()),
	}

	r.mu.Lock()
	r.artifact = artifact
	r.status = StatusReady
	r.source = nil
	r.mu.Unlock()

	r.metrics.SessionsCompleted.Inc()
	r.metrics.ArtifactBytes.Observe(float64(len(data)))

	r.logger.Info("Recording finalized",
		slog.String("session_id", r.id),
		slog.Duration("elapsed", elapsed),
		slog.String("mime", mime),
		slog.String("filename", artifact.Filename),
		slog.Int("bytes", len(data)),
	)

	return artifact, nil
}

// Reset clears the finished session and returns to Idle. Valid only from
// Ready or Failed.
func (r *Recorder) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusReady && r.status != StatusFailed {
		return fmt.Errorf("%w: reset requires ready or failed, session is %s", ErrInvalidState, r.status)
	}

	r.logger.Info("Session reset", slog.String("session_id", r.id))

	r.id = ""
	r.status = StatusIdle
	r.artifact = nil
	r.failure = ""
	r.blocksReceived = 0
	r.blocksDiscarded = 0
	r.timer = NewTimer()

	return nil
}

// Close tears down an abandoned session: the delivery loop, input stream,
// and capture path are released without producing an artifact. Safe to call
// in any state.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.status != StatusRecording && r.status != StatusPaused {
		r.mu.Unlock()
		return
	}

	r.status = StatusFailed
	r.failure = "session abandoned"
	src := r.source
	active := r.active
	timer := r.timer
	cancel := r.loopCancel
	r.source = nil
	r.artifact = nil
	r.mu.Unlock()

	r.logger.Info("Tearing down abandoned session", slog.String("session_id", r.id))

	timer.StopTicking()
	timer.Stop()
	cancel()
	r.loopWG.Wait()
	r.releaseSource(src)
	active.abort()

	r.metrics.ActiveSessions.Set(0)
	r.metrics.SessionsFailed.Inc()
}

// Status returns the current lifecycle state.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Elapsed returns the current recording duration.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	timer := r.timer
	r.mu.Unlock()
	return timer.Elapsed()
}

// Artifact returns the finalized output, or nil unless the session is Ready.
func (r *Recorder) Artifact() *Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.artifact
}

// Info returns a monitoring snapshot of the session.
func (r *Recorder) Info() SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := SessionInfo{
		ID:              r.id,
		Status:          r.status.String(),
		Mode:            r.opts.Mode.String(),
		DeviceID:        r.opts.DeviceID,
		SampleRate:      r.opts.SampleRate,
		Channels:        r.opts.Channels,
		StartTime:       r.startTime,
		ElapsedSeconds:  r.timer.Elapsed().Seconds(),
		BlocksReceived:  r.blocksReceived,
		BlocksDiscarded: r.blocksDiscarded,
		FailureReason:   r.failure,
	}

	if r.artifact != nil {
		info.ArtifactBytes = len(r.artifact.Data)
		info.ArtifactMIME = r.artifact.MIME
		info.Filename = r.artifact.Filename
	}

	return info
}

// fail moves the session to Failed with a human-readable reason.
func (r *Recorder) fail(reason string) {
	r.mu.Lock()
	r.status = StatusFailed
	r.failure = reason
	r.artifact = nil
	r.source = nil
	r.mu.Unlock()

	r.metrics.SessionsFailed.Inc()
	r.metrics.ActiveSessions.Set(0)

	r.logger.Error("Recording session failed",
		slog.String("session_id", r.id),
		slog.String("reason", reason),
	)
}

// releaseSource closes the input stream. Release failures are logged and
// swallowed: they must never block session teardown.
func (r *Recorder) releaseSource(src capture.Source) {
	if src == nil {
		return
	}
	if err := src.Close(); err != nil {
		r.logger.Warn("Failed to release input source",
			slog.String("session_id", r.id),
			slog.String("error", err.Error()),
		)
	}
}
