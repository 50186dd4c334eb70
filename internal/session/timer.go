package session

import (
	"context"
	"sync"
	"time"
)

// Timer tracks elapsed recording time. It advances only while running,
// freezes across Pause, and re-bases its start reference on Resume so the
// elapsed value continues seamlessly regardless of how long the pause lasted.
type Timer struct {
	mu          sync.Mutex
	base        time.Time
	accumulated time.Duration
	running     bool

	tickCancel context.CancelFunc
	tickWG     sync.WaitGroup
}

// NewTimer creates a stopped timer at zero elapsed.
func NewTimer() *Timer {
	return &Timer{}
}

// Start resets the timer to zero and begins advancing.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.accumulated = 0
	t.base = time.Now()
	t.running = true
}

// Pause freezes the elapsed value. Pausing a non-running timer is a no-op.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		t.accumulated += time.Since(t.base)
		t.running = false
	}
}

// Resume continues advancing from the frozen elapsed value.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		t.base = time.Now()
		t.running = true
	}
}

// Stop freezes the timer and returns the final elapsed value.
func (t *Timer) Stop() time.Duration {
	t.Pause()

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accumulated
}

// Elapsed returns the current elapsed value.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return t.accumulated + time.Since(t.base)
	}
	return t.accumulated
}

// StartTicking invokes fn with the current elapsed value at the given
// interval until StopTicking is called. Only one tick loop may be active.
func (t *Timer) StartTicking(interval time.Duration, fn func(elapsed time.Duration)) {
	ctx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.tickCancel = cancel
	t.mu.Unlock()

	t.tickWG.Add(1)
	go func() {
		defer t.tickWG.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(t.Elapsed())
			}
		}
	}()
}

// StopTicking cancels the tick loop and waits for it to exit, guaranteeing
// that no tick is observed after it returns.
func (t *Timer) StopTicking() {
	t.mu.Lock()
	cancel := t.tickCancel
	t.tickCancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		t.tickWG.Wait()
	}
}
