package process

import (
	"sync"
	"time"
)

// Handle references one launched OS process. The exit code is populated
// asynchronously by the launcher's exit observer exactly once.
type Handle struct {
	pid       int
	startedAt time.Time

	mu        sync.Mutex
	exited    bool
	exitCode  ExitCode
	stoppedAt time.Time
	done      chan struct{} // closed by MarkExited
}

// NewHandle returns a live handle for pid.
func NewHandle(pid int) *Handle {
	return &Handle{pid: pid, startedAt: time.Now(), done: make(chan struct{})}
}

func (h *Handle) PID() int { return h.pid }

func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Done is closed once the process has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// MarkExited records the exit code. Only the first call has an effect; it
// reports whether this call transitioned the handle.
func (h *Handle) MarkExited(code ExitCode) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return false
	}
	h.exited = true
	h.exitCode = code
	h.stoppedAt = time.Now()
	close(h.done)
	return true
}

func (h *Handle) Exited() bool {
	h.mu.Lock()
	v := h.exited
	h.mu.Unlock()
	return v
}

// ExitCode returns the recorded exit code; ok is false while the process runs.
func (h *Handle) ExitCode() (code ExitCode, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, h.exited
}

// StoppedAt returns the time the exit was observed, zero while running.
func (h *Handle) StoppedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stoppedAt
}
