package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/svcmon/internal/detector"
	"github.com/loykin/svcmon/internal/metrics"
	"github.com/loykin/svcmon/internal/process"
)

// Default race timings.
const (
	DefaultProbeInterval = 500 * time.Millisecond
	DefaultProbeTimeout  = 15 * time.Second
	DefaultCheckInterval = 30 * time.Second
)

// Locator finds the supervised process.
type Locator interface {
	Find(ctx context.Context, name, path string) (*detector.Match, error)
}

// Launcher starts a new instance and reports its exit through onExit.
type Launcher interface {
	Start(path string, onExit process.ExitFunc) (*process.Handle, error)
}

// Dismisser answers a blocking security dialog; one call is one attempt.
type Dismisser interface {
	TryDismiss() bool
}

// Options configures a Supervisor.
type Options struct {
	Name          string
	Path          string
	CheckInterval time.Duration
	ProbeInterval time.Duration // cadence of dialog probes while a launch is pending
	ProbeTimeout  time.Duration // ceiling for dialog probing; the launch itself is not bounded
}

// Supervisor keeps one executable running. It owns the single managed
// process slot; the slot is written by a successful relaunch and cleared by
// the exit observer, both under mu.
type Supervisor struct {
	opts      Options
	locator   Locator
	launcher  Launcher
	dismisser Dismisser
	log       *slog.Logger

	mu          sync.Mutex
	current     *process.Handle
	recovering  bool
	state       State
	lastCheck   time.Time
	lastExit    *ExitRecord
	pendingExit *ExitRecord // observed by the exit observer, not yet reported by a check
	stats       counters
}

type launchResult struct {
	h   *process.Handle
	err error
}

// New creates a supervisor. Zero timings fall back to the defaults.
func New(opts Options, loc Locator, l Launcher, d Dismisser, log *slog.Logger) *Supervisor {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultCheckInterval
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = DefaultProbeInterval
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		opts:      opts,
		locator:   loc,
		launcher:  l,
		dismisser: d,
		log:       log.With("name", opts.Name),
		state:     StateIdle,
	}
}

// Run performs supervision cycles spaced by the check interval until ctx is
// done. No fault inside a cycle stops the loop.
func (s *Supervisor) Run(ctx context.Context) {
	s.log.Info("Watching executable", "path", s.opts.Path, "interval", s.opts.CheckInterval)
	for {
		if err := s.Cycle(ctx); err != nil {
			s.mu.Lock()
			s.stats.faults++
			s.mu.Unlock()
			s.log.Error("Supervision cycle failed", "error", err)
		}
		t := time.NewTimer(s.opts.CheckInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			s.setState(StateIdle)
			s.log.Info("Supervisor stopped")
			return
		case <-t.C:
		}
	}
}

// Cycle runs one check and, when the process is missing or exited, one
// recovery. Panics are converted into errors.
func (s *Supervisor) Cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	s.setState(StateChecking)
	m, err := s.locator.Find(ctx, s.opts.Name, s.opts.Path)
	s.mu.Lock()
	s.lastCheck = time.Now()
	s.stats.checks++
	s.mu.Unlock()
	if err != nil {
		metrics.IncCheck("error")
		return fmt.Errorf("locate %s: %w", s.opts.Name, err)
	}

	if m != nil && !m.Exited {
		metrics.IncCheck("healthy")
		s.mu.Lock()
		s.pendingExit = nil
		s.mu.Unlock()
		s.log.Info("Process is running", "pid", m.PID)
		s.setState(StateHealthy)
		return nil
	}

	if m != nil {
		metrics.IncCheck("exited")
	} else {
		metrics.IncCheck("missing")
	}
	s.reportExit(m)
	s.log.Warn("Process is not running, starting it", "path", s.opts.Path)
	s.recoverProcess()
	return nil
}

// reportExit logs the exit code of the process that went away, if known.
func (s *Supervisor) reportExit(m *detector.Match) {
	s.mu.Lock()
	rec := s.pendingExit
	s.pendingExit = nil
	cur := s.current
	s.mu.Unlock()

	if m != nil && cur != nil && int(m.PID) == cur.PID() {
		if code, ok := cur.ExitCode(); ok {
			rec = newExitRecord(cur.PID(), code, cur.StoppedAt())
		}
	}
	switch {
	case rec != nil:
		s.log.Warn("Process exited", "pid", rec.PID, "code", rec.Code, "reason", rec.Reason)
	case m != nil:
		s.log.Warn("Process exited", "pid", m.PID, "code", "unavailable")
	}
}

// recoverProcess launches the executable on its own goroutine and probes for
// security dialogs until the launch resolves or the probe ceiling is hit. The
// launch is always awaited, even past the ceiling.
func (s *Supervisor) recoverProcess() {
	s.setRecovering(true)
	defer s.setRecovering(false)

	started := time.Now()
	done := make(chan launchResult, 1)
	go func() {
		var res launchResult
		defer func() {
			if r := recover(); r != nil {
				res = launchResult{err: fmt.Errorf("launch panic: %v", r)}
			}
			done <- res
		}()
		res.h, res.err = s.launcher.Start(s.opts.Path, s.handleExit)
	}()

	res, resolved := s.probeUntil(done)
	if !resolved {
		s.log.Warn("Dialog probing stopped, still waiting for launch", "after", s.opts.ProbeTimeout)
		res = <-done
	}
	metrics.ObserveLaunchDuration(time.Since(started).Seconds())
	s.finishLaunch(res)
}

func (s *Supervisor) probeUntil(done <-chan launchResult) (launchResult, bool) {
	ceiling := time.NewTimer(s.opts.ProbeTimeout)
	defer ceiling.Stop()
	ticker := time.NewTicker(s.opts.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case res := <-done:
			return res, true
		default:
		}
		s.probe()
		select {
		case res := <-done:
			return res, true
		case <-ceiling.C:
			return launchResult{}, false
		case <-ticker.C:
		}
	}
}

// probe makes one dismissal attempt. Probes continue after a click because a
// prompt can reappear or be followed by another one.
func (s *Supervisor) probe() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Debug("Dialog probe failed", "panic", r)
		}
	}()
	s.mu.Lock()
	s.stats.probes++
	s.mu.Unlock()
	if !s.dismisser.TryDismiss() {
		return
	}
	metrics.IncDialogClick()
	s.mu.Lock()
	s.stats.dialogClicks++
	s.mu.Unlock()
	s.log.Info("Dismissed security dialog")
}

func (s *Supervisor) finishLaunch(res launchResult) {
	if res.err != nil {
		s.launchFailed("Failed to start process", "error", res.err)
		return
	}
	h := res.h
	s.mu.Lock()
	// Checked under mu: an exit observed after this point clears the slot.
	if h == nil || h.Exited() {
		s.mu.Unlock()
		if h == nil {
			s.launchFailed("Failed to start process", "error", "no process handle")
		} else {
			s.launchFailed("Failed to start process", "error", "process exited during startup", "pid", h.PID())
		}
		return
	}
	s.current = h
	s.stats.launches++
	s.mu.Unlock()

	metrics.IncLaunch(true)
	s.log.Info("Process started", "pid", h.PID())
	s.setState(StateHealthy)
}

func (s *Supervisor) launchFailed(msg string, args ...any) {
	metrics.IncLaunch(false)
	s.mu.Lock()
	s.stats.launchFailures++
	s.mu.Unlock()
	s.log.Error(msg, args...)
	s.setState(StateChecking)
}

// handleExit is the exit observer callback for every launched handle.
func (s *Supervisor) handleExit(h *process.Handle) {
	code, _ := h.ExitCode()
	rec := newExitRecord(h.PID(), code, h.StoppedAt())
	s.log.Warn("Managed process exited", "pid", rec.PID, "code", rec.Code, "reason", rec.Reason)
	metrics.IncExit(rec.Category)

	s.mu.Lock()
	if s.current == h {
		s.current = nil
	}
	s.lastExit = rec
	s.pendingExit = rec
	s.mu.Unlock()
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	from := s.state
	s.state = st
	s.mu.Unlock()
	if from != st {
		metrics.RecordStateTransition(string(from), string(st))
	}
}

func (s *Supervisor) setRecovering(v bool) {
	s.mu.Lock()
	s.recovering = v
	s.mu.Unlock()
	if v {
		s.setState(StateRecovering)
	}
}

// Current returns the managed handle, or nil when none is live.
func (s *Supervisor) Current() *process.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
