package manager

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loykin/svcmon/internal/detector"
	"github.com/loykin/svcmon/internal/process"
)

// lockedBuffer is a goroutine-safe log sink.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Count(s string) int { return strings.Count(b.String(), s) }

func testLogger() (*slog.Logger, *lockedBuffer) {
	buf := &lockedBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// fakeLocator returns scripted results; the last result repeats.
type fakeLocator struct {
	mu      sync.Mutex
	results []func() (*detector.Match, error)
	calls   []time.Time
}

func (f *fakeLocator) Find(context.Context, string, string) (*detector.Match, error) {
	f.mu.Lock()
	f.calls = append(f.calls, time.Now())
	next := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	f.mu.Unlock()
	return next()
}

func (f *fakeLocator) callTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.calls...)
}

func missing() (*detector.Match, error) { return nil, nil }

func running(pid int32) func() (*detector.Match, error) {
	return func() (*detector.Match, error) { return &detector.Match{PID: pid, Exe: "/opt/app/app"}, nil }
}

// fakeLauncher runs one scripted attempt per Start call; the last one repeats.
type fakeLauncher struct {
	mu       sync.Mutex
	attempts []func() (*process.Handle, error)
	onExit   process.ExitFunc
	starts   int
}

func (f *fakeLauncher) Start(_ string, onExit process.ExitFunc) (*process.Handle, error) {
	f.mu.Lock()
	f.starts++
	f.onExit = onExit
	next := f.attempts[0]
	if len(f.attempts) > 1 {
		f.attempts = f.attempts[1:]
	}
	f.mu.Unlock()
	return next()
}

// exit simulates the OS exit notification for h.
func (f *fakeLauncher) exit(h *process.Handle, code process.ExitCode) {
	f.mu.Lock()
	cb := f.onExit
	f.mu.Unlock()
	if h.MarkExited(code) && cb != nil {
		cb(h)
	}
}

func (f *fakeLauncher) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func liveAfter(d time.Duration, pid int) func() (*process.Handle, error) {
	return func() (*process.Handle, error) {
		time.Sleep(d)
		return process.NewHandle(pid), nil
	}
}

var errAccessDenied = errors.New("access is denied")

func failing() (*process.Handle, error) {
	return nil, &process.LaunchError{Path: "/opt/app/app", Err: errAccessDenied}
}

// fakeDismisser records probe times and clicks according to clickAt.
type fakeDismisser struct {
	mu      sync.Mutex
	probes  []time.Time
	clickAt func(n int) bool
}

func (f *fakeDismisser) TryDismiss() bool {
	f.mu.Lock()
	f.probes = append(f.probes, time.Now())
	n := len(f.probes)
	fn := f.clickAt
	f.mu.Unlock()
	return fn != nil && fn(n)
}

func (f *fakeDismisser) probeTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.probes...)
}

func waitUntil(timeout, step time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(step)
	}
	return fn()
}
