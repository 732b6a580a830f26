package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyPath is returned when no executable path was supplied.
	ErrEmptyPath = errors.New("executable path is empty")
	// ErrNoProcessHandle is returned when the shell accepted the launch request
	// but did not hand back a process (e.g. it was delegated to a running instance).
	ErrNoProcessHandle = errors.New("shell launch returned no process handle")
)

// LaunchError describes a failed start attempt. It wraps the underlying cause.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string { return fmt.Sprintf("start %s: %v", e.Path, e.Err) }

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitFunc is invoked once, from the exit observer goroutine, after the
// handle has been marked exited.
type ExitFunc func(*Handle)

// waitFunc blocks until the started process terminates and returns its exit code.
type waitFunc func() ExitCode

// Launcher starts the supervised executable through the platform shell and
// attaches an exit observer to every successful start.
type Launcher struct {
	log   *slog.Logger
	start func(path, dir string) (*Handle, waitFunc, error)
}

func NewLauncher(log *slog.Logger) *Launcher {
	if log == nil {
		log = slog.Default()
	}
	return &Launcher{log: log, start: startNative}
}

// Start launches path with its containing directory as working directory.
// Failures are returned as *LaunchError; Start never panics.
func (l *Launcher) Start(path string, onExit ExitFunc) (h *Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h = nil
			err = &LaunchError{Path: path, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if strings.TrimSpace(path) == "" {
		return nil, &LaunchError{Path: path, Err: ErrEmptyPath}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}
	h, wait, err := l.start(path, filepath.Dir(path))
	if err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}
	l.log.Debug("Process launched", "path", path, "pid", h.PID())
	go l.observe(h, wait, onExit)
	return h, nil
}

func (l *Launcher) observe(h *Handle, wait waitFunc, onExit ExitFunc) {
	code := wait()
	if !h.MarkExited(code) {
		return
	}
	l.log.Debug("Process exit observed", "pid", h.PID(), "code", code.String())
	if onExit != nil {
		onExit(h)
	}
}
