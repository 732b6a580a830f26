package process

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "app.sh")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return p
}

func TestLauncher_StartAndObserveExit(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	script := writeScript(t, dir, "pwd > cwd.txt\nexit 3")

	exited := make(chan *Handle, 1)
	l := NewLauncher(slog.Default())
	h, err := l.Start(script, func(h *Handle) { exited <- h })
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.PID() <= 0 {
		t.Fatalf("expected positive pid, got %d", h.PID())
	}

	select {
	case got := <-exited:
		if got != h {
			t.Fatalf("observer reported a different handle")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("exit observer did not fire")
	}
	code, ok := h.ExitCode()
	if !ok || code != 3 {
		t.Fatalf("expected exit code 3, got %v (ok=%v)", code, ok)
	}

	b, err := os.ReadFile(filepath.Join(dir, "cwd.txt"))
	if err != nil {
		t.Fatalf("working directory was not the script dir: %v", err)
	}
	wantDir, _ := filepath.EvalSymlinks(dir)
	gotDir, _ := filepath.EvalSymlinks(strings.TrimSpace(string(b)))
	if gotDir != wantDir {
		t.Fatalf("cwd = %q, want %q", gotDir, wantDir)
	}
}

func TestLauncher_MissingFile(t *testing.T) {
	l := NewLauncher(nil)
	_, err := l.Start(filepath.Join(t.TempDir(), "missing.exe"), nil)
	var le *LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("expected LaunchError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist cause, got %v", err)
	}
}

func TestLauncher_EmptyPath(t *testing.T) {
	_, err := NewLauncher(nil).Start("  ", nil)
	if !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
}

func TestLauncher_StartFailureAndPanicAreWrapped(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "app.exe")
	if err := os.WriteFile(target, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	l := NewLauncher(nil)

	boom := errors.New("access denied")
	l.start = func(path, wd string) (*Handle, waitFunc, error) {
		if wd != dir {
			t.Errorf("working dir = %q, want %q", wd, dir)
		}
		return nil, nil, boom
	}
	if _, err := l.Start(target, nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}

	l.start = func(string, string) (*Handle, waitFunc, error) { panic("bad state") }
	_, err := l.Start(target, nil)
	var le *LaunchError
	if !errors.As(err, &le) || !strings.Contains(err.Error(), "bad state") {
		t.Fatalf("expected panic converted into LaunchError, got %v", err)
	}
}

func TestLauncher_ObserverFiresOnce(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "app.exe")
	if err := os.WriteFile(target, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	release := make(chan struct{})
	l := NewLauncher(nil)
	l.start = func(string, string) (*Handle, waitFunc, error) {
		return NewHandle(7), func() ExitCode { <-release; return 0xC0000005 }, nil
	}
	calls := make(chan struct{}, 2)
	h, err := l.Start(target, func(*Handle) { calls <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	if h.Exited() {
		t.Fatalf("handle should be live until wait returns")
	}
	close(release)
	<-h.Done()
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatalf("observer callback not invoked")
	}
	select {
	case <-calls:
		t.Fatalf("observer fired twice")
	case <-time.After(50 * time.Millisecond):
	}
	if code, _ := h.ExitCode(); Interpret(code) != ExitAccessViolation {
		t.Fatalf("unexpected exit category for %s", code)
	}
}
