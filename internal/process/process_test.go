package process

import (
	"sync"
	"testing"
	"time"
)

func TestHandle_MarkExitedOnce(t *testing.T) {
	h := NewHandle(42)
	if h.PID() != 42 || h.Exited() {
		t.Fatalf("fresh handle should be live with pid 42")
	}
	if _, ok := h.ExitCode(); ok {
		t.Fatalf("exit code must be unavailable while running")
	}
	if !h.StoppedAt().IsZero() {
		t.Fatalf("stoppedAt should be zero while running")
	}

	var wg sync.WaitGroup
	var wins int32
	var mu sync.Mutex
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if h.MarkExited(ExitCode(i)) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one transition, got %d", wins)
	}
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatalf("done channel not closed")
	}
	if _, ok := h.ExitCode(); !ok || !h.Exited() {
		t.Fatalf("handle should report exit")
	}
}
