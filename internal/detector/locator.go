package detector

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Match is a live OS process whose image path equals the configured path.
type Match struct {
	PID    int32
	Exe    string
	Exited bool // the process is a zombie that has not been reaped yet
}

// candidate is the subset of gopsutil's process used for matching.
type candidate interface {
	NameWithContext(ctx context.Context) (string, error)
	ExeWithContext(ctx context.Context) (string, error)
	StatusWithContext(ctx context.Context) ([]string, error)
	PID() int32
}

type psCandidate struct{ *gopsproc.Process }

func (c psCandidate) PID() int32 { return c.Pid }

// Locator finds the supervised process by name and image path.
type Locator struct {
	list func(ctx context.Context) ([]candidate, error)
}

func NewLocator() *Locator { return &Locator{list: listProcesses} }

func listProcesses(ctx context.Context) ([]candidate, error) {
	procs, err := gopsproc.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]candidate, 0, len(procs))
	for _, p := range procs {
		out = append(out, psCandidate{p})
	}
	return out, nil
}

// Find returns the first process named name whose image path equals path
// (case-insensitive), or nil when there is none. Candidates that cannot be
// inspected (access denied, exited mid-scan) are skipped.
func (l *Locator) Find(ctx context.Context, name, path string) (*Match, error) {
	procs, err := l.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}
	want := normalizeName(name)
	wantPath := filepath.Clean(path)
	for _, p := range procs {
		n, err := p.NameWithContext(ctx)
		if err != nil || normalizeName(n) != want {
			continue
		}
		exe, err := p.ExeWithContext(ctx)
		if err != nil || exe == "" {
			continue
		}
		if !strings.EqualFold(filepath.Clean(exe), wantPath) {
			continue
		}
		return &Match{PID: p.PID(), Exe: exe, Exited: isZombie(ctx, p)}, nil
	}
	return nil, nil
}

func isZombie(ctx context.Context, p candidate) bool {
	st, err := p.StatusWithContext(ctx)
	if err != nil {
		return false
	}
	for _, s := range st {
		if s == gopsproc.Zombie {
			return true
		}
	}
	return false
}

// normalizeName compares names the way the Windows process list does: the
// ".exe" suffix is optional and case is ignored.
func normalizeName(n string) string {
	n = strings.ToLower(strings.TrimSpace(n))
	return strings.TrimSuffix(n, ".exe")
}
