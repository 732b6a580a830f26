package manager

import (
	"time"

	"github.com/loykin/svcmon/internal/process"
)

// State is the supervisor's position in its check/recover cycle.
type State string

const (
	StateIdle       State = "idle"
	StateChecking   State = "checking"
	StateHealthy    State = "healthy"
	StateRecovering State = "recovering"
)

// ExitRecord describes one observed exit of the managed process.
type ExitRecord struct {
	PID      int       `json:"pid"`
	Code     string    `json:"code"`
	Category string    `json:"category"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

func newExitRecord(pid int, code process.ExitCode, at time.Time) *ExitRecord {
	return &ExitRecord{
		PID:      pid,
		Code:     code.String(),
		Category: string(process.Interpret(code)),
		Reason:   process.Describe(code),
		At:       at,
	}
}

type counters struct {
	checks         int
	launches       int
	launchFailures int
	probes         int
	dialogClicks   int
	faults         int
}

// Status is a point-in-time snapshot of a Supervisor.
type Status struct {
	Name           string      `json:"name"`
	Path           string      `json:"path"`
	State          State       `json:"state"`
	PID            int         `json:"pid,omitempty"`
	Recovering     bool        `json:"recovering"`
	LastCheck      time.Time   `json:"last_check"`
	LastExit       *ExitRecord `json:"last_exit,omitempty"`
	Checks         int         `json:"checks"`
	Launches       int         `json:"launches"`
	LaunchFailures int         `json:"launch_failures"`
	Probes         int         `json:"dialog_probes"`
	DialogClicks   int         `json:"dialog_clicks"`
	Faults         int         `json:"faults"`
}

// Status returns a copy of the supervisor's current state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Name:           s.opts.Name,
		Path:           s.opts.Path,
		State:          s.state,
		Recovering:     s.recovering,
		LastCheck:      s.lastCheck,
		Checks:         s.stats.checks,
		Launches:       s.stats.launches,
		LaunchFailures: s.stats.launchFailures,
		Probes:         s.stats.probes,
		DialogClicks:   s.stats.dialogClicks,
		Faults:         s.stats.faults,
	}
	if s.current != nil {
		st.PID = s.current.PID()
	}
	if s.lastExit != nil {
		e := *s.lastExit
		st.LastExit = &e
	}
	return st
}
