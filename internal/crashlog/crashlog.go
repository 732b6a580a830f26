// Package crashlog reads fatal crash reports for an executable from the
// Windows Application event log.
package crashlog

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// ErrUnsupported is returned on hosts without a Windows event log.
var ErrUnsupported = errors.New("crash reports are only available on windows")

const (
	logName = "Application"
	// EventAppCrash is logged by "Application Error" when a process faults.
	EventAppCrash = 1000
	// EventAppHang is the Windows Error Reporting follow-up event.
	EventAppHang = 1001
)

// Query selects crash events for one executable.
type Query struct {
	ExeName  string
	Lookback time.Duration // zero means the whole log
	// IncludeReports adds the Windows Error Reporting events (1001).
	IncludeReports bool
}

func (q Query) xpath() string {
	ids := fmt.Sprintf("EventID=%d", EventAppCrash)
	if q.IncludeReports {
		ids = fmt.Sprintf("EventID=%d or EventID=%d", EventAppCrash, EventAppHang)
	}
	if q.Lookback <= 0 {
		return fmt.Sprintf("*[System[(%s)]]", ids)
	}
	return fmt.Sprintf("*[System[(%s) and TimeCreated[timediff(@SystemTime) <= %d]]]", ids, q.Lookback.Milliseconds())
}

// Event is one rendered event log record.
type Event struct {
	ID          int
	Source      string
	Time        time.Time
	Description string
}

// Report is an Event that mentions the queried executable.
type Report struct {
	Event
	Summary string
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Reader queries the event log through wevtutil.
type Reader struct {
	run       runFunc
	supported bool
}

func NewReader() *Reader {
	return &Reader{run: runCommand, supported: runtime.GOOS == "windows"}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Scan returns crash reports for q.ExeName, newest first.
func (r *Reader) Scan(ctx context.Context, q Query) ([]Report, error) {
	if !r.supported {
		return nil, ErrUnsupported
	}
	if strings.TrimSpace(q.ExeName) == "" {
		return nil, errors.New("executable name is empty")
	}
	out, err := r.run(ctx, "wevtutil", "qe", logName, "/q:"+q.xpath(), "/f:RenderedXml", "/rd:true")
	if err != nil {
		return nil, fmt.Errorf("query %s log: %w", logName, err)
	}
	events, err := parseEvents(bytes.NewReader(out))
	if err != nil {
		return nil, err
	}
	return Filter(events, q.ExeName), nil
}

// Filter keeps the events whose description mentions exeName,
// case-insensitively, and summarizes them.
func Filter(events []Event, exeName string) []Report {
	needle := strings.ToLower(exeName)
	var out []Report
	for _, e := range events {
		if e.Description == "" || !strings.Contains(strings.ToLower(e.Description), needle) {
			continue
		}
		out = append(out, Report{Event: e, Summary: Summarize(e.Description)})
	}
	return out
}

// Summarize returns the first line of a crash description followed by the
// first line mentioning the exception, when there is one.
func Summarize(description string) string {
	var first, exception string
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if first == "" {
			first = line
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "exception") || strings.Contains(lower, "исключени") {
			exception = line
			break
		}
	}
	if exception == "" || exception == first {
		return first
	}
	return fmt.Sprintf("%s (%s)", first, exception)
}

// Log writes reports the way the supervisor logs everything else.
func Log(log *slog.Logger, q Query, reports []Report) {
	if len(reports) == 0 {
		log.Info("No fatal crashes found", "name", q.ExeName, "lookback", q.Lookback)
		return
	}
	for _, r := range reports {
		log.Warn("Crash found",
			"name", q.ExeName,
			"date", r.Time.Local().Format(time.DateTime),
			"source", r.Source,
			"event_id", r.ID,
			"summary", r.Summary)
	}
}

// renderedEvent mirrors the parts of wevtutil's RenderedXml output we use.
type renderedEvent struct {
	System struct {
		Provider struct {
			Name string `xml:"Name,attr"`
		} `xml:"Provider"`
		EventID     int `xml:"EventID"`
		TimeCreated struct {
			SystemTime string `xml:"SystemTime,attr"`
		} `xml:"TimeCreated"`
	} `xml:"System"`
	RenderingInfo struct {
		Message string `xml:"Message"`
	} `xml:"RenderingInfo"`
}

// parseEvents decodes the sequence of <Event> elements wevtutil prints
// without a root element.
func parseEvents(r io.Reader) ([]Event, error) {
	dec := xml.NewDecoder(r)
	var events []Event
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Event" {
			continue
		}
		var re renderedEvent
		if err := dec.DecodeElement(&re, &start); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		e := Event{
			ID:          re.System.EventID,
			Source:      re.System.Provider.Name,
			Description: strings.ReplaceAll(re.RenderingInfo.Message, "\r\n", "\n"),
		}
		if ts := re.System.TimeCreated.SystemTime; ts != "" {
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				e.Time = t
			}
		}
		events = append(events, e)
	}
}
