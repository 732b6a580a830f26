package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	// idempotent: calling again should be no-op
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncCheck("healthy")
	IncCheck("missing")
	IncLaunch(true)
	IncLaunch(false)
	ObserveLaunchDuration(1.5)
	IncDialogClick()
	IncExit("access violation")
	RecordStateTransition("checking", "recovering")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"svcmon_supervisor_checks_total":            false,
		"svcmon_supervisor_launches_total":          false,
		"svcmon_supervisor_launch_duration_seconds": false,
		"svcmon_dialog_clicks_total":                false,
		"svcmon_process_exits_total":                false,
		"svcmon_supervisor_state_transitions_total": false,
		"svcmon_supervisor_current_state":           false,
	}
	for _, mf := range mfs {
		n := mf.GetName()
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
			if len(mf.GetMetric()) == 0 {
				t.Fatalf("metric %s has no samples", n)
			}
		}
	}
	for n, ok := range wantNames {
		if !ok {
			t.Fatalf("expected to find metric %s", n)
		}
	}
}

func TestHelpersNoopBeforeRegister(t *testing.T) {
	regOK.Store(false)
	// must not panic without registration
	IncCheck("healthy")
	IncLaunch(true)
	IncDialogClick()
	IncExit("normal exit")
	RecordStateTransition("idle", "checking")
}

func TestSelfTransitionIgnored(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	before := testCounter(t, reg, "healthy", "healthy")
	RecordStateTransition("healthy", "healthy")
	if after := testCounter(t, reg, "healthy", "healthy"); after != before {
		t.Fatalf("self transition was counted")
	}
}

func testCounter(t *testing.T, g prometheus.Gatherer, from, to string) float64 {
	t.Helper()
	mfs, err := g.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "svcmon_supervisor_state_transitions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var f, to2 string
			for _, l := range m.GetLabel() {
				switch l.GetName() {
				case "from":
					f = l.GetValue()
				case "to":
					to2 = l.GetValue()
				}
			}
			if f == from && to2 == to {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestHandlerForServesMetrics(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	IncDialogClick()

	srv := httptest.NewServer(HandlerFor(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "svcmon_dialog_clicks_total") {
		t.Fatalf("metrics output missing dialog counter")
	}
}
