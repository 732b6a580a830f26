package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	mng "github.com/loykin/svcmon/internal/manager"
	"github.com/loykin/svcmon/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type fixedStatus struct {
	mu sync.Mutex
	st mng.Status
}

func (f *fixedStatus) Status() mng.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func setupRouter(t *testing.T, base string, st mng.Status, mh http.Handler) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(&fixedStatus{st: st}, base, mh).Handler()
}

func doReq(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusReturnsSnapshot(t *testing.T) {
	st := mng.Status{
		Name:     "app",
		Path:     `C:\App\app.exe`,
		State:    mng.StateHealthy,
		PID:      4242,
		Checks:   7,
		Launches: 2,
		LastExit: &mng.ExitRecord{PID: 4000, Code: "0xC0000005", Category: "access violation"},
	}
	h := setupRouter(t, "/svcmon", st, nil)
	rec := doReq(t, h, http.MethodGet, "/svcmon/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got mng.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PID != 4242 || got.State != mng.StateHealthy || got.Checks != 7 || got.Path != st.Path {
		t.Fatalf("unexpected status %+v", got)
	}
	if got.LastExit == nil || got.LastExit.Code != "0xC0000005" {
		t.Fatalf("last exit missing: %+v", got.LastExit)
	}
}

func TestHealthz(t *testing.T) {
	cases := []struct {
		state mng.State
		want  int
	}{
		{mng.StateHealthy, http.StatusOK},
		{mng.StateRecovering, http.StatusServiceUnavailable},
		{mng.StateChecking, http.StatusServiceUnavailable},
		{mng.StateIdle, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		h := setupRouter(t, "", mng.Status{State: c.state}, nil)
		rec := doReq(t, h, http.MethodGet, "/healthz")
		if rec.Code != c.want {
			t.Fatalf("state %s: expected %d, got %d", c.state, c.want, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), string(c.state)) {
			t.Fatalf("state %s missing from body %q", c.state, rec.Body.String())
		}
	}
}

func TestReadOnly(t *testing.T) {
	h := setupRouter(t, "/abc", mng.Status{State: mng.StateHealthy}, nil)
	for _, p := range []string{"/abc/status", "/abc/start", "/abc/stop"} {
		rec := doReq(t, h, http.MethodPost, p)
		if rec.Code == http.StatusOK {
			t.Fatalf("POST %s should not succeed", p)
		}
	}
	if rec := doReq(t, h, http.MethodGet, "/status"); rec.Code != http.StatusNotFound {
		t.Fatalf("routes must live under the base path, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	metrics.IncDialogClick()

	h := setupRouter(t, "/m", mng.Status{}, metrics.HandlerFor(reg))
	rec := doReq(t, h, http.MethodGet, "/m/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "svcmon_dialog_clicks_total") {
		t.Fatalf("metrics output missing collector:\n%s", rec.Body.String())
	}

	h = setupRouter(t, "/m", mng.Status{}, nil)
	if rec := doReq(t, h, http.MethodGet, "/m/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("metrics should be absent without a handler, got %d", rec.Code)
	}
}

func TestNewServerServes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv, err := NewServer("127.0.0.1:0", "", &fixedStatus{st: mng.Status{State: mng.StateHealthy}}, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer func() { _ = srv.Close() }()
	if srv.ReadHeaderTimeout != 10*time.Second || srv.Handler == nil {
		t.Fatalf("server not configured: %+v", srv)
	}
}
