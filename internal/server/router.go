package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	mng "github.com/loykin/svcmon/internal/manager"
)

// StatusSource provides the supervisor snapshot served by the router.
type StatusSource interface {
	Status() mng.Status
}

// Router provides embeddable, read-only HTTP handlers for the supervisor.
// Endpoints:
//   GET {basePath}/status    current Status as JSON
//   GET {basePath}/healthz   200 while the process is healthy, 503 otherwise
//   GET {basePath}/metrics   Prometheus exposition (when a handler is set)
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	src      StatusSource
	basePath string
	metrics  http.Handler
}

// NewRouter constructs a new Router. A nil metrics handler leaves
// {basePath}/metrics unregistered.
func NewRouter(src StatusSource, basePath string, metrics http.Handler) *Router {
	return &Router{src: src, basePath: sanitizeBase(basePath), metrics: metrics}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/healthz", r.handleHealth)
	if r.metrics != nil {
		group.GET("/metrics", gin.WrapH(r.metrics))
	}
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Callers stop it with Shutdown or Close.
func NewServer(addr, basePath string, src StatusSource, metrics http.Handler) (*http.Server, error) {
	r := NewRouter(src, basePath, metrics)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

type healthResp struct {
	State mng.State `json:"state"`
	PID   int       `json:"pid,omitempty"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.src.Status())
}

func (r *Router) handleHealth(c *gin.Context) {
	st := r.src.Status()
	code := http.StatusOK
	if st.State != mng.StateHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(c, code, healthResp{State: st.State, PID: st.PID})
}
