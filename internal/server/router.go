package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	mng "github.com/loykin/spawnd/internal/manager"
	"github.com/loykin/spawnd/internal/metrics"
	"github.com/loykin/spawnd/internal/process"
)

// StateSource publishes the loop state. *manager.Manager implements it.
type StateSource interface {
	Snapshot() *mng.State
}

// Router provides embeddable read-only HTTP handlers over the loop state.
// Endpoints:
//
//	GET {basePath}/status        all processes
//	GET {basePath}/status/:name  one process, 404 if unknown
//	GET {basePath}/global        global settings
//	GET {basePath}/healthz       liveness and shutdown state
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	src      StateSource
	basePath string
	usage    func(ctx context.Context, pid int) (metrics.Usage, error)
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(src StateSource, basePath string) *Router {
	return &Router{src: src, basePath: sanitizeBase(basePath), usage: metrics.ReadUsage}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatusList)
	group.GET("/status/:name", r.handleStatus)
	group.GET("/global", r.handleGlobal)
	group.GET("/healthz", r.handleHealth)
	return g
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

// ProcessStatus is a record snapshot plus a resource reading for running
// processes.
type ProcessStatus struct {
	process.Snapshot
	Usage *metrics.Usage `json:"usage,omitempty"`
}

// Health is the body of the healthz endpoint.
type Health struct {
	OK        bool      `json:"ok"`
	Stopping  bool      `json:"stopping"`
	Processes int       `json:"processes"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Router) state(c *gin.Context) (*mng.State, bool) {
	st := r.src.Snapshot()
	if st == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "supervisor state not available yet"})
		return nil, false
	}
	return st, true
}

func (r *Router) handleStatusList(c *gin.Context) {
	st, ok := r.state(c)
	if !ok {
		return
	}
	out := make([]ProcessStatus, 0, len(st.Records))
	for _, s := range st.Records {
		out = append(out, r.withUsage(c.Request.Context(), s))
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleStatus(c *gin.Context) {
	name := c.Param("name")
	st, ok := r.state(c)
	if !ok {
		return
	}
	s, found := st.Find(name)
	if !found {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "process " + name + " not found"})
		return
	}
	writeJSON(c, http.StatusOK, r.withUsage(c.Request.Context(), s))
}

func (r *Router) handleGlobal(c *gin.Context) {
	st, ok := r.state(c)
	if !ok {
		return
	}
	g := st.Global
	if g == nil {
		g = map[string]any{}
	}
	writeJSON(c, http.StatusOK, g)
}

func (r *Router) handleHealth(c *gin.Context) {
	st, ok := r.state(c)
	if !ok {
		return
	}
	code := http.StatusOK
	if st.Stopping {
		code = http.StatusServiceUnavailable
	}
	writeJSON(c, code, Health{
		OK:        !st.Stopping,
		Stopping:  st.Stopping,
		Processes: len(st.Records),
		UpdatedAt: st.UpdatedAt,
	})
}

func (r *Router) withUsage(ctx context.Context, s process.Snapshot) ProcessStatus {
	ps := ProcessStatus{Snapshot: s}
	if !s.Running || s.PID == 0 || r.usage == nil {
		return ps
	}
	if u, err := r.usage(ctx, s.PID); err == nil {
		ps.Usage = &u
	}
	return ps
}
