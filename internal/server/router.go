package server

import (
	"context"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/winevisor/winevisor/internal/config"
	"github.com/winevisor/winevisor/internal/launcher"
	"github.com/winevisor/winevisor/internal/metrics"
	"github.com/winevisor/winevisor/internal/monitor"
	"github.com/winevisor/winevisor/internal/prefix"
	"github.com/winevisor/winevisor/internal/process"
	"github.com/winevisor/winevisor/internal/store"
)

// Router provides embeddable HTTP handlers for launching and supervising
// processes. Endpoints (relative to basePath):
//   GET    /processes           list all tracked records
//   GET    /processes/:pid      one record
//   DELETE /processes/:pid      forget a terminal record
//   POST   /run                 body: {"path": ..., "args": [...]}, async
//   POST   /exec                same body, blocks until exit
//   POST   /signal              body: {"pid": ..., "op": pause|resume|terminate|kill}
//   GET    /history             recent launch history (requires a store)
//   GET    /prefixes            list prefixes (requires a prefix manager)
//   POST   /prefixes            body: {"name": ..., "arch": ...}
//   DELETE /prefixes/:name      back up and remove a prefix
//   GET    /metrics             Prometheus exposition
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	deps     Deps
	basePath string
}

// Deps are the engine components the HTTP surface operates on. Prefixes
// and History are optional; their endpoints 404 when absent.
type Deps struct {
	Launcher *launcher.Launcher
	Monitor  *monitor.Monitor
	Table    *process.Table
	Prefixes *prefix.Manager
	History  store.Store
}

func NewRouter(deps Deps, basePath string) *Router {
	return &Router{deps: deps, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/processes", r.handleList)
	group.GET("/processes/:pid", r.handleGet)
	group.DELETE("/processes/:pid", r.handleForget)
	group.POST("/run", r.handleRun)
	group.POST("/exec", r.handleExec)
	group.POST("/signal", r.handleSignal)
	group.GET("/history", r.handleHistory)
	group.GET("/prefixes", r.handlePrefixList)
	group.POST("/prefixes", r.handlePrefixCreate)
	group.DELETE("/prefixes/:name", r.handlePrefixDelete)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Shut it down via the returned http.Server's Close or Shutdown.
func NewServer(addr, basePath string, deps Deps) (*http.Server, error) {
	r := NewRouter(deps, basePath)
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

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type launchReq struct {
	Path string   `json:"path"`
	Args []string `json:"args"`
}

func (r *Router) handleList(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.deps.Table.All())
}

func (r *Router) handleGet(c *gin.Context) {
	pid, err := strconv.Atoi(c.Param("pid"))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid pid"})
		return
	}
	rec, ok := r.deps.Table.Snapshot(pid)
	if !ok {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "pid not tracked"})
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

func (r *Router) handleForget(c *gin.Context) {
	pid, err := strconv.Atoi(c.Param("pid"))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid pid"})
		return
	}
	rec, ok := r.deps.Table.Snapshot(pid)
	if !ok {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "pid not tracked"})
		return
	}
	if !rec.State.Terminal() {
		writeJSON(c, http.StatusConflict, errorResp{Error: "process still tracked as live"})
		return
	}
	r.deps.Table.Forget(pid)
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) bindLaunch(c *gin.Context) (launchReq, bool) {
	var req launchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return req, false
	}
	if req.Path == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "path required"})
		return req, false
	}
	if !isSafeAbsPath(req.Path) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid path: must be absolute path without traversal"})
		return req, false
	}
	return req, true
}

func (r *Router) handleRun(c *gin.Context) {
	req, ok := r.bindLaunch(c)
	if !ok {
		return
	}
	pid, err := r.deps.Launcher.Execute(req.Path, req.Args...)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"pid": pid})
}

func (r *Router) handleExec(c *gin.Context) {
	req, ok := r.bindLaunch(c)
	if !ok {
		return
	}
	code := r.deps.Launcher.ExecuteSync(req.Path, req.Args...)
	writeJSON(c, http.StatusOK, gin.H{"exit_code": code})
}

type signalReq struct {
	PID    int    `json:"pid"`
	Op     string `json:"op"`
	Signal int    `json:"signal"`
}

func (r *Router) handleSignal(c *gin.Context) {
	var req signalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	var err error
	switch req.Op {
	case "pause":
		err = r.deps.Monitor.Pause(req.PID)
	case "resume":
		err = r.deps.Monitor.Resume(req.PID)
	case "terminate":
		err = r.deps.Monitor.Terminate(req.PID)
	case "kill":
		sig := syscall.SIGKILL
		if req.Signal > 0 {
			sig = syscall.Signal(req.Signal)
		}
		err = r.deps.Monitor.Kill(req.PID, sig)
	default:
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "op must be one of pause, resume, terminate, kill"})
		return
	}
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.deps.History == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "history store not configured"})
		return
	}
	limit := 50
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	entries, err := r.deps.History.History(context.Background(), limit)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, entries)
}

type prefixReq struct {
	Name string `json:"name"`
	Arch string `json:"arch"`
}

func (r *Router) handlePrefixList(c *gin.Context) {
	if r.deps.Prefixes == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "prefix manager not configured"})
		return
	}
	infos, err := r.deps.Prefixes.List()
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, infos)
}

func (r *Router) handlePrefixCreate(c *gin.Context) {
	if r.deps.Prefixes == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "prefix manager not configured"})
		return
	}
	var req prefixReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if !isSafeName(req.Name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid name: allowed [A-Za-z0-9._-] and no '..' or path separators"})
		return
	}
	info, err := r.deps.Prefixes.Create(req.Name, config.ParseArch(req.Arch))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, info)
}

func (r *Router) handlePrefixDelete(c *gin.Context) {
	if r.deps.Prefixes == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "prefix manager not configured"})
		return
	}
	name := c.Param("name")
	if !isSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid name"})
		return
	}
	backup, err := r.deps.Prefixes.Delete(name)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"backup": backup})
}
