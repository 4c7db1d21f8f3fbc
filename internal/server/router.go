package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rackstat/rackstat/internal/export"
	"github.com/rackstat/rackstat/internal/metrics"
	"github.com/rackstat/rackstat/internal/registry"
	"github.com/rackstat/rackstat/internal/store"
)

// Router provides embeddable HTTP handlers over a status store.
// Endpoints (under basePath):
//   GET  {basePath}/computers       full listing, or one record with ?id=...
//   GET  {basePath}/stats           derived counters
//   POST {basePath}/toggle          body: {"computer_id": "..."}
//   POST {basePath}/bulk            body: {"status": "ready"|"pending"}
//   POST {basePath}/notes           body: {"computer_id": "...", "notes": "..."}
//   GET  {basePath}/export/csv      CSV download
//   GET  {basePath}/export/json     structured download
//   GET  {basePath}/export/page     self-contained HTML download
// plus GET / (dashboard page) and GET /healthz at the root.
// basePath may be empty or start with '/'; no trailing slash.
//
// Export and dashboard handlers only project; they never mutate the store.

type Router struct {
	st       store.Store
	reg      *registry.Registry
	basePath string
}

// NewRouter constructs a Router with a configurable basePath.
// Example basePath: "/api" results in /api/toggle, /api/computers, ...
func NewRouter(st store.Store, reg *registry.Registry, basePath string) *Router {
	return &Router{st: st, reg: reg, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/", r.handleDashboard)
	g.GET("/healthz", r.handleHealth)
	group := g.Group(r.basePath)
	group.GET("/computers", r.handleComputers)
	group.GET("/stats", r.handleStats)
	group.POST("/toggle", r.handleToggle)
	group.POST("/bulk", r.handleBulk)
	group.POST("/notes", r.handleNotes)
	group.GET("/export/csv", r.handleExportCSV)
	group.GET("/export/json", r.handleExportJSON)
	group.GET("/export/page", r.handleExportPage)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, st store.Store, reg *registry.Registry) (*http.Server, error) {
	r := NewRouter(st, reg, basePath)
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

type toggleReq struct {
	ComputerID string `json:"computer_id"`
}

type bulkReq struct {
	Status string `json:"status"`
}

type notesReq struct {
	ComputerID string  `json:"computer_id"`
	Notes      *string `json:"notes"`
}

type bulkResp struct {
	Status  store.Status `json:"status"`
	Updated int          `json:"updated_count"`
}

// lookupID validates an incoming ID against the registry before the store is
// consulted, so unknown serials fail fast instead of probing storage.
func (r *Router) lookupID(c *gin.Context, id string) bool {
	if id == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "computer_id required"})
		return false
	}
	if !registry.ValidID(id) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid computer_id: allowed [A-Za-z0-9._-]"})
		return false
	}
	if r.reg != nil && !r.reg.Contains(id) {
		writeJSON(c, http.StatusNotFound, errorResp{Error: store.ErrNotFound.Error() + ": " + id})
		return false
	}
	return true
}

func (r *Router) handleComputers(c *gin.Context) {
	ctx := c.Request.Context()
	if id := c.Query("id"); id != "" {
		if !r.lookupID(c, id) {
			return
		}
		rec, err := r.st.Get(ctx, id)
		if err != nil {
			writeStoreError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, rec)
		return
	}
	recs, err := r.st.List(ctx)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, recs)
}

func (r *Router) handleStats(c *gin.Context) {
	st, err := r.st.Stats(c.Request.Context())
	if err != nil {
		writeStoreError(c, err)
		return
	}
	metrics.SetMachineCounts(st.Ready, st.Pending)
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleToggle(c *gin.Context) {
	var req toggleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if !r.lookupID(c, req.ComputerID) {
		return
	}
	rec, err := r.st.Toggle(c.Request.Context(), req.ComputerID)
	if err != nil {
		metrics.IncStoreError("toggle")
		writeStoreError(c, err)
		return
	}
	metrics.IncToggle(string(rec.Status))
	writeJSON(c, http.StatusOK, rec)
}

func (r *Router) handleBulk(c *gin.Context) {
	var req bulkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	status, err := store.ParseStatus(req.Status)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	n, err := r.st.BulkSet(c.Request.Context(), status)
	if err != nil {
		metrics.IncStoreError("bulk")
		writeStoreError(c, err)
		return
	}
	metrics.IncBulkUpdate(string(status))
	writeJSON(c, http.StatusOK, bulkResp{Status: status, Updated: n})
}

func (r *Router) handleNotes(c *gin.Context) {
	var req notesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if !r.lookupID(c, req.ComputerID) {
		return
	}
	// Absent and empty notes both clear the field, as in the original API.
	var notes string
	if req.Notes != nil {
		notes = *req.Notes
	}
	rec, err := r.st.SetNotes(c.Request.Context(), req.ComputerID, notes)
	if err != nil {
		metrics.IncStoreError("notes")
		writeStoreError(c, err)
		return
	}
	metrics.IncNoteUpdate()
	writeJSON(c, http.StatusOK, rec)
}

func (r *Router) handleExportCSV(c *gin.Context) {
	recs, err := r.st.List(c.Request.Context())
	if err != nil {
		writeStoreError(c, err)
		return
	}
	metrics.IncExport("csv")
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", attachment(export.Filename("csv")))
	c.Status(http.StatusOK)
	_ = export.WriteCSV(c.Writer, recs)
}

func (r *Router) handleExportJSON(c *gin.Context) {
	recs, err := r.st.List(c.Request.Context())
	if err != nil {
		writeStoreError(c, err)
		return
	}
	metrics.IncExport("json")
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", attachment(export.Filename("json")))
	c.Status(http.StatusOK)
	_ = export.WriteJSON(c.Writer, recs)
}

func (r *Router) handleExportPage(c *gin.Context) {
	recs, err := r.st.List(c.Request.Context())
	if err != nil {
		writeStoreError(c, err)
		return
	}
	metrics.IncExport("page")
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("Content-Disposition", attachment(export.Filename("html")))
	c.Status(http.StatusOK)
	_ = export.WritePage(c.Writer, recs, store.StatsOf(recs))
}

func (r *Router) handleDashboard(c *gin.Context) {
	recs, err := r.st.List(c.Request.Context())
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	_ = export.WritePage(c.Writer, recs, store.StatsOf(recs))
}

func (r *Router) handleHealth(c *gin.Context) {
	if _, err := r.st.Stats(c.Request.Context()); err != nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

// writeStoreError maps the store error taxonomy onto HTTP status codes.
// NotFound and InvalidStatus are caller errors; everything else means the
// operation did not take effect.
func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
	case errors.Is(err, store.ErrInvalidStatus):
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
	default:
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
	}
}
