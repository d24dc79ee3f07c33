package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/sabiqazhar/frappe-env-setup/internal/health"
	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// bootstrapService is the subset of *orchestrator.Orchestrator used by the
// handlers.
type bootstrapService interface {
	Run(ctx context.Context) (*orchestrator.RunResult, error)
	IsRunning() bool
	IsReady() bool
	LastResult() *orchestrator.RunResult
}

type healthService interface {
	Run(ctx context.Context) map[string]health.ProbeResult
}

type runLister interface {
	Recent(ctx context.Context, limit int) ([]orchestrator.RunResult, error)
}

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	bootstrap bootstrapService
	health    healthService
	runs      runLister

	// base parents background runs; cancelling it cancels them.
	base       context.Context
	background sync.WaitGroup
}

// Bootstrap handles POST /api/v1/bootstrap.
// It returns 202 when a new run is started, or 409 if one is already in
// progress. The run continues in the background after the response and is
// cancelled with the base context, not with the request.
func (h *Handler) Bootstrap(c *gin.Context) {
	if h.bootstrap.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"status": "in-progress"})
		return
	}
	base := h.base
	if base == nil {
		base = context.Background()
	}
	// Keep the request's span as parent so the run joins its trace.
	ctx := trace.ContextWithSpan(base, trace.SpanFromContext(c.Request.Context()))

	h.background.Add(1)
	go func() {
		defer h.background.Done()
		if _, err := h.bootstrap.Run(ctx); err != nil && !errors.Is(err, orchestrator.ErrRunInProgress) {
			slog.ErrorContext(ctx, "background bootstrap failed", "error", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// wait blocks until every background run started by Bootstrap has returned.
func (h *Handler) wait() { h.background.Wait() }

// Health handles GET /health. It always returns 200.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"mode":   "shallow",
	})
}

// DeepHealth handles GET /health/deep.
// It probes the database and every redis role and returns 200 only when all
// of them answer.
func (h *Handler) DeepHealth(c *gin.Context) {
	probes := h.health.Run(c.Request.Context())

	status := "healthy"
	code := http.StatusOK
	if !health.AllOK(probes) {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":       status,
		"dependencies": probes,
	})
}

// Ready handles GET /ready.
// It returns 200 only after a successful bootstrap; 503 otherwise.
func (h *Handler) Ready(c *gin.Context) {
	if h.bootstrap.IsReady() {
		c.JSON(http.StatusOK, gin.H{"ready": true})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "running": h.bootstrap.IsRunning()})
}

// LastRun handles GET /api/v1/runs/last.
func (h *Handler) LastRun(c *gin.Context) {
	last := h.bootstrap.LastResult()
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "no run has finished yet"})
		return
	}
	c.JSON(http.StatusOK, last)
}

// Runs handles GET /api/v1/runs?limit=N, newest first.
func (h *Handler) Runs(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"status": "error", "error": "run history is disabled"})
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "list runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "could not read run history"})
		return
	}
	if runs == nil {
		runs = []orchestrator.RunResult{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
