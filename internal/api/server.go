package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Deps are the services the HTTP surface exposes. Runs and Metrics may be nil.
// BaseContext parents runs started over HTTP; it defaults to
// context.Background().
type Deps struct {
	Bootstrap   bootstrapService
	Health      healthService
	Runs        runLister
	Metrics     http.Handler
	BaseContext context.Context
}

// Router wraps a configured Gin engine and exposes it as an http.Handler.
type Router struct {
	engine  *gin.Engine
	handler *Handler
}

// NewRouter constructs a Router with the middleware chain and all routes
// registered. Middleware order:
//  1. RequestID, so a panic is logged with its id
//  2. Recovery, panic to 500
//  3. OTEL, trace context per request
//  4. RequestLogger, one structured line per request
func NewRouter(d Deps) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(RequestID())
	engine.Use(Recovery(slog.Default()))
	engine.Use(OTEL("frappe-env"))
	engine.Use(RequestLogger(slog.Default()))

	h := &Handler{bootstrap: d.Bootstrap, health: d.Health, runs: d.Runs, base: d.BaseContext}

	v1 := engine.Group("/api/v1")
	v1.POST("/bootstrap", h.Bootstrap)
	v1.GET("/runs", h.Runs)
	v1.GET("/runs/last", h.LastRun)

	engine.GET("/health", h.Health)
	engine.GET("/health/deep", h.DeepHealth)
	engine.GET("/ready", h.Ready)

	if d.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(d.Metrics))
	}

	return &Router{engine: engine, handler: h}
}

// Handler returns the underlying http.Handler for use with net/http servers.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Wait blocks until bootstrap runs started over HTTP have returned. Call it
// after cancelling BaseContext and shutting the server down.
func (r *Router) Wait() {
	r.handler.wait()
}
