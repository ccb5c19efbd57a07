// Package api exposes the burst engine over HTTP: compiling plans,
// starting and aborting runs, streaming run events over Server-Sent
// Events and WebSocket, exporting Postman collections and managing
// recurring replays.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xraph/burst/engine"
	"github.com/xraph/burst/export"
	"github.com/xraph/burst/replay"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// API wires the HTTP handlers to an engine.
type API struct {
	eng       *engine.Engine
	replays   *replay.Scheduler
	base      context.Context
	logger    *slog.Logger
	endpoints export.Endpoints
	auth      Authenticator
}

// Option configures an API.
type Option func(*API)

// WithReplays exposes a replay scheduler under /v1/replays.
func WithReplays(s *replay.Scheduler) Option {
	return func(a *API) { a.replays = s }
}

// WithBaseContext sets the context runs started over HTTP inherit.
// Cancelling it aborts them. Defaults to context.Background.
func WithBaseContext(ctx context.Context) Option {
	return func(a *API) { a.base = ctx }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithAuth requires every /v1 request to carry a bearer token accepted by
// auth. Without it all requests are allowed.
func WithAuth(auth Authenticator) Option {
	return func(a *API) { a.auth = auth }
}

// WithEndpoints sets the receiver URLs written into exported collections.
func WithEndpoints(e export.Endpoints) Option {
	return func(a *API) { a.endpoints = e }
}

// New creates an API serving eng.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{
		eng:    eng,
		base:   context.Background(),
		logger: eng.Logger(),
		auth:   NoopAuthenticator{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns a gin engine with every route registered.
func (a *API) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), a.requestLogger())
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all burst routes on router.
func (a *API) RegisterRoutes(router gin.IRouter) {
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	read := router.Group("/v1", a.require(ScopeRead))
	write := router.Group("/v1", a.require(ScopeWrite))

	write.POST("/plans", a.compilePlan)
	read.GET("/plans/:planId", a.getPlan)

	write.POST("/runs", a.startRun)
	read.GET("/runs", a.listRuns)
	read.GET("/runs/:runId", a.getRun)
	write.POST("/runs/:runId/abort", a.abortRun)
	read.GET("/runs/:runId/events", a.runEventsSSE)
	read.GET("/runs/:runId/ws", a.runEventsWS)

	write.POST("/export/postman", a.exportPostman)

	read.GET("/replays", a.listReplays)
	read.GET("/replays/:name", a.getReplay)
	write.POST("/replays/:name/enable", a.enableReplay)
	write.POST("/replays/:name/disable", a.disableReplay)

	read.GET("/stats", a.stats)
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}
