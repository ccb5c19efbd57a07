// Package runner executes dispatch plans against a sender. A Runner is
// configured once; each Start launches an independent, timer-driven Run
// anchored at its own scenario start.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/burst"
	"github.com/xraph/burst/delivery"
	"github.com/xraph/burst/ext"
	"github.com/xraph/burst/id"
	"github.com/xraph/burst/middleware"
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/run"
	"github.com/xraph/burst/token"
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithExtensions sets the extension registry notified of run events.
func WithExtensions(reg *ext.Registry) Option {
	return func(r *Runner) { r.extensions = reg }
}

// WithResolver sets the token resolver.
func WithResolver(res *token.Resolver) Option {
	return func(r *Runner) { r.resolver = res }
}

// WithMiddleware wraps every delivery in mws.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(r *Runner) { r.mws = append(r.mws, mws...) }
}

// WithTimeScale compresses (>1) or stretches (<1) the timeline.
// Non-positive values are ignored.
func WithTimeScale(scale float64) Option {
	return func(r *Runner) {
		if scale > 0 {
			r.scale = scale
		}
	}
}

// WithStartTime anchors relative timestamps: a token resolved at scenario
// time t reads StartTime+t as "now". Zero uses the wall clock at start.
func WithStartTime(t time.Time) Option {
	return func(r *Runner) { r.anchor = t }
}

// Runner starts runs of compiled plans. It is safe for concurrent use.
type Runner struct {
	sender     delivery.Sender
	resolver   *token.Resolver
	extensions *ext.Registry
	logger     *slog.Logger
	mws        []middleware.Middleware
	scale      float64
	anchor     time.Time
}

// New returns a Runner delivering through sender.
func New(sender delivery.Sender, opts ...Option) (*Runner, error) {
	if sender == nil {
		return nil, burst.ErrNoSender
	}
	r := &Runner{
		sender: sender,
		logger: slog.Default(),
		scale:  1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.resolver == nil {
		r.resolver = token.NewResolver()
	}
	if r.extensions == nil {
		r.extensions = ext.NewRegistry(r.logger)
	}
	r.sender = middleware.Wrap(r.sender, r.mws...)
	return r, nil
}

// Start launches a run of p. Cancelling ctx aborts the run the same way
// Run.Abort does.
func (r *Runner) Start(ctx context.Context, p *plan.Plan) *Run {
	ctx, cancel := context.WithCancel(ctx)
	t0 := time.Now()
	anchor := r.anchor
	if anchor.IsZero() {
		anchor = t0
	}

	rn := &Run{
		id:     id.NewRunID(),
		plan:   p,
		runner: r,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		t0:     t0,
		anchor: anchor,
	}
	rn.report = &run.Report{
		RunID:     rn.id,
		PlanID:    p.ID(),
		State:     run.StateRunning,
		StartedAt: t0.UTC(),
		Totals:    run.Totals{Scheduled: p.Len()},
		Outcomes:  make([]run.Outcome, 0, p.Len()),
	}

	r.logger.Info("run started",
		slog.String("run_id", rn.id.String()),
		slog.String("plan_id", p.ID().String()),
		slog.Int("entries", p.Len()),
		slog.Duration("span", p.Span()),
		slog.Float64("time_scale", r.scale),
	)
	r.extensions.EmitRunStarted(ctx, rn.Report())

	go rn.loop()
	return rn
}
