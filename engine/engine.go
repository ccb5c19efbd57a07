package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/burst"
	"github.com/xraph/burst/delivery"
	"github.com/xraph/burst/ext"
	"github.com/xraph/burst/id"
	mw "github.com/xraph/burst/middleware"
	"github.com/xraph/burst/observability"
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/run"
	"github.com/xraph/burst/runner"
	"github.com/xraph/burst/schedule"
	"github.com/xraph/burst/stream"
	"github.com/xraph/burst/token"
)

// DefaultRetainedRuns is how many finished runs stay queryable.
const DefaultRetainedRuns = 256

// Engine compiles schedules and runs plans.
type Engine struct {
	config     burst.Config
	logger     *slog.Logger
	extensions *ext.Registry
	resolver   *token.Resolver
	sender     delivery.Sender
	mws        []mw.Middleware
	broker     *stream.Broker
	runner     *runner.Runner

	pending []ext.Extension

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	mu      sync.RWMutex
	plans   map[string]*plan.Plan
	runs    map[string]*runner.Run
	order   []string
	stopped bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg burst.Config) Option {
	return func(eng *Engine) { eng.config = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithSender sets the delivery target.
func WithSender(s delivery.Sender) Option {
	return func(eng *Engine) { eng.sender = s }
}

// WithResolver sets the token resolver used for compile-time checks and
// send-time resolution.
func WithResolver(r *token.Resolver) Option {
	return func(eng *Engine) { eng.resolver = r }
}

// WithExtension registers an extension.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.pending = append(eng.pending, e) }
}

// WithMiddleware appends m after the default delivery middleware.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithTracerProvider sets the TracerProvider used by the tracing
// middleware. The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets the MeterProvider used by the metrics middleware
// and the observability extension. The global provider is used otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New builds an Engine.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		config: burst.DefaultConfig(),
		logger: slog.Default(),
		plans:  make(map[string]*plan.Plan),
		runs:   make(map[string]*runner.Run),
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.config.DurationBound <= 0 {
		return nil, fmt.Errorf("%w: duration bound must be positive", burst.ErrValidation)
	}
	if eng.resolver == nil {
		eng.resolver = token.NewResolver()
	}

	eng.extensions = ext.NewRegistry(eng.logger)

	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(
			eng.meterProvider.Meter("github.com/xraph/burst/observability"))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	eng.broker = stream.NewBroker(eng.logger)
	eng.extensions.Register(eng.broker)

	for _, e := range eng.pending {
		eng.extensions.Register(e)
	}
	eng.pending = nil

	if eng.sender != nil {
		r, err := runner.New(eng.sender,
			runner.WithLogger(eng.logger),
			runner.WithExtensions(eng.extensions),
			runner.WithResolver(eng.resolver),
			runner.WithMiddleware(eng.middleware()...),
			runner.WithTimeScale(eng.config.TimeScale),
			runner.WithStartTime(eng.config.StartTime),
		)
		if err != nil {
			return nil, err
		}
		eng.runner = r
	}
	return eng, nil
}

// middleware builds the delivery stack: recover, tracing, metrics,
// logging, timeout, then user middleware.
func (eng *Engine) middleware() []mw.Middleware {
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/xraph/burst"))
	} else {
		tracingMw = mw.Tracing()
	}

	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/xraph/burst"))
	} else {
		metricsMw = mw.Metrics()
	}

	out := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
	}
	if eng.config.DeliveryTimeout > 0 {
		out = append(out, mw.Timeout(eng.config.DeliveryTimeout))
	}
	return append(out, eng.mws...)
}

// Config returns the engine configuration.
func (eng *Engine) Config() burst.Config { return eng.config }

// Logger returns the engine logger.
func (eng *Engine) Logger() *slog.Logger { return eng.logger }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Resolver returns the token resolver.
func (eng *Engine) Resolver() *token.Resolver { return eng.resolver }

// Broker returns the stream broker fed by this engine's runs.
func (eng *Engine) Broker() *stream.Broker { return eng.broker }

// Compilation is the result of compiling generator output.
type Compilation struct {
	Plan    *plan.Plan             `json:"plan"`
	Repairs []string               `json:"repairs,omitempty"`
	Summary []plan.TemplateSummary `json:"summary"`
}

// Compile normalizes raw generator output, checks every placeholder
// against the resolver's registry and builds the dispatch plan. Token
// problems fail compilation only with Config.StrictTokens; otherwise they
// are logged and the affected entries are skipped when they fire. The
// plan is retained so it can be started later by ID.
func (eng *Engine) Compile(ctx context.Context, raw string) (*Compilation, error) {
	res, err := schedule.NormalizeDetailed(raw)
	if err != nil {
		return nil, err
	}
	c, err := eng.CompileTemplates(ctx, res.Templates)
	if err != nil {
		return nil, err
	}
	c.Repairs = res.Repairs
	if len(c.Repairs) > 0 {
		eng.logger.Info("schedule repaired",
			slog.String("plan_id", c.Plan.ID().String()),
			slog.Any("repairs", c.Repairs),
		)
	}
	return c, nil
}

// CompileTemplates is Compile for already normalized templates.
func (eng *Engine) CompileTemplates(ctx context.Context, templates []*schedule.Template) (*Compilation, error) {
	var errs []error
	for _, t := range templates {
		for _, v := range []any{t.Payload, t.Links, t.DedupKey, t.Client, t.ClientURL} {
			if err := eng.resolver.Check(v); err != nil {
				errs = append(errs, fmt.Errorf("event[%d]: %w", t.Index, err))
			}
		}
	}
	if len(errs) > 0 && eng.config.StrictTokens {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		eng.logger.Warn("template entries will be skipped", slog.String("error", err.Error()))
	}

	p, err := plan.Build(templates, eng.config.DurationBound,
		plan.WithEpsilon(eng.config.CollisionEpsilon),
		plan.WithMaxEntries(eng.config.MaxEntries),
	)
	if err != nil {
		return nil, err
	}

	eng.mu.Lock()
	eng.plans[p.ID().String()] = p
	eng.mu.Unlock()

	for _, t := range p.Flagged() {
		eng.logger.Info("major failure event",
			slog.String("plan_id", p.ID().String()),
			slog.Int("template", t.Index),
			slog.String("summary", t.Summary),
		)
	}
	eng.logger.Debug("plan compiled",
		slog.String("plan_id", p.ID().String()),
		slog.Int("templates", len(templates)),
		slog.Int("entries", p.Len()),
	)
	eng.extensions.EmitPlanCompiled(ctx, p)

	return &Compilation{
		Plan:    p,
		Summary: plan.Summarize(templates, eng.config.DurationBound),
	}, nil
}

// Plan returns a compiled plan by ID.
func (eng *Engine) Plan(planID string) (*plan.Plan, bool) {
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	p, ok := eng.plans[planID]
	return p, ok
}

// Start launches a run of p. ctx bounds the run: cancelling it aborts
// entries that have not fired. OnRunStarted hooks run while the engine
// lock is held and must not call back into the engine.
func (eng *Engine) Start(ctx context.Context, p *plan.Plan) (*runner.Run, error) {
	if eng.runner == nil {
		return nil, burst.ErrNoSender
	}

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.stopped {
		return nil, burst.ErrEngineStopped
	}
	if _, ok := eng.plans[p.ID().String()]; !ok {
		eng.plans[p.ID().String()] = p
	}

	rn := eng.runner.Start(ctx, p)
	key := rn.ID().String()
	eng.runs[key] = rn
	eng.order = append(eng.order, key)
	eng.evictLocked()
	return rn, nil
}

// evictLocked forgets the oldest finished runs beyond DefaultRetainedRuns.
func (eng *Engine) evictLocked() {
	excess := len(eng.order) - DefaultRetainedRuns
	if excess <= 0 {
		return
	}
	kept := eng.order[:0]
	for _, key := range eng.order {
		if excess > 0 && eng.runs[key].State().Terminal() {
			delete(eng.runs, key)
			excess--
			continue
		}
		kept = append(kept, key)
	}
	eng.order = kept
}

// Run returns a run by ID.
func (eng *Engine) Run(runID string) (*runner.Run, error) {
	if _, err := id.ParseRunID(runID); err != nil {
		return nil, fmt.Errorf("%w: %s", burst.ErrRunNotFound, runID)
	}
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	rn, ok := eng.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", burst.ErrRunNotFound, runID)
	}
	return rn, nil
}

// Runs returns report snapshots of the retained runs, oldest first.
func (eng *Engine) Runs() []*run.Report {
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	out := make([]*run.Report, 0, len(eng.order))
	for _, key := range eng.order {
		out = append(out, eng.runs[key].Report())
	}
	return out
}

// Abort aborts a run by ID.
func (eng *Engine) Abort(runID string) error {
	rn, err := eng.Run(runID)
	if err != nil {
		return err
	}
	rn.Abort()
	return nil
}

// Stop refuses new runs, aborts active ones, waits up to
// Config.ShutdownTimeout for their in-flight deliveries and notifies
// extensions of shutdown.
func (eng *Engine) Stop(ctx context.Context) error {
	eng.mu.Lock()
	if eng.stopped {
		eng.mu.Unlock()
		return nil
	}
	eng.stopped = true
	active := make([]*runner.Run, 0, len(eng.runs))
	for _, key := range eng.order {
		if rn := eng.runs[key]; !rn.State().Terminal() {
			active = append(active, rn)
		}
	}
	eng.mu.Unlock()

	if eng.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.config.ShutdownTimeout)
		defer cancel()
	}

	var waitErr error
	for _, rn := range active {
		rn.Abort()
	}
	for _, rn := range active {
		if _, err := rn.Wait(ctx); err != nil {
			waitErr = fmt.Errorf("engine: waiting for run %s: %w", rn.ID(), err)
			break
		}
	}

	eng.extensions.EmitShutdown(context.WithoutCancel(ctx))
	eng.logger.Info("engine stopped", slog.Int("aborted_runs", len(active)))
	return waitErr
}
