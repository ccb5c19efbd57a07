package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/burst"
	"github.com/xraph/burst/delivery"
	"github.com/xraph/burst/id"
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/run"
	"github.com/xraph/burst/schedule"
)

// Run is one execution of a plan.
type Run struct {
	id     id.RunID
	plan   *plan.Plan
	runner *Runner

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	t0     time.Time
	anchor time.Time

	mu     sync.Mutex
	report *run.Report
}

// ID returns the run identifier.
func (rn *Run) ID() id.RunID { return rn.id }

// Plan returns the plan being executed.
func (rn *Run) Plan() *plan.Plan { return rn.plan }

// Abort stops entries that have not fired yet. Deliveries already handed
// to the sender complete.
func (rn *Run) Abort() { rn.cancel() }

// Done is closed once every entry has an outcome.
func (rn *Run) Done() <-chan struct{} { return rn.done }

// Wait blocks until the run finishes or ctx is done and returns the
// report at that point.
func (rn *Run) Wait(ctx context.Context) (*run.Report, error) {
	select {
	case <-rn.done:
		return rn.Report(), nil
	case <-ctx.Done():
		return rn.Report(), ctx.Err()
	}
}

// Report returns a snapshot of the run report.
func (rn *Run) Report() *run.Report {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	return rn.report.Clone()
}

// State returns the current run state.
func (rn *Run) State() run.State {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	return rn.report.State
}

// scaled converts a scenario offset to wall-clock time since start.
func (rn *Run) scaled(offset time.Duration) time.Duration {
	return time.Duration(float64(offset) / rn.runner.scale)
}

// scenarioNow is the instant relative timestamps resolve against.
func (rn *Run) scenarioNow() time.Time {
	elapsed := time.Duration(float64(time.Since(rn.t0)) * rn.runner.scale)
	return rn.anchor.Add(elapsed)
}

// waitUntil blocks until due, reporting false if the run was aborted
// first.
func (rn *Run) waitUntil(due time.Time) bool {
	if d := time.Until(due); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-rn.ctx.Done():
		}
	}
	return rn.ctx.Err() == nil
}

func (rn *Run) loop() {
	defer close(rn.done)
	defer rn.cancel()

	logger := rn.runner.logger
	var inflight errgroup.Group

	// last holds, per template, a channel closed once that template's
	// most recent entry has been handed to the sender.
	last := make(map[*schedule.Template]chan struct{})

	fired := 0
	for fired < rn.plan.Len() {
		e := rn.plan.At(fired)
		if !rn.waitUntil(rn.t0.Add(rn.scaled(e.Offset))) {
			break
		}

		prev := last[e.Template]
		handed := make(chan struct{})
		last[e.Template] = handed

		o := run.NewOutcome(rn.id, e)
		o.FiredAt = time.Now().UTC()
		now := rn.scenarioNow()

		rn.mu.Lock()
		rn.report.Totals.Fired++
		rn.mu.Unlock()

		inflight.Go(func() error {
			rn.deliver(e, o, now, prev, handed)
			return nil
		})
		fired++
	}

	// Background keeps hooks running after an abort cancelled rn.ctx.
	hookCtx := context.WithoutCancel(rn.ctx)
	for i := fired; i < rn.plan.Len(); i++ {
		o := run.NewOutcome(rn.id, rn.plan.At(i))
		o.Status = run.StatusSkipped
		o.Error = burst.ErrRunAborted.Error()
		rn.record(o)
		rn.runner.extensions.EmitEntrySkipped(hookCtx, o, burst.ErrRunAborted)
	}

	_ = inflight.Wait()

	rn.mu.Lock()
	rn.report.State = run.StateCompleted
	if fired < rn.plan.Len() {
		rn.report.State = run.StateAborted
	}
	rn.report.FinishedAt = time.Now().UTC()
	final := rn.report.Clone()
	rn.mu.Unlock()

	logger.Info("run finished",
		slog.String("run_id", rn.id.String()),
		slog.String("state", string(final.State)),
		slog.Int("delivered", final.Totals.Delivered),
		slog.Int("failed", final.Totals.Failed),
		slog.Int("skipped", final.Totals.Skipped),
		slog.Duration("elapsed", final.Elapsed()),
	)
	rn.runner.extensions.EmitRunCompleted(hookCtx, final)
}

// deliver resolves and sends one entry. It hands the message to the
// sender only after the template's previous entry was handed over, and
// never waits for that entry's outcome.
func (rn *Run) deliver(e plan.Entry, o run.Outcome, now time.Time, prev, handed chan struct{}) {
	ctx := context.WithoutCancel(rn.ctx)
	r := rn.runner

	msg, err := rn.safeMessage(e, o, now)
	if prev != nil {
		<-prev
	}
	close(handed)

	if err != nil {
		o.Status = run.StatusSkipped
		o.Error = err.Error()
		r.logger.Warn("entry skipped",
			slog.String("run_id", rn.id.String()),
			slog.String("summary", o.Summary),
			slog.String("attempt", o.Attempt),
			slog.String("error", err.Error()),
		)
		rn.record(o)
		r.extensions.EmitEntrySkipped(ctx, o, err)
		return
	}

	r.extensions.EmitEntryFired(ctx, msg)

	start := time.Now()
	rcpt, err := r.sender.Deliver(ctx, msg)
	o.Elapsed = time.Since(start)
	o.Receipt = rcpt

	if err != nil {
		o.Status = run.StatusFailed
		o.Error = err.Error()
		rn.record(o)
		r.extensions.EmitEntryFailed(ctx, o, err)
		return
	}
	o.Status = run.StatusDelivered
	rn.record(o)
	r.extensions.EmitEntryDelivered(ctx, o)
}

// message builds the resolved message for e. Every string leaf of the
// payload, links and routing fields is resolved with one Context.
// safeMessage is message with generator panics turned into errors, so a
// faulty generator skips one entry instead of the whole process.
func (rn *Run) safeMessage(e plan.Entry, o run.Outcome, now time.Time) (msg delivery.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("token resolution panicked: %v", r)
		}
	}()
	return rn.message(e, o, now)
}

func (rn *Run) message(e plan.Entry, o run.Outcome, now time.Time) (delivery.Message, error) {
	res := rn.runner.resolver
	t := e.Template
	c := res.ContextAt(now, t.Index, e.Occurrence)

	payload, err := res.ResolvePayload(t.Payload, c)
	if err != nil {
		return delivery.Message{}, fmt.Errorf("resolve payload: %w", err)
	}

	m := delivery.Message{
		ID:         o.DeliveryID,
		RunID:      rn.id,
		Kind:       t.Kind,
		Action:     t.Action,
		Payload:    payload,
		Template:   t.Index,
		Occurrence: e.Occurrence,
		Attempt:    o.Attempt,
		Offset:     e.Offset,
	}

	for _, f := range []struct {
		name string
		in   string
		out  *string
	}{
		{"dedup_key", t.DedupKey, &m.DedupKey},
		{"client", t.Client, &m.Client},
		{"client_url", t.ClientURL, &m.ClientURL},
	} {
		if *f.out, err = res.Resolve(f.in, c); err != nil {
			return delivery.Message{}, fmt.Errorf("resolve %s: %w", f.name, err)
		}
	}

	if t.Links != nil {
		links, err := res.ResolveValue(t.Links, c)
		if err != nil {
			return delivery.Message{}, fmt.Errorf("resolve links: %w", err)
		}
		m.Links = links.([]any)
	}
	return m, nil
}

func (rn *Run) record(o run.Outcome) {
	rn.mu.Lock()
	rn.report.Record(o)
	rn.mu.Unlock()
}
