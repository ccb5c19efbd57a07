package replay

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/burst"
	"github.com/xraph/burst/id"
	"github.com/xraph/burst/plan"
)

// StartFunc starts a run of p and returns its ID. The engine provides it.
type StartFunc func(ctx context.Context, p *plan.Plan) (id.RunID, error)

// Emitter emits replay lifecycle events. ext.Registry satisfies it.
type Emitter interface {
	EmitReplayFired(ctx context.Context, name string, runID id.RunID)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often due entries are checked.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

type slot struct {
	entry Entry
	sched cronlib.Schedule
}

// Scheduler fires replay entries on a tick loop.
type Scheduler struct {
	start   StartFunc
	emitter Emitter
	logger  *slog.Logger

	tickInterval time.Duration
	now          func() time.Time

	mu      sync.Mutex
	entries map[string]*slot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler returns a Scheduler with no entries.
func NewScheduler(start StartFunc, emitter Emitter, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		start:        start,
		emitter:      emitter,
		logger:       logger,
		tickInterval: time.Second,
		now:          time.Now,
		entries:      make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers an enabled entry. Names are unique.
func (s *Scheduler) Add(name, schedule string, p *plan.Plan) (Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Entry{}, fmt.Errorf("%w: replay name is empty", burst.ErrValidation)
	}
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: replay %q schedule %q: %w", burst.ErrValidation, name, schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return Entry{}, fmt.Errorf("%w: %s", burst.ErrDuplicateReplay, name)
	}
	next := sched.Next(s.now().UTC())
	sl := &slot{
		entry: Entry{
			ID:        id.NewReplayID(),
			Name:      name,
			Schedule:  schedule,
			Plan:      p,
			PlanID:    p.ID(),
			Enabled:   true,
			NextRunAt: &next,
		},
		sched: sched,
	}
	s.entries[name] = sl
	s.logger.Info("replay added",
		slog.String("replay", name),
		slog.String("schedule", schedule),
		slog.Time("next_run_at", next),
	)
	return sl.entry, nil
}

// Remove deletes an entry.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		return fmt.Errorf("%w: %s", burst.ErrReplayNotFound, name)
	}
	delete(s.entries, name)
	return nil
}

// SetEnabled enables or disables an entry. Re-enabling schedules the next
// fire from now rather than catching up.
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", burst.ErrReplayNotFound, name)
	}
	if enabled && !sl.entry.Enabled {
		next := sl.sched.Next(s.now().UTC())
		sl.entry.NextRunAt = &next
	}
	sl.entry.Enabled = enabled
	return nil
}

// Get returns an entry by name.
func (s *Scheduler) Get(name string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", burst.ErrReplayNotFound, name)
	}
	return sl.entry, nil
}

// Entries returns every entry sorted by name.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, sl := range s.entries {
		out = append(out, sl.entry)
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Start launches the tick loop. Runs are started with a context derived
// from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.tickLoop()
	s.logger.Info("replay scheduler started", slog.Duration("tick_interval", s.tickInterval))
	return nil
}

// Stop ends the tick loop. Runs already started are not affected.
func (s *Scheduler) Stop(_ context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("replay scheduler stopped")
	return nil
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick(s.ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()

	s.mu.Lock()
	var due []*slot
	for _, sl := range s.entries {
		if sl.entry.Enabled && sl.entry.NextRunAt != nil && !sl.entry.NextRunAt.After(now) {
			due = append(due, sl)
		}
	}
	s.mu.Unlock()

	for _, sl := range due {
		s.fire(ctx, sl, now)
	}
}

func (s *Scheduler) fire(ctx context.Context, sl *slot, now time.Time) {
	// Advance before starting so a slow start cannot double-fire.
	s.mu.Lock()
	name, p := sl.entry.Name, sl.entry.Plan
	next := sl.sched.Next(now)
	sl.entry.NextRunAt = &next
	s.mu.Unlock()

	runID, err := s.start(ctx, p)
	if err != nil {
		s.logger.Error("replay start error",
			slog.String("replay", name),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	sl.entry.Fired++
	sl.entry.LastRunID = runID
	sl.entry.LastRunAt = &now
	s.mu.Unlock()

	if s.emitter != nil {
		s.emitter.EmitReplayFired(ctx, name, runID)
	}
	s.logger.Info("replay fired",
		slog.String("replay", name),
		slog.String("run_id", runID.String()),
		slog.Time("next_run_at", next),
	)
}
