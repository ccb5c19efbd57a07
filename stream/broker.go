package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/burst/delivery"
	"github.com/xraph/burst/ext"
	"github.com/xraph/burst/id"
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/run"
)

// Compile-time interface checks.
var (
	_ ext.Extension      = (*Broker)(nil)
	_ ext.PlanCompiled   = (*Broker)(nil)
	_ ext.RunStarted     = (*Broker)(nil)
	_ ext.EntryFired     = (*Broker)(nil)
	_ ext.EntryDelivered = (*Broker)(nil)
	_ ext.EntryFailed    = (*Broker)(nil)
	_ ext.EntrySkipped   = (*Broker)(nil)
	_ ext.RunCompleted   = (*Broker)(nil)
	_ ext.ReplayFired    = (*Broker)(nil)
	_ ext.Shutdown       = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credit grant.
const DefaultCredits int64 = 1000

// Broker turns lifecycle hooks into events on topics.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	subscribers sync.Map // id → *Subscriber

	published atomic.Int64
	dropped   atomic.Int64

	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithDefaultCredits sets the credits granted to new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.defaultCredits = credits }
}

// NewBroker returns a broker with no subscribers.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "stream-broker" }

// Topics returns the topic registry.
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe registers a subscriber on topics. An existing subscriber
// with the same id is replaced.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	b.RemoveSubscriber(subscriberID)
	sub := NewSubscriber(subscriberID, b.bufferSize, b.defaultCredits)
	b.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// RemoveSubscriber detaches a subscriber from every topic and closes it.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	if v, ok := b.subscribers.LoadAndDelete(subscriberID); ok {
		sub := v.(*Subscriber) //nolint:errcheck // only *Subscriber is stored
		b.dropped.Add(sub.Dropped())
		sub.Close()
	}
}

// Subscriber returns a registered subscriber.
func (b *Broker) Subscriber(subscriberID string) (*Subscriber, bool) {
	v, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return nil, false
	}
	return v.(*Subscriber), true //nolint:errcheck // only *Subscriber is stored
}

// BrokerStats are broker counters.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// Stats returns current counters.
func (b *Broker) Stats() BrokerStats {
	count := 0
	dropped := b.dropped.Load()
	b.subscribers.Range(func(_, v any) bool {
		count++
		dropped += v.(*Subscriber).Dropped() //nolint:errcheck // only *Subscriber is stored
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.published.Load(),
		TotalDropped:    dropped,
	}
}

func (b *Broker) publish(t EventType, topic string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		b.logger.Error("stream: marshal event",
			slog.String("type", string(t)),
			slog.String("error", err.Error()),
		)
		return
	}
	evt := &Event{Type: t, Timestamp: time.Now().UTC(), Topic: topic, Data: raw}
	b.published.Add(int64(b.topics.Broadcast(topicsFor(evt), evt)))
}

// Snapshot returns a run.snapshot event describing r on its run topic.
func Snapshot(r *run.Report) *Event {
	d := runData(r)
	d.ElapsedMs = r.Elapsed().Milliseconds()
	raw, _ := json.Marshal(d) //nolint:errcheck // RunEventData always marshals
	return &Event{
		Type:      EventRunSnapshot,
		Timestamp: time.Now().UTC(),
		Topic:     RunTopic(r.RunID.String()),
		Data:      raw,
	}
}

func runData(r *run.Report) RunEventData {
	return RunEventData{
		RunID:     r.RunID.String(),
		PlanID:    r.PlanID.String(),
		State:     string(r.State),
		Scheduled: r.Totals.Scheduled,
		Fired:     r.Totals.Fired,
		Delivered: r.Totals.Delivered,
		Failed:    r.Totals.Failed,
		Skipped:   r.Totals.Skipped,
	}
}

func entryData(o run.Outcome) EntryEventData {
	return EntryEventData{
		RunID:      o.RunID.String(),
		DeliveryID: o.DeliveryID.String(),
		Template:   o.Template,
		Occurrence: o.Occurrence,
		Attempt:    o.Attempt,
		OffsetSecs: o.Offset.Seconds(),
		Summary:    o.Summary,
		Kind:       o.Kind,
		StatusCode: o.Receipt.StatusCode,
		ElapsedMs:  o.Elapsed.Milliseconds(),
		Error:      o.Error,
	}
}

// ── Plan hooks ──────────────────────────────────────

func (b *Broker) OnPlanCompiled(_ context.Context, p *plan.Plan) error {
	d := PlanEventData{
		PlanID:    p.ID().String(),
		Templates: len(p.Templates()),
		Entries:   p.Len(),
		SpanSecs:  p.Span().Seconds(),
	}
	for _, t := range p.Flagged() {
		d.Flagged = append(d.Flagged, t.Index)
	}
	b.publish(EventPlanCompiled, "", d)
	return nil
}

// ── Run hooks ───────────────────────────────────────

func (b *Broker) OnRunStarted(_ context.Context, r *run.Report) error {
	b.publish(EventRunStarted, RunTopic(r.RunID.String()), runData(r))
	return nil
}

func (b *Broker) OnRunCompleted(_ context.Context, r *run.Report) error {
	d := runData(r)
	d.ElapsedMs = r.Elapsed().Milliseconds()
	b.publish(EventRunCompleted, RunTopic(r.RunID.String()), d)
	return nil
}

// ── Entry hooks ─────────────────────────────────────

func (b *Broker) OnEntryFired(_ context.Context, m delivery.Message) error {
	b.publish(EventEntryFired, RunTopic(m.RunID.String()), EntryEventData{
		RunID:      m.RunID.String(),
		DeliveryID: m.ID.String(),
		Template:   m.Template,
		Occurrence: m.Occurrence,
		Attempt:    m.Attempt,
		OffsetSecs: m.Offset.Seconds(),
		Summary:    m.Summary(),
		Kind:       string(m.Kind),
	})
	return nil
}

func (b *Broker) OnEntryDelivered(_ context.Context, o run.Outcome) error {
	b.publish(EventEntryDelivered, RunTopic(o.RunID.String()), entryData(o))
	return nil
}

func (b *Broker) OnEntryFailed(_ context.Context, o run.Outcome, _ error) error {
	b.publish(EventEntryFailed, RunTopic(o.RunID.String()), entryData(o))
	return nil
}

func (b *Broker) OnEntrySkipped(_ context.Context, o run.Outcome, _ error) error {
	b.publish(EventEntrySkipped, RunTopic(o.RunID.String()), entryData(o))
	return nil
}

// ── Replay hooks ────────────────────────────────────

func (b *Broker) OnReplayFired(_ context.Context, name string, runID id.RunID) error {
	b.publish(EventReplayFired, "", ReplayEventData{Name: name, RunID: runID.String()})
	return nil
}

// ── Shutdown ────────────────────────────────────────

func (b *Broker) OnShutdown(context.Context) error {
	b.subscribers.Range(func(key, _ any) bool {
		b.RemoveSubscriber(key.(string)) //nolint:errcheck // keys are subscriber ids
		return true
	})
	b.logger.Info("stream broker shut down")
	return nil
}
