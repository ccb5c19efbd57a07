package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/xraph/burst/id"
	"github.com/xraph/burst/run"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func receive(t *testing.T, sub *Subscriber) *Event {
	t.Helper()
	select {
	case evt, ok := <-sub.C():
		if !ok {
			t.Fatalf("subscriber %s closed", sub.ID())
		}
		return evt
	case <-time.After(time.Second):
		t.Fatalf("subscriber %s timed out", sub.ID())
	}
	return nil
}

func expectNone(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case evt := <-sub.C():
		t.Fatalf("subscriber %s got unexpected %s", sub.ID(), evt.Type)
	case <-time.After(20 * time.Millisecond):
	}
}

func testOutcome(runID id.RunID) run.Outcome {
	return run.Outcome{
		RunID:      runID,
		DeliveryID: id.NewDeliveryID(),
		Template:   1,
		Occurrence: 2,
		Attempt:    "repeat 2",
		Offset:     90 * time.Second,
		Summary:    "disk full",
		Kind:       "alert",
		Status:     run.StatusDelivered,
	}
}

func TestBroker_RunTopicRouting(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger())

	runA, runB := id.NewRunID(), id.NewRunID()
	subA := b.Subscribe("a", RunTopic(runA.String()))
	subB := b.Subscribe("b", RunTopic(runB.String()))
	all := b.Subscribe("all", TopicRuns)

	if err := b.OnEntryDelivered(context.Background(), testOutcome(runA)); err != nil {
		t.Fatal(err)
	}

	evt := receive(t, subA)
	if evt.Type != EventEntryDelivered || evt.Topic != RunTopic(runA.String()) {
		t.Fatalf("event = %+v", evt)
	}
	var d EntryEventData
	if err := json.Unmarshal(evt.Data, &d); err != nil {
		t.Fatal(err)
	}
	if d.Attempt != "repeat 2" || d.OffsetSecs != 90 || d.Summary != "disk full" {
		t.Fatalf("data = %+v", d)
	}

	receive(t, all)
	expectNone(t, subB)
}

func TestBroker_FirehoseGetsReplayEvents(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger())
	fire := b.Subscribe("fire", TopicFirehose)
	runs := b.Subscribe("runs", TopicRuns)

	runID := id.NewRunID()
	_ = b.OnReplayFired(context.Background(), "nightly", runID)

	evt := receive(t, fire)
	var d ReplayEventData
	_ = json.Unmarshal(evt.Data, &d)
	if evt.Type != EventReplayFired || d.Name != "nightly" || d.RunID != runID.String() {
		t.Fatalf("event = %+v data = %+v", evt, d)
	}
	expectNone(t, runs)
}

func TestBroker_DeduplicatesAcrossTopics(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger())
	runID := id.NewRunID()
	sub := b.Subscribe("s", TopicFirehose, TopicRuns, RunTopic(runID.String()))

	_ = b.OnEntrySkipped(context.Background(), testOutcome(runID), errors.New("x"))

	receive(t, sub)
	expectNone(t, sub)
}

func TestBroker_RunCompletedIsFinal(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger())
	runID := id.NewRunID()
	sub := b.Subscribe("s", RunTopic(runID.String()))

	start := time.Now().Add(-time.Second)
	_ = b.OnRunCompleted(context.Background(), &run.Report{
		RunID:      runID,
		State:      run.StateCompleted,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Totals:     run.Totals{Scheduled: 3, Fired: 3, Delivered: 3},
	})

	evt := receive(t, sub)
	if !evt.Final() {
		t.Fatalf("%s should be final", evt.Type)
	}
	var d RunEventData
	_ = json.Unmarshal(evt.Data, &d)
	if d.Delivered != 3 || d.ElapsedMs != 1500 || d.State != "completed" {
		t.Fatalf("data = %+v", d)
	}
}

func TestBroker_CreditsAndDrops(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger(), WithDefaultCredits(1))
	runID := id.NewRunID()
	sub := b.Subscribe("s", RunTopic(runID.String()))

	_ = b.OnEntryDelivered(context.Background(), testOutcome(runID))
	_ = b.OnEntryDelivered(context.Background(), testOutcome(runID))

	receive(t, sub)
	expectNone(t, sub)
	if sub.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1", sub.Dropped())
	}

	sub.AddCredits(1)
	_ = b.OnEntryDelivered(context.Background(), testOutcome(runID))
	receive(t, sub)

	if st := b.Stats(); st.TotalPublished != 2 || st.TotalDropped != 1 {
		t.Fatalf("Stats = %+v", st)
	}
}

func TestBroker_FullBufferDrops(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger(), WithBufferSize(1))
	runID := id.NewRunID()
	sub := b.Subscribe("s", RunTopic(runID.String()))

	_ = b.OnEntryDelivered(context.Background(), testOutcome(runID))
	_ = b.OnEntryDelivered(context.Background(), testOutcome(runID))

	if sub.Dropped() != 1 || sub.Credits() != DefaultCredits-1 {
		t.Fatalf("Dropped = %d Credits = %d", sub.Dropped(), sub.Credits())
	}
}

func TestSubscriber_Only(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger())
	runID := id.NewRunID()
	sub := b.Subscribe("s", RunTopic(runID.String()))
	sub.Only(EventEntryFailed)

	_ = b.OnEntryDelivered(context.Background(), testOutcome(runID))
	expectNone(t, sub)

	_ = b.OnEntryFailed(context.Background(), testOutcome(runID), errors.New("503"))
	if evt := receive(t, sub); evt.Type != EventEntryFailed {
		t.Fatalf("Type = %s", evt.Type)
	}
}

func TestBroker_RemoveSubscriberClosesChannel(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger())
	sub := b.Subscribe("s", TopicFirehose, TopicRuns)
	b.RemoveSubscriber("s")

	if _, ok := <-sub.C(); ok {
		t.Fatal("channel still open")
	}
	if b.Topics().TopicCount() != 0 {
		t.Fatalf("TopicCount = %d, want 0", b.Topics().TopicCount())
	}
	if _, ok := b.Subscriber("s"); ok {
		t.Fatal("subscriber still registered")
	}
}

func TestBroker_ShutdownClosesEverySubscriber(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger())
	s1 := b.Subscribe("1", TopicFirehose)
	s2 := b.Subscribe("2", TopicRuns)

	if err := b.OnShutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, s := range []*Subscriber{s1, s2} {
		if _, ok := <-s.C(); ok {
			t.Fatalf("subscriber %s still open", s.ID())
		}
	}
	if b.Stats().SubscriberCount != 0 {
		t.Fatal("subscribers remain after shutdown")
	}
}

func TestValidateTopic(t *testing.T) {
	t.Parallel()
	tests := []struct {
		topic string
		ok    bool
	}{
		{TopicRuns, true},
		{TopicFirehose, true},
		{RunTopic("run_01h"), true},
		{"run:", false},
		{"job:1", false},
		{"nonsense", false},
	}
	for _, tt := range tests {
		if err := ValidateTopic(tt.topic); (err == nil) != tt.ok {
			t.Errorf("ValidateTopic(%q) = %v, want ok=%v", tt.topic, err, tt.ok)
		}
	}
}

func TestSnapshot(t *testing.T) {
	t.Parallel()
	r := &run.Report{
		RunID:     id.NewRunID(),
		PlanID:    id.NewPlanID(),
		State:     run.StateRunning,
		StartedAt: time.Now().Add(-time.Second),
		Totals:    run.Totals{Scheduled: 5, Fired: 2, Delivered: 2},
	}
	evt := Snapshot(r)
	if evt.Type != EventRunSnapshot || evt.Topic != RunTopic(r.RunID.String()) {
		t.Fatalf("event = %+v", evt)
	}
	if evt.Final() {
		t.Error("snapshot reported final")
	}
	var d RunEventData
	if err := json.Unmarshal(evt.Data, &d); err != nil {
		t.Fatal(err)
	}
	if d.Scheduled != 5 || d.Delivered != 2 || d.State != "running" || d.ElapsedMs < 1000 {
		t.Fatalf("data = %+v", d)
	}
}
