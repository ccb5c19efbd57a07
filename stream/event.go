// Package stream fans run lifecycle events out to live subscribers. The
// Broker is an ext extension; subscribers attach to topics and receive
// events under credit-based flow control.
package stream

import (
	"encoding/json"
	"time"
)

// EventType identifies a lifecycle event.
type EventType string

const (
	EventPlanCompiled EventType = "plan.compiled"

	EventRunStarted   EventType = "run.started"
	EventRunCompleted EventType = "run.completed"

	// EventRunSnapshot is never broadcast. Stream endpoints send it first
	// so late subscribers see the totals accumulated before they attached.
	EventRunSnapshot EventType = "run.snapshot"

	EventEntryFired     EventType = "entry.fired"
	EventEntryDelivered EventType = "entry.delivered"
	EventEntryFailed    EventType = "entry.failed"
	EventEntrySkipped   EventType = "entry.skipped"

	EventReplayFired EventType = "replay.fired"
)

// Event is the envelope published on topics.
type Event struct {
	Type      EventType       `json:"type" msgpack:"type"`
	Timestamp time.Time       `json:"ts" msgpack:"ts"`
	Topic     string          `json:"topic" msgpack:"topic"`
	Data      json.RawMessage `json:"data" msgpack:"data"`
}

// Final reports whether no further events follow on the event's run topic.
func (e *Event) Final() bool { return e.Type == EventRunCompleted }

// PlanEventData is the payload of plan.compiled.
type PlanEventData struct {
	PlanID    string  `json:"plan_id"`
	Templates int     `json:"templates"`
	Entries   int     `json:"entries"`
	SpanSecs  float64 `json:"span_seconds"`
	Flagged   []int   `json:"flagged,omitempty"`
}

// RunEventData is the payload of run.started and run.completed.
type RunEventData struct {
	RunID     string `json:"run_id"`
	PlanID    string `json:"plan_id"`
	State     string `json:"state"`
	Scheduled int    `json:"scheduled"`
	Fired     int    `json:"fired,omitempty"`
	Delivered int    `json:"delivered,omitempty"`
	Failed    int    `json:"failed,omitempty"`
	Skipped   int    `json:"skipped,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty"`
}

// EntryEventData is the payload of the entry.* events.
type EntryEventData struct {
	RunID      string  `json:"run_id"`
	DeliveryID string  `json:"delivery_id"`
	Template   int     `json:"template"`
	Occurrence int     `json:"occurrence"`
	Attempt    string  `json:"attempt"`
	OffsetSecs float64 `json:"offset_seconds"`
	Summary    string  `json:"summary"`
	Kind       string  `json:"kind"`
	StatusCode int     `json:"status_code,omitempty"`
	ElapsedMs  int64   `json:"elapsed_ms,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// ReplayEventData is the payload of replay.fired.
type ReplayEventData struct {
	Name  string `json:"name"`
	RunID string `json:"run_id"`
}
