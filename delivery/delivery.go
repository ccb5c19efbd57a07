package delivery

import (
	"context"
	"time"

	"github.com/xraph/burst/id"
	"github.com/xraph/burst/schedule"
)

// Message is one resolved send.
type Message struct {
	ID    id.DeliveryID `json:"id"`
	RunID id.RunID      `json:"run_id"`

	Kind   schedule.Kind   `json:"kind"`
	Action schedule.Action `json:"action,omitempty"`

	// Payload is the resolved copy of the template payload.
	Payload map[string]any `json:"payload"`

	DedupKey  string `json:"dedup_key,omitempty"`
	Client    string `json:"client,omitempty"`
	ClientURL string `json:"client_url,omitempty"`
	Links     []any  `json:"links,omitempty"`

	Template   int           `json:"template"`
	Occurrence int           `json:"occurrence"`
	Attempt    string        `json:"attempt"`
	Offset     time.Duration `json:"offset"`
}

// Summary returns payload.summary.
func (m Message) Summary() string {
	s, _ := m.Payload["summary"].(string)
	return s
}

// Receipt is the receiver's answer to one send.
type Receipt struct {
	StatusCode int    `json:"status_code,omitempty"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
	DedupKey   string `json:"dedup_key,omitempty"`

	// Attempts counts HTTP requests made, including retries.
	Attempts int `json:"attempts,omitempty"`
}

// Sender hands one message to the receiver. Implementations must be safe
// for concurrent use.
type Sender interface {
	Deliver(ctx context.Context, m Message) (Receipt, error)
}

// Func adapts a function to Sender.
type Func func(ctx context.Context, m Message) (Receipt, error)

// Deliver calls f.
func (f Func) Deliver(ctx context.Context, m Message) (Receipt, error) {
	return f(ctx, m)
}

// Envelope renders m in the receiver's wire format. Alerts carry
// event_action and the optional dedup and client fields; change events
// carry links.
func Envelope(m Message, routingKey string) map[string]any {
	body := map[string]any{
		"routing_key": routingKey,
		"payload":     m.Payload,
	}
	if m.Kind == schedule.KindChange {
		links := m.Links
		if links == nil {
			links = []any{}
		}
		body["links"] = links
		return body
	}

	body["event_action"] = string(m.Action)
	if m.DedupKey != "" {
		body["dedup_key"] = m.DedupKey
	}
	if m.Client != "" {
		body["client"] = m.Client
	}
	if m.ClientURL != "" {
		body["client_url"] = m.ClientURL
	}
	return body
}
