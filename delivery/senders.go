package delivery

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Log returns a sender that only logs each message. It is the dry-run
// sender used when no routing key is configured.
func Log(logger *slog.Logger) Sender {
	return Func(func(_ context.Context, m Message) (Receipt, error) {
		logger.Info("dry-run delivery",
			slog.String("delivery_id", m.ID.String()),
			slog.String("kind", string(m.Kind)),
			slog.String("action", string(m.Action)),
			slog.String("summary", m.Summary()),
			slog.String("attempt", m.Attempt),
			slog.Duration("offset", m.Offset),
		)
		return Receipt{Status: "logged"}, nil
	})
}

// Recorder keeps every delivered message in memory. Fail, when set,
// decides the outcome of each send.
type Recorder struct {
	Fail func(Message) error

	mu       sync.Mutex
	messages []Message
	notify   chan struct{}
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// Deliver records m.
func (r *Recorder) Deliver(_ context.Context, m Message) (Receipt, error) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	fail := r.Fail
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}

	if fail != nil {
		if err := fail(m); err != nil {
			return Receipt{StatusCode: 500}, err
		}
	}
	return Receipt{StatusCode: 202, Status: "success"}, nil
}

// Messages returns a copy of the recorded messages in arrival order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.messages)
}

// Len returns the number of recorded messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// Notify is signalled after each recorded message.
func (r *Recorder) Notify() <-chan struct{} { return r.notify }
