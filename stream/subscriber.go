package stream

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Subscriber receives events from the topics it is attached to.
//
// Each delivered event spends one credit. A subscriber with no credits, or
// whose buffer is full, misses events until it is topped up; missed events
// are counted, not queued.
type Subscriber struct {
	id string
	ch chan *Event

	credits atomic.Int64
	dropped atomic.Int64

	mu     sync.RWMutex
	topics map[string]struct{}
	types  map[EventType]struct{}

	closed atomic.Bool
}

// NewSubscriber returns a subscriber with a buffer of bufferSize events
// and initialCredits credits.
func NewSubscriber(id string, bufferSize int, initialCredits int64) *Subscriber {
	s := &Subscriber{
		id:     id,
		ch:     make(chan *Event, bufferSize),
		topics: make(map[string]struct{}),
	}
	s.credits.Store(initialCredits)
	return s
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C returns the event channel. It is closed when the subscriber is
// removed or the broker shuts down.
func (s *Subscriber) C() <-chan *Event { return s.ch }

// AddCredits grants n more events.
func (s *Subscriber) AddCredits(n int64) { s.credits.Add(n) }

// Credits returns the remaining credits.
func (s *Subscriber) Credits() int64 { return s.credits.Load() }

// Dropped returns how many events were missed.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// Only restricts delivery to the given event types. Calling it with no
// types removes the restriction.
func (s *Subscriber) Only(types ...EventType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(types) == 0 {
		s.types = nil
		return
	}
	s.types = make(map[EventType]struct{}, len(types))
	for _, t := range types {
		s.types[t] = struct{}{}
	}
}

// Topics returns the attached topics, sorted.
func (s *Subscriber) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (s *Subscriber) addTopic(topic string) {
	s.mu.Lock()
	s.topics[topic] = struct{}{}
	s.mu.Unlock()
}

func (s *Subscriber) removeTopic(topic string) {
	s.mu.Lock()
	delete(s.topics, topic)
	s.mu.Unlock()
}

// send offers evt without blocking and reports whether it was queued.
func (s *Subscriber) send(evt *Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed.Load() {
		return false
	}
	if s.types != nil {
		if _, ok := s.types[evt.Type]; !ok {
			return false
		}
	}

	for {
		n := s.credits.Load()
		if n <= 0 {
			s.dropped.Add(1)
			return false
		}
		if s.credits.CompareAndSwap(n, n-1) {
			break
		}
	}

	select {
	case s.ch <- evt:
		return true
	default:
		s.credits.Add(1)
		s.dropped.Add(1)
		return false
	}
}

// Close closes the event channel. It is safe to call more than once.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}
