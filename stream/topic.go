package stream

import (
	"fmt"
	"strings"
	"sync"
)

// Topic names:
//
//	run:<runID>   events of one run
//	runs          run and entry events of every run
//	firehose      everything, including plan and replay events
const (
	TopicRuns     = "runs"
	TopicFirehose = "firehose"
)

// RunTopic returns the topic of one run.
func RunTopic(runID string) string { return "run:" + runID }

// TopicRegistry maps topics to their subscribers. It is safe for
// concurrent use.
type TopicRegistry struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Subscriber
}

// NewTopicRegistry returns an empty registry.
func NewTopicRegistry() *TopicRegistry {
	return &TopicRegistry{topics: make(map[string]map[string]*Subscriber)}
}

// Subscribe attaches sub to topic.
func (tr *TopicRegistry) Subscribe(topic string, sub *Subscriber) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	subs, ok := tr.topics[topic]
	if !ok {
		subs = make(map[string]*Subscriber)
		tr.topics[topic] = subs
	}
	subs[sub.ID()] = sub
	sub.addTopic(topic)
}

// Unsubscribe detaches a subscriber from topic and drops empty topics.
func (tr *TopicRegistry) Unsubscribe(topic, subscriberID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.detach(topic, subscriberID)
}

// UnsubscribeAll detaches a subscriber from every topic.
func (tr *TopicRegistry) UnsubscribeAll(subscriberID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for topic := range tr.topics {
		tr.detach(topic, subscriberID)
	}
}

func (tr *TopicRegistry) detach(topic, subscriberID string) {
	subs, ok := tr.topics[topic]
	if !ok {
		return
	}
	if sub, ok := subs[subscriberID]; ok {
		sub.removeTopic(topic)
		delete(subs, subscriberID)
	}
	if len(subs) == 0 {
		delete(tr.topics, topic)
	}
}

// Broadcast offers evt once to every subscriber on any of topics and
// returns how many accepted it.
func (tr *TopicRegistry) Broadcast(topics []string, evt *Event) int {
	tr.mu.RLock()
	targets := make(map[string]*Subscriber)
	for _, topic := range topics {
		for id, sub := range tr.topics[topic] {
			targets[id] = sub
		}
	}
	tr.mu.RUnlock()

	n := 0
	for _, sub := range targets {
		if sub.send(evt) {
			n++
		}
	}
	return n
}

// TopicCount returns the number of topics with subscribers.
func (tr *TopicRegistry) TopicCount() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.topics)
}

// SubscriberCount returns the number of subscribers on topic.
func (tr *TopicRegistry) SubscriberCount(topic string) int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.topics[topic])
}

// topicsFor lists the topics evt is published on.
func topicsFor(evt *Event) []string {
	topics := []string{TopicFirehose}
	if strings.HasPrefix(string(evt.Type), "run.") || strings.HasPrefix(string(evt.Type), "entry.") {
		topics = append(topics, TopicRuns)
	}
	if evt.Topic != "" {
		topics = append(topics, evt.Topic)
	}
	return topics
}

// ValidateTopic reports whether topic is a known topic name.
func ValidateTopic(topic string) error {
	switch topic {
	case TopicRuns, TopicFirehose:
		return nil
	}
	kind, ref, ok := strings.Cut(topic, ":")
	if !ok || ref == "" {
		return fmt.Errorf("stream: invalid topic %q", topic)
	}
	if kind != "run" {
		return fmt.Errorf("stream: unknown topic kind %q", kind)
	}
	return nil
}
