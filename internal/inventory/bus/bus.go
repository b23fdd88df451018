// Package bus is the in-process event bus the offline queue and alert
// engine subscribe to. It replaces runtime-global listener registration with
// explicit subscriptions owned by the composition root.
package bus

import (
	"sync"
	"time"
)

// Topic names a stream of events
type Topic string

const (
	// TopicConnectivity carries ConnectivityEvent values
	TopicConnectivity Topic = "connectivity.changed"
	// TopicAlert carries alert notifications for UI fan-out
	TopicAlert Topic = "alert.raised"
)

// Event is a bus message
type Event struct {
	Topic     Topic
	Payload   interface{}
	Timestamp time.Time
}

// ConnectivityEvent signals an online/offline transition
type ConnectivityEvent struct {
	Online bool
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// that falls behind misses events, which is acceptable for edge-triggered
// signals backed by periodic timers.
type Bus struct {
	mu   sync.Mutex
	subs map[Topic][]chan Event
}

// New creates an empty bus
func New() *Bus {
	return &Bus{
		subs: make(map[Topic][]chan Event),
	}
}

// Subscribe returns a buffered channel receiving events on topic, and a
// cancel function that detaches and closes it.
func (b *Bus) Subscribe(topic Topic) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs[topic] {
			if sub == ch {
				b.subs[topic] = append(b.subs[topic][:i], b.subs[topic][i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Publish delivers the event to every current subscriber of its topic
func (b *Bus) Publish(topic Topic, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ev := Event{Topic: topic, Payload: payload, Timestamp: time.Now()}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- ev:
		default:
			// subscriber buffer full, drop; timers re-trigger the work
		}
	}
}
