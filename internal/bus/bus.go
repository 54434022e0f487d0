// Package bus provides a publish/subscribe channel scoped to one application
// instance.
//
// Components receive a *Bus at construction and publish to it explicitly.
// There is no process-wide default bus: two applications running in the same
// process never observe each other's events.
//
// Delivery is non-blocking. A subscriber whose buffer is full misses the
// event, the same way slow progress listeners skip updates elsewhere in the
// application.
package bus

import "sync"

// Event is a single message delivered to subscribers of Topic.
type Event struct {
	Topic   string
	Payload any
}

// Bus fans published events out to per-topic subscribers.
// The zero value is not usable; call New. A nil *Bus discards everything.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]chan Event
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]chan Event)}
}

// Subscribe returns a channel that receives events published to topic.
// The returned cancel function removes the subscription and closes the
// channel; it is safe to call more than once.
func (b *Bus) Subscribe(topic string, buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[topic] = append(b.subs[topic], ch)

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(topic, ch) })
	}
}

func (b *Bus) unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[topic]
	for i, c := range list {
		if c == ch {
			b.subs[topic] = append(list[:i], list[i+1:]...)
			close(ch)
			break
		}
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}

// Publish delivers payload to every subscriber of topic and returns how many
// subscribers received it.
func (b *Bus) Publish(topic string, payload any) int {
	if b == nil {
		return 0
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}

	ev := Event{Topic: topic, Payload: payload}
	delivered := 0
	for _, ch := range b.subs[topic] {
		select {
		case ch <- ev:
			delivered++
		default:
			// Subscriber is slow, skip this event
		}
	}
	return delivered
}

// Subscribers returns the number of active subscriptions for topic.
func (b *Bus) Subscribers(topic string) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for topic, list := range b.subs {
		for _, ch := range list {
			close(ch)
		}
		delete(b.subs, topic)
	}
}
