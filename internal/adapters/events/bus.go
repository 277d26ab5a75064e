package events

import (
	"sync"

	"go.uber.org/zap"
)

// Event is one named broadcast with its payload
type Event struct {
	Name    string
	Payload interface{}
}

// Bus broadcasts named events to all subscribers. Delivery is
// fire-and-forget: a subscriber whose buffer is full loses the event (logged
// at warn). Subscribers must tolerate duplicates and out-of-order delivery.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	logger *zap.Logger
}

const subscriberBuffer = 64

// NewBus creates an event bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: logger,
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// Publish broadcasts the event to every subscriber without blocking
func (b *Bus) Publish(name string, payload interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- Event{Name: name, Payload: payload}:
		default:
			b.logger.Warn("event dropped for slow subscriber",
				zap.String("event", name),
				zap.Int("subscriber", id))
		}
	}
}

// SubscriberCount returns the number of live subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
