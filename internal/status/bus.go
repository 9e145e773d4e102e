// internal/status/bus.go
package status

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Topic is the channel a message is published on.
type Topic string

const (
	// TopicStatus carries schemas.StatusReport payloads.
	TopicStatus Topic = "status"
	// TopicSettings carries settings.Settings payloads whenever settings change.
	TopicSettings Topic = "settings"
)

// Message is the envelope for data transmitted over the Bus.
type Message struct {
	ID        string
	Timestamp time.Time
	Topic     Topic
	Payload   interface{}
}

// Bus is a fire-and-forget fan-out. Publish never blocks: a subscriber whose buffer is
// full misses the message, which is fine for observers that only care about the latest state.
type Bus struct {
	logger *zap.Logger

	subscribers map[Topic][]chan Message
	mu          sync.RWMutex
	bufferSize  int
	isShutdown  bool
}

// New creates a Bus. bufferSize is the per-subscriber channel capacity.
func New(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:      logger.Named("status_bus"),
		subscribers: make(map[Topic][]chan Message),
		bufferSize:  bufferSize,
	}
}

// Publish delivers payload to every current subscriber of topic and returns how many
// received it.
func (b *Bus) Publish(topic Topic, payload interface{}) int {
	msg := Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Topic:     topic,
		Payload:   payload,
	}

	// Sends are non-blocking, so holding the read lock keeps Shutdown from closing a
	// channel underneath us without stalling anyone.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.isShutdown {
		return 0
	}

	delivered := 0
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
			delivered++
		default:
			b.logger.Debug("Subscriber buffer full; dropping message",
				zap.String("topic", string(topic)), zap.String("id", msg.ID))
		}
	}
	return delivered
}

// Subscribe returns a channel receiving messages for the given topics, and a function
// that detaches it. The channel is closed only by Shutdown.
func (b *Bus) Subscribe(topics ...Topic) (<-chan Message, func()) {
	if len(topics) == 0 {
		panic("must subscribe to at least one topic")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isShutdown {
		closed := make(chan Message)
		close(closed)
		return closed, func() {}
	}

	ch := make(chan Message, b.bufferSize)
	subscribed := append([]Topic(nil), topics...)
	for _, t := range subscribed {
		b.subscribers[t] = append(b.subscribers[t], ch)
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, t := range subscribed {
				subs := b.subscribers[t]
				for i, c := range subs {
					if c == ch {
						b.subscribers[t] = append(subs[:i:i], subs[i+1:]...)
						break
					}
				}
				if len(b.subscribers[t]) == 0 {
					delete(b.subscribers, t)
				}
			}
		})
	}
	return ch, unsubscribe
}

// Shutdown closes every subscriber channel. Later Publish calls are dropped.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isShutdown {
		return
	}
	b.isShutdown = true

	unique := make(map[chan Message]struct{})
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			unique[ch] = struct{}{}
		}
	}
	for ch := range unique {
		close(ch)
	}
	b.subscribers = make(map[Topic][]chan Message)
	b.logger.Debug("Status bus shut down", zap.Int("subscribers", len(unique)))
}
