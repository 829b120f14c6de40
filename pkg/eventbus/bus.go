// Package eventbus provides a small in-process publish/subscribe bus keyed by
// topic string.
package eventbus

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/srg/dartlink/pkg/metrics"
)

// Handler receives a published payload. Handlers run synchronously on the
// publisher's goroutine, in subscription order.
type Handler func(payload any)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a goroutine-safe topic-keyed event bus. Publish never observes a
// partially mutated handler list: the list is snapshot-copied under a read
// lock before dispatch.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]subscription
	nextID uint64
	logger *logrus.Logger
}

// New creates an event bus.
func New(logger *logrus.Logger) *Bus {
	if logger == nil {
		logger = logrus.New()
	}

	return &Bus{
		topics: make(map[string][]subscription),
		logger: logger,
	}
}

// Subscribe registers a handler for a topic and returns a subscription id
// usable with Unsubscribe.
func (b *Bus) Subscribe(topic string, handler Handler) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.topics[topic] = append(b.topics[topic], subscription{id: b.nextID, handler: handler})

	b.logger.WithFields(logrus.Fields{
		"topic": topic,
		"id":    b.nextID,
	}).Debug("Subscribed to topic")
	return b.nextID
}

// Unsubscribe removes a previously registered handler. Unknown ids are logged
// and ignored.
func (b *Bus) Unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, s := range subs {
		if s.id == id {
			b.topics[topic] = append(subs[:i], subs[i+1:]...)
			b.logger.WithFields(logrus.Fields{
				"topic": topic,
				"id":    id,
			}).Debug("Unsubscribed from topic")
			return
		}
	}

	b.logger.WithFields(logrus.Fields{
		"topic": topic,
		"id":    id,
	}).Warn("Unsubscribe: no such subscription")
}

// Publish delivers payload to every handler currently registered for the
// topic, in subscription order. A panicking handler is recovered and logged
// and does not suppress the remaining handlers or reach the publisher.
// Publishing to a topic with no subscribers is a no-op.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	subs := make([]subscription, len(b.topics[topic]))
	copy(subs, b.topics[topic])
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.logger.WithField("topic", topic).Debug("Publish with no subscribers")
		return
	}

	for _, s := range subs {
		b.dispatch(topic, s, payload)
	}
}

func (b *Bus) dispatch(topic string, s subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordHandlerFault()
			b.logger.WithFields(logrus.Fields{
				"topic": topic,
				"id":    s.id,
				"panic": r,
			}).Error("Event handler failed")
		}
	}()
	s.handler(payload)
}

// SubscriberCount returns the number of handlers registered for a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
