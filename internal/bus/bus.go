// Package bus provides the in-process publish/subscribe message bus the
// Portfolio listens on (spec §1: the bus transport itself is an
// out-of-scope external collaborator; this package models only the
// thin in-process facade the Portfolio is wired against).
//
// Unlike the teacher's events.Bus — which dispatches to subscribers on
// their own goroutine (go handler(event)) — Publish here is fully
// synchronous: spec §5 requires that "the message bus dispatches events
// serially to Portfolio handlers, each handler runs to completion
// before the next is invoked" with "no internal locking and no shared
// mutable state exposed to other threads". Subscribe/Unsubscribe remain
// safe for concurrent use (a handler may be registered from any
// goroutine at startup), but Publish itself never spawns one.
package bus

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Topic identifies a stream of events, matching spec §6's dotted
// wildcard families (events.order.*, events.position.*,
// events.account.*, data.quotes.*, data.mark_prices.*, data.bars.*).
type Topic string

const (
	TopicOrders     Topic = "events.order"
	TopicPositions  Topic = "events.position"
	TopicAccounts   Topic = "events.account"
	TopicQuotes     Topic = "data.quotes"
	TopicMarkPrices Topic = "data.mark_prices"
	TopicBars       Topic = "data.bars"
)

// Handler processes a single published payload. Handlers must not
// block or suspend (spec §5): the bus makes no provision for
// cancellation or timeout.
type Handler func(payload any)

// Subscription is returned by Subscribe and passed to Unsubscribe.
type Subscription struct {
	topic Topic
	id    uint64
}

// Bus is the in-process pub/sub facade, adapted from the teacher's
// internal/events.Bus topic-map-of-handlers shape.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Topic]map[uint64]Handler
	nextID      uint64
	log         zerolog.Logger
}

// New creates an empty Bus.
func New(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[Topic]map[uint64]Handler),
		log:         log.With().Str("component", "bus").Logger(),
	}
}

// Subscribe registers handler for topic and returns a Subscription that
// can later be passed to Unsubscribe.
func (b *Bus) Subscribe(topic Topic, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if _, ok := b.subscribers[topic]; !ok {
		b.subscribers[topic] = make(map[uint64]Handler)
	}
	b.subscribers[topic][id] = handler
	return Subscription{topic: topic, id: id}
}

// Unsubscribe removes a previously registered handler. Safe to call
// multiple times.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if handlers, ok := b.subscribers[sub.topic]; ok {
		delete(handlers, sub.id)
		if len(handlers) == 0 {
			delete(b.subscribers, sub.topic)
		}
	}
}

// Publish delivers payload to every handler registered for topic,
// synchronously and in registration order. There is no retry and no
// backpressure handling here; spec §5 places backpressure squarely on
// the (out-of-scope) bus transport this facade sits in front of.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	var handlers []Handler
	if registered := b.subscribers[topic]; len(registered) > 0 {
		ids := make([]uint64, 0, len(registered))
		for id := range registered {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		handlers = make([]Handler, 0, len(registered))
		for _, id := range ids {
			handlers = append(handlers, registered[id])
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}

	b.log.Debug().
		Str("topic", string(topic)).
		Int("subscribers", len(handlers)).
		Msg("event published")
}

// AccountTopic builds the per-account republish topic used by spec
// §4.6 ("publish the account's most recent state to
// events.account.{account_id}").
func AccountTopic(accountID string) Topic {
	return Topic(string(TopicAccounts) + "." + accountID)
}
