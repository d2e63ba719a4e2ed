// Package events provides a small in-process pub/sub bus used to push
// gateway activity to live subscribers.
package events

import (
	"sync"
	"time"
)

// Event types published by the gateway services.
const (
	TypeTransactionRecorded = "transaction.recorded"
	TypeBatchCompleted      = "batch.completed"
	TypeTierUpgraded        = "tier.upgraded"
	TypeAchievementUnlocked = "achievement.unlocked"
	TypeConditionsChanged   = "network.conditions"
)

// Event is one bus message. Payload is the domain object that triggered it.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Bus fans events out to subscribers. Publishing never blocks: slow
// subscribers drop events instead of stalling the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber with the given buffer size and returns
// its channel plus an unsubscribe function. The channel is closed on
// unsubscribe.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers the event to all subscribers, dropping it for any
// subscriber whose buffer is full.
func (b *Bus) Publish(eventType string, payload any) {
	e := Event{Type: eventType, Timestamp: time.Now().UTC(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
