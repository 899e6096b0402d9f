// Package events carries the structured events each instruction emits. The
// bus is in-process; the HTTP layer streams it to external subscribers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event names, matching the instruction surface.
const (
	IncenseBought     = "incenseBought"
	IncenseBurned     = "incenseBurned"
	DonationCompleted = "donationCompleted"
	RewardsProcessed  = "rewardsProcessed"
	DonationNftMinted = "donationNftMinted"
	DrawFortuneEvent  = "drawFortuneEvent"
	WishCreated       = "wishCreated"
	LikeCreated       = "likeCreated"
	TempleWithdrawal  = "templeWithdrawal"
)

// Event is one emitted program event.
type Event struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Payload   map[string]interface{} `json:"payload"`
	EmittedAt time.Time              `json:"emitted_at"`
}

// New builds an event with a fresh ID and timestamp.
func New(name string, payload map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	}
}

// Bus fans events out to subscribers. Publishing never blocks; a subscriber
// that stops draining loses events rather than stalling instructions.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered subscriber. The returned cancel func must be
// called to release it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// PublishAll delivers a batch in order.
func (b *Bus) PublishAll(evs []Event) {
	for _, ev := range evs {
		b.Publish(ev)
	}
}
