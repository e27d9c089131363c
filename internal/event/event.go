package event

import (
	"log/slog"
	"sync"
	"time"
)

// Type identifies a notification.
type Type string

// Territory notifications.
const (
	TerritoryClaimed   Type = "territory_claimed"
	TerritoryRemoved   Type = "territory_removed"
	TerritoryUpdated   Type = "territory_updated"
	TerritoriesDecayed Type = "territories_decayed"
	ClaimExpired       Type = "claim_expired"
)

// Ambush notifications.
const (
	AmbushTriggered Type = "ambush_triggered"
	AmbushExpired   Type = "ambush_expired"
)

// Event is delivered to subscribers. OwnerID is the player the event concerns.
type Event struct {
	Type    Type      `json:"type"`
	OwnerID string    `json:"owner_id"`
	At      time.Time `json:"at"`
	Data    any       `json:"data,omitempty"`
}

// Publisher accepts events. Services depend on this rather than on Bus.
type Publisher interface {
	Publish(ev Event)
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

const defaultBuffer = 64

// Bus is an in-process pub/sub. Each subscriber has its own buffered channel and
// receives events in publish order. A subscriber whose buffer is full misses the
// event rather than blocking the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
	closed bool
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
	}
}

// Subscribe returns a channel of events and a function that ends the subscription.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(ch) })
	}
}

func (b *Bus) unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Publish delivers ev to every subscriber.
func (b *Bus) Publish(ev Event) {
	// Hold the write lock so concurrent publishers cannot interleave per subscriber.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("event subscriber buffer full, dropping event", "type", ev.Type, "owner", ev.OwnerID)
		}
	}
}

// Close ends all subscriptions. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}
