// Package events fans track state snapshots out to the daemon's push
// surfaces (SSE today).
package events

import (
	"log/slog"
	"sync"

	"github.com/open-rail/trackd-go/internal/models"
)

// Each subscriber buffers a few snapshots so a burst of power flaps does
// not force the publisher to wait on the network.
const snapshotBuffer = 8

// Bus distributes state snapshots to subscribers. Publishing never
// blocks: a subscriber that falls behind loses intermediate snapshots,
// which is harmless because every snapshot carries the complete track
// state, not a delta.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]chan models.State
	dropped uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan models.State),
	}
}

// Subscribe registers a subscriber under id and returns its snapshot
// channel. The channel stays open until Unsubscribe is called with the
// same id.
func (b *Bus) Subscribe(id string) <-chan models.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan models.State, snapshotBuffer)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids
// are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers a snapshot to every subscriber whose buffer has room
// and counts the deliveries skipped for full ones.
func (b *Bus) Publish(state models.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- state:
		default:
			b.dropped++
			slog.Debug("events: subscriber behind, snapshot skipped", "subscriber", id)
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many snapshot deliveries were skipped because a
// subscriber's buffer was full.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
