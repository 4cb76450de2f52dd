package realtime

import "sync"

// Event names a state change worth pushing to subscribers. Payloads are not
// carried here; subscribers fetch whatever view they need.
type Event string

const (
	// EventState signals that the observable game state changed.
	EventState Event = "state"
	// EventComplete signals that a game just reached its summary.
	EventComplete Event = "complete"
)

// Broadcaster fans events out to SSE subscribers of one room.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its event channel.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 10)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers an event to all subscribers. Lagging subscribers drop
// events; the next one catches them up.
func (b *Broadcaster) Publish(event Event) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	b.mu.Unlock()
}
