package scan

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
)

// Dispatcher is the broadcast channel detection events are published
// on. It is an explicitly constructed collaborator with caller-managed
// lifecycle: main builds one, injects it into the session, and closes
// it on shutdown. Every subscriber observes every published event.
type Dispatcher struct {
	mu     sync.Mutex
	subs   map[int]chan models.DetectionEvent
	nextID int
	closed bool
}

// NewDispatcher creates a dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[int]chan models.DetectionEvent)}
}

// Subscribe registers a new subscriber with the given channel buffer.
// The returned cancel function removes the subscription and closes its
// channel; it is safe to call more than once.
func (d *Dispatcher) Subscribe(buffer int) (<-chan models.DetectionEvent, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := make(chan models.DetectionEvent, buffer)

	if d.closed {
		close(ch)
		return ch, func() {}
	}

	id := d.nextID
	d.nextID++
	d.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			if sub, ok := d.subs[id]; ok {
				delete(d.subs, id)
				close(sub)
			}
		})
	}

	return ch, cancel
}

// Publish delivers an event to every subscriber. Delivery is
// non-blocking: a subscriber that has fallen behind loses the event
// rather than stalling the scan delivery path.
func (d *Dispatcher) Publish(ev models.DetectionEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	for id, ch := range d.subs {
		select {
		case ch <- ev:
		default:
			log.Warn().
				Int("subscriber", id).
				Str("campaign_id", ev.CampaignID.String()).
				Msg("Subscriber buffer full, detection event dropped")
		}
	}
}

// Close closes every subscriber channel and rejects further publishes.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true

	for id, ch := range d.subs {
		delete(d.subs, id)
		close(ch)
	}
}
