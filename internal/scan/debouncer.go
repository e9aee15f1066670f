package scan

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
)

// DefaultCooldown is the repeat-suppression window per campaign.
const DefaultCooldown = 30 * time.Second

// Debouncer suppresses repeat detections per campaign and applies the
// campaign's proximity delay before forwarding. The last-fired map is
// the only mutable state it owns; pending delay timers for different
// campaigns are independent and all of them are cancelled by Stop.
type Debouncer struct {
	cooldown time.Duration

	mu        sync.Mutex
	lastFired map[uuid.UUID]time.Time
	timers    map[*time.Timer]struct{}
	stopped   bool
}

// NewDebouncer creates a debouncer. A non-positive cooldown falls back
// to DefaultCooldown.
func NewDebouncer(cooldown time.Duration) *Debouncer {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Debouncer{
		cooldown:  cooldown,
		lastFired: make(map[uuid.UUID]time.Time),
		timers:    make(map[*time.Timer]struct{}),
	}
}

// Offer runs an event through the cooldown check and, if it passes,
// schedules forward after delay (immediately when delay is zero).
// forward runs with the debouncer lock held, so it must be quick and
// non-blocking; in exchange, once Stop returns, forward is guaranteed
// never to run again. The return value reports whether the event was
// accepted.
func (d *Debouncer) Offer(ev models.DetectionEvent, delay time.Duration, forward func(models.DetectionEvent)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}

	now := ev.Timestamp
	if last, ok := d.lastFired[ev.CampaignID]; ok && now.Sub(last) < d.cooldown {
		return false
	}
	d.lastFired[ev.CampaignID] = now

	if delay <= 0 {
		forward(ev)
		return true
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		if d.stopped {
			return
		}

		delete(d.timers, t)
		forward(ev)
	})
	d.timers[t] = struct{}{}

	return true
}

// Stop cancels every pending delay timer. A timer callback already
// waiting on the lock observes the stopped flag and drops its event,
// so no forward runs after Stop returns.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for t := range d.timers {
		t.Stop()
	}
	d.timers = make(map[*time.Timer]struct{})
}
