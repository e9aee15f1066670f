package scan

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
)

func detection(campaignID uuid.UUID, at time.Time) models.DetectionEvent {
	return models.DetectionEvent{
		BeaconID:   uuid.New(),
		CampaignID: campaignID,
		RSSI:       -60,
		Timestamp:  at,
	}
}

type eventCollector struct {
	mu     sync.Mutex
	events []models.DetectionEvent
}

func (c *eventCollector) forward(ev models.DetectionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *eventCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestDebouncerCooldown(t *testing.T) {
	d := NewDebouncer(30 * time.Second)
	defer d.Stop()

	campaignID := uuid.New()
	base := time.Now()
	var c eventCollector

	// two detections 5 seconds apart: exactly one forwarded
	assert.True(t, d.Offer(detection(campaignID, base), 0, c.forward))
	assert.False(t, d.Offer(detection(campaignID, base.Add(5*time.Second)), 0, c.forward))
	assert.Equal(t, 1, c.count())

	// 31 seconds after the first: forwarded again
	assert.True(t, d.Offer(detection(campaignID, base.Add(31*time.Second)), 0, c.forward))
	assert.Equal(t, 2, c.count())
}

func TestDebouncerCampaignsIndependent(t *testing.T) {
	d := NewDebouncer(30 * time.Second)
	defer d.Stop()

	base := time.Now()
	var c eventCollector

	assert.True(t, d.Offer(detection(uuid.New(), base), 0, c.forward))
	assert.True(t, d.Offer(detection(uuid.New(), base.Add(time.Second)), 0, c.forward))
	assert.Equal(t, 2, c.count())
}

func TestDebouncerProximityDelay(t *testing.T) {
	d := NewDebouncer(30 * time.Second)
	defer d.Stop()

	var c eventCollector

	require.True(t, d.Offer(detection(uuid.New(), time.Now()), 20*time.Millisecond, c.forward))
	assert.Equal(t, 0, c.count(), "delayed event is not forwarded immediately")

	require.Eventually(t, func() bool { return c.count() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestDebouncerConcurrentDelays(t *testing.T) {
	d := NewDebouncer(30 * time.Second)
	defer d.Stop()

	var c eventCollector
	now := time.Now()

	for i := 0; i < 5; i++ {
		require.True(t, d.Offer(detection(uuid.New(), now), 10*time.Millisecond, c.forward))
	}

	require.Eventually(t, func() bool { return c.count() == 5 },
		time.Second, 5*time.Millisecond)
}

func TestDebouncerStopCancelsPendingTimers(t *testing.T) {
	d := NewDebouncer(30 * time.Second)

	var c eventCollector
	require.True(t, d.Offer(detection(uuid.New(), time.Now()), 20*time.Millisecond, c.forward))

	d.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, c.count(), "no forward may run after Stop returns")
}

func TestDebouncerRejectsAfterStop(t *testing.T) {
	d := NewDebouncer(30 * time.Second)
	d.Stop()

	var c eventCollector
	assert.False(t, d.Offer(detection(uuid.New(), time.Now()), 0, c.forward))
	assert.Equal(t, 0, c.count())
}

func TestDebouncerDefaultCooldown(t *testing.T) {
	d := NewDebouncer(0)
	defer d.Stop()

	assert.Equal(t, DefaultCooldown, d.cooldown)
}
