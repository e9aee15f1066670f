package scan

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-checkin/beacon-checkin-server/internal/adapter"
	"github.com/beacon-checkin/beacon-checkin-server/internal/campaign"
	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
	"github.com/beacon-checkin/beacon-checkin-server/pkg/beacon"
)

const sessionTestUUID = "f7826da6-4fa2-4e98-8024-bc5b71e0893e"

// testRegistry builds a one-beacon, one-campaign registry. The campaign
// has no time restrictions so detections are always eligible.
func testRegistry(t *testing.T, proximityDelaySeconds int) Registry {
	t.Helper()

	campaignID := uuid.New()
	return Registry{
		Beacons: []models.BeaconDescriptor{{
			ID:         uuid.New(),
			CampaignID: campaignID,
			Name:       "entrance",
			Type:       models.BeaconTypeIBeacon,
			IBeacon:    &models.IBeaconIdentity{UUID: mustUUID(t, sessionTestUUID)},
		}},
		Campaigns: []models.CampaignDescriptor{{
			ID:                         campaignID,
			Name:                       "coffee stamp",
			Kind:                       models.CampaignKindInstant,
			RequiredPresencePercentage: 100,
			ProximityDelaySeconds:      proximityDelaySeconds,
		}},
	}
}

func matchingAdvertisement(t *testing.T) beacon.Advertisement {
	t.Helper()

	u := mustUUID(t, sessionTestUUID)
	data := []byte{0x02, 0x15}
	data = append(data, u[:]...)
	data = append(data, 0x00, 0x01, 0x00, 0x02)
	data = append(data, 0xC5) // measured-power byte to reach the 23-byte minimum

	return beacon.Advertisement{
		ManufacturerData: map[uint16][]byte{beacon.CompanyIDApple: data},
		RSSI:             -58,
	}
}

func newTestSession(fake *adapter.Fake, opts Options) (*Session, *Dispatcher) {
	dispatcher := NewDispatcher()
	return NewSession(fake, dispatcher, campaign.NewEvaluator(), opts), dispatcher
}

func TestSessionStartValidation(t *testing.T) {
	t.Run("empty targets", func(t *testing.T) {
		s, _ := newTestSession(adapter.NewFake(true), Options{})

		err := s.Start(Registry{})
		assert.ErrorIs(t, err, ErrNoTargets)
		assert.Equal(t, StateIdle, s.State())
	})

	t.Run("adapter unavailable", func(t *testing.T) {
		s, _ := newTestSession(adapter.NewFake(false), Options{})

		err := s.Start(testRegistry(t, 0))
		assert.ErrorIs(t, err, ErrAdapterUnavailable)
		assert.Equal(t, StateIdle, s.State())
	})

	t.Run("invalid descriptor", func(t *testing.T) {
		s, _ := newTestSession(adapter.NewFake(true), Options{})

		reg := testRegistry(t, 0)
		reg.Beacons[0].IBeacon = nil

		assert.Error(t, s.Start(reg))
		assert.Equal(t, StateIdle, s.State())
	})
}

func TestSessionDetectionFlow(t *testing.T) {
	fake := adapter.NewFake(true)
	s, dispatcher := newTestSession(fake, Options{})
	defer dispatcher.Close()

	events, cancel := dispatcher.Subscribe(8)
	defer cancel()

	reg := testRegistry(t, 0)
	require.NoError(t, s.Start(reg))
	defer s.Stop()

	assert.Equal(t, StateScanning, s.State())
	require.True(t, fake.Inject(matchingAdvertisement(t)))

	select {
	case ev := <-events:
		assert.Equal(t, reg.Beacons[0].ID, ev.BeaconID)
		assert.Equal(t, reg.Campaigns[0].ID, ev.CampaignID)
		assert.Equal(t, -58, ev.RSSI)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no detection event published")
	}
}

func TestSessionSwallowsUndecodableRecords(t *testing.T) {
	fake := adapter.NewFake(true)
	s, dispatcher := newTestSession(fake, Options{})
	defer dispatcher.Close()

	events, cancel := dispatcher.Subscribe(8)
	defer cancel()

	require.NoError(t, s.Start(testRegistry(t, 0)))
	defer s.Stop()

	// garbage, truncated, and non-matching records all pass through
	// without events and without crashing the session
	fake.Inject(beacon.Advertisement{})
	fake.Inject(beacon.Advertisement{
		ManufacturerData: map[uint16][]byte{beacon.CompanyIDApple: {0x02}},
	})
	fake.Inject(beacon.Advertisement{
		ServiceData: map[string][]byte{"feaa": {0x10, 0x00}},
	})

	select {
	case <-events:
		t.Fatal("unexpected detection event")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, StateScanning, s.State())
}

func TestSessionStartWhileScanningIsNoop(t *testing.T) {
	fake := adapter.NewFake(true)
	s, dispatcher := newTestSession(fake, Options{})
	defer dispatcher.Close()

	require.NoError(t, s.Start(testRegistry(t, 0)))
	defer s.Stop()

	scans := fake.ScanCount()
	require.NoError(t, s.Start(testRegistry(t, 0)))
	assert.Equal(t, scans, fake.ScanCount())
}

func TestSessionRestartTimer(t *testing.T) {
	fake := adapter.NewFake(true)
	s, dispatcher := newTestSession(fake, Options{RestartInterval: 20 * time.Millisecond})
	defer dispatcher.Close()

	require.NoError(t, s.Start(testRegistry(t, 0)))
	defer s.Stop()

	// the restart timer keeps relaunching scan cycles indefinitely
	require.Eventually(t, func() bool { return fake.ScanCount() >= 3 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, StateScanning, s.State())
}

func TestSessionStop(t *testing.T) {
	fake := adapter.NewFake(true)
	s, dispatcher := newTestSession(fake, Options{})
	defer dispatcher.Close()

	events, cancel := dispatcher.Subscribe(8)
	defer cancel()

	require.NoError(t, s.Start(testRegistry(t, 0)))

	s.Stop()
	s.Stop() // idempotent
	assert.Equal(t, StateIdle, s.State())

	// no event for advertisements processed after Stop returned
	assert.False(t, fake.Inject(matchingAdvertisement(t)))

	select {
	case <-events:
		t.Fatal("detection event emitted after stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessionStopCancelsPendingProximityDelay(t *testing.T) {
	fake := adapter.NewFake(true)
	s, dispatcher := newTestSession(fake, Options{})
	defer dispatcher.Close()

	events, cancel := dispatcher.Subscribe(8)
	defer cancel()

	require.NoError(t, s.Start(testRegistry(t, 1)))

	// detection accepted, now waiting on the 1s proximity delay
	require.True(t, fake.Inject(matchingAdvertisement(t)))
	s.Stop()

	select {
	case <-events:
		t.Fatal("delayed event fired after stop")
	case <-time.After(1200 * time.Millisecond):
	}
}

func TestSessionRestartableAfterStop(t *testing.T) {
	fake := adapter.NewFake(true)
	s, dispatcher := newTestSession(fake, Options{})
	defer dispatcher.Close()

	events, cancel := dispatcher.Subscribe(8)
	defer cancel()

	require.NoError(t, s.Start(testRegistry(t, 0)))
	s.Stop()

	require.NoError(t, s.Start(testRegistry(t, 0)))
	defer s.Stop()

	require.True(t, fake.Inject(matchingAdvertisement(t)))
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("no event after restart")
	}
}

func TestSessionEligibilityGatesForwarding(t *testing.T) {
	fake := adapter.NewFake(true)
	s, dispatcher := newTestSession(fake, Options{})
	defer dispatcher.Close()

	events, cancel := dispatcher.Subscribe(8)
	defer cancel()

	// the campaign only allows check-ins tomorrow
	reg := testRegistry(t, 0)
	tomorrow := (int(time.Now().Weekday()) + 1) % 7
	reg.Campaigns[0].TimeBlocks = models.TimeBlocks{{
		DayOfWeek: tomorrow,
		Start:     models.NewTimeOfDay(9, 0, 0),
		End:       models.NewTimeOfDay(17, 0, 0),
	}}

	require.NoError(t, s.Start(reg))
	defer s.Stop()

	require.True(t, fake.Inject(matchingAdvertisement(t)))

	select {
	case <-events:
		t.Fatal("event forwarded outside the campaign time window")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessionDebounceAcrossInjects(t *testing.T) {
	fake := adapter.NewFake(true)
	s, dispatcher := newTestSession(fake, Options{DebounceCooldown: time.Minute})
	defer dispatcher.Close()

	events, cancel := dispatcher.Subscribe(8)
	defer cancel()

	require.NoError(t, s.Start(testRegistry(t, 0)))
	defer s.Stop()

	require.True(t, fake.Inject(matchingAdvertisement(t)))
	require.True(t, fake.Inject(matchingAdvertisement(t)))

	<-events
	select {
	case <-events:
		t.Fatal("second detection inside the cooldown was forwarded")
	case <-time.After(50 * time.Millisecond):
	}
}
