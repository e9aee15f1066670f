package scan

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
	"github.com/beacon-checkin/beacon-checkin-server/pkg/beacon"
)

func mustUUID(t *testing.T, s string) beacon.UUID {
	t.Helper()
	u, err := beacon.ParseUUID(s)
	require.NoError(t, err)
	return u
}

func ibeaconDescriptor(t *testing.T, uuidStr string, major, minor *uint16) models.BeaconDescriptor {
	t.Helper()
	return models.BeaconDescriptor{
		ID:         uuid.New(),
		CampaignID: uuid.New(),
		Type:       models.BeaconTypeIBeacon,
		IBeacon: &models.IBeaconIdentity{
			UUID:  mustUUID(t, uuidStr),
			Major: major,
			Minor: minor,
		},
	}
}

func ibeaconSignal(t *testing.T, uuidStr string, major, minor uint16) beacon.Signal {
	t.Helper()
	return beacon.Signal{
		Format: beacon.FormatIBeacon,
		IBeacon: &beacon.IBeaconSignal{
			UUID:  mustUUID(t, uuidStr),
			Major: major,
			Minor: minor,
		},
	}
}

func TestMatchUUIDNormalization(t *testing.T) {
	d := ibeaconDescriptor(t, "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE", nil, nil)
	m := NewMatcher([]models.BeaconDescriptor{d})

	got, ok := m.Match(ibeaconSignal(t, "aaaaaaaabbbbccccddddeeeeeeeeeeee", 1, 2))
	require.True(t, ok)
	assert.Equal(t, d.ID, got.ID)
}

func TestMatchMajorMinorWildcards(t *testing.T) {
	const u = "f7826da6-4fa2-4e98-8024-bc5b71e0893e"

	t.Run("absent major matches any", func(t *testing.T) {
		m := NewMatcher([]models.BeaconDescriptor{ibeaconDescriptor(t, u, nil, nil)})

		_, ok := m.Match(ibeaconSignal(t, u, 5, 100))
		assert.True(t, ok)
		_, ok = m.Match(ibeaconSignal(t, u, 60000, 0))
		assert.True(t, ok)
	})

	t.Run("explicit major must equal", func(t *testing.T) {
		d := ibeaconDescriptor(t, u, models.Uint16Ptr(5), nil)
		m := NewMatcher([]models.BeaconDescriptor{d})

		_, ok := m.Match(ibeaconSignal(t, u, 5, 9))
		assert.True(t, ok)
		_, ok = m.Match(ibeaconSignal(t, u, 6, 9))
		assert.False(t, ok)
	})

	t.Run("explicit minor must equal", func(t *testing.T) {
		d := ibeaconDescriptor(t, u, models.Uint16Ptr(5), models.Uint16Ptr(7))
		m := NewMatcher([]models.BeaconDescriptor{d})

		_, ok := m.Match(ibeaconSignal(t, u, 5, 7))
		assert.True(t, ok)
		_, ok = m.Match(ibeaconSignal(t, u, 5, 8))
		assert.False(t, ok)
	})
}

func TestMatchFirstWins(t *testing.T) {
	const u = "f7826da6-4fa2-4e98-8024-bc5b71e0893e"

	first := ibeaconDescriptor(t, u, nil, nil)
	second := ibeaconDescriptor(t, u, nil, nil)
	m := NewMatcher([]models.BeaconDescriptor{first, second})

	got, ok := m.Match(ibeaconSignal(t, u, 1, 1))
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)
}

func TestMatchAltBeaconAgainstIBeaconDescriptor(t *testing.T) {
	const u = "f7826da6-4fa2-4e98-8024-bc5b71e0893e"
	m := NewMatcher([]models.BeaconDescriptor{ibeaconDescriptor(t, u, nil, nil)})

	sig := ibeaconSignal(t, u, 1, 2)
	sig.Format = beacon.FormatAltBeacon

	_, ok := m.Match(sig)
	assert.True(t, ok)
}

func TestMatchEddystone(t *testing.T) {
	d := models.BeaconDescriptor{
		ID:         uuid.New(),
		CampaignID: uuid.New(),
		Type:       models.BeaconTypeEddystoneUID,
		Eddystone: &models.EddystoneIdentity{
			Namespace: "edd1ebeac04e5defa017",
			Instance:  "000000000001",
		},
	}
	m := NewMatcher([]models.BeaconDescriptor{d})

	sig := beacon.Signal{
		Format: beacon.FormatEddystoneUID,
		EddystoneUID: &beacon.EddystoneUIDSignal{
			Namespace: "EDD1EBEAC04E5DEFA017",
			Instance:  "000000000001",
		},
	}

	_, ok := m.Match(sig)
	assert.True(t, ok, "eddystone comparison is case-insensitive")

	sig.EddystoneUID.Instance = "000000000002"
	_, ok = m.Match(sig)
	assert.False(t, ok, "eddystone has no wildcards")
}

func TestMatchCrossTypeNeverMatches(t *testing.T) {
	const u = "f7826da6-4fa2-4e98-8024-bc5b71e0893e"

	eddy := models.BeaconDescriptor{
		ID:         uuid.New(),
		CampaignID: uuid.New(),
		Type:       models.BeaconTypeEddystoneUID,
		Eddystone: &models.EddystoneIdentity{
			Namespace: "edd1ebeac04e5defa017",
			Instance:  "000000000001",
		},
	}
	m := NewMatcher([]models.BeaconDescriptor{eddy})

	_, ok := m.Match(ibeaconSignal(t, u, 1, 2))
	assert.False(t, ok)

	m = NewMatcher([]models.BeaconDescriptor{ibeaconDescriptor(t, u, nil, nil)})
	_, ok = m.Match(beacon.Signal{
		Format: beacon.FormatEddystoneUID,
		EddystoneUID: &beacon.EddystoneUIDSignal{
			Namespace: "edd1ebeac04e5defa017",
			Instance:  "000000000001",
		},
	})
	assert.False(t, ok)
}

func TestMatchEmptyRegistry(t *testing.T) {
	m := NewMatcher(nil)

	_, ok := m.Match(ibeaconSignal(t, "f7826da6-4fa2-4e98-8024-bc5b71e0893e", 1, 2))
	assert.False(t, ok)
}
