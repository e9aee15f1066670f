package scan

import (
	"strings"

	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
	"github.com/beacon-checkin/beacon-checkin-server/pkg/beacon"
)

// Matcher resolves decoded signals against the registry snapshot
// supplied at session start. The registry is iterated in stored order
// and the first matching descriptor wins, which makes duplicate
// descriptors a deterministic tie-break rather than a conflict.
type Matcher struct {
	registry []models.BeaconDescriptor
}

// NewMatcher creates a matcher over a registry snapshot.
func NewMatcher(registry []models.BeaconDescriptor) *Matcher {
	return &Matcher{registry: registry}
}

// Match returns the first descriptor matching the signal, if any.
func (m *Matcher) Match(sig beacon.Signal) (*models.BeaconDescriptor, bool) {
	for i := range m.registry {
		if descriptorMatches(&m.registry[i], sig) {
			return &m.registry[i], true
		}
	}
	return nil, false
}

// descriptorMatches applies the per-type matching rules. Cross-type
// comparisons never match.
func descriptorMatches(d *models.BeaconDescriptor, sig beacon.Signal) bool {
	switch sig.Format {
	case beacon.FormatIBeacon, beacon.FormatAltBeacon:
		if d.Type != models.BeaconTypeIBeacon || d.IBeacon == nil {
			return false
		}
		return ibeaconMatches(d.IBeacon, sig.IBeacon)

	case beacon.FormatEddystoneUID:
		if d.Type != models.BeaconTypeEddystoneUID || d.Eddystone == nil {
			return false
		}
		return eddystoneMatches(d.Eddystone, sig.EddystoneUID)

	default:
		return false
	}
}

// ibeaconMatches compares normalized UUIDs and treats an absent
// descriptor major/minor as a wildcard.
func ibeaconMatches(id *models.IBeaconIdentity, sig *beacon.IBeaconSignal) bool {
	if id.UUID.Normalized() != sig.UUID.Normalized() {
		return false
	}

	if id.Major != nil && *id.Major != sig.Major {
		return false
	}

	if id.Minor != nil && *id.Minor != sig.Minor {
		return false
	}

	return true
}

// eddystoneMatches requires case-insensitive equality of both hex
// strings; Eddystone identities have no wildcards.
func eddystoneMatches(id *models.EddystoneIdentity, sig *beacon.EddystoneUIDSignal) bool {
	return strings.EqualFold(id.Namespace, sig.Namespace) &&
		strings.EqualFold(id.Instance, sig.Instance)
}
