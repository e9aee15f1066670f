package models

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/beacon-checkin/beacon-checkin-server/pkg/beacon"
)

// BeaconType discriminates the identity set a descriptor carries
type BeaconType string

const (
	BeaconTypeIBeacon      BeaconType = "IBEACON"
	BeaconTypeEddystoneUID BeaconType = "EDDYSTONE_UID"
)

// BeaconDescriptor is one configured beacon in the registry. Exactly
// one of IBeacon / Eddystone is populated, matching Type. Descriptors
// are immutable snapshots for the lifetime of a scan session.
type BeaconDescriptor struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	CampaignID uuid.UUID  `json:"campaignId" db:"campaign_id"`
	Name       string     `json:"name" db:"name"`
	Type       BeaconType `json:"type" db:"type"`

	IBeacon   *IBeaconIdentity   `json:"ibeacon,omitempty"`
	Eddystone *EddystoneIdentity `json:"eddystone,omitempty"`
}

// IBeaconIdentity identifies an iBeacon or AltBeacon transmitter. A nil
// Major or Minor acts as a wildcard and matches any value.
type IBeaconIdentity struct {
	UUID  beacon.UUID `json:"uuid" db:"uuid"`
	Major *uint16     `json:"major,omitempty" db:"major"`
	Minor *uint16     `json:"minor,omitempty" db:"minor"`
}

// EddystoneIdentity identifies an Eddystone-UID transmitter. Both
// fields are lowercase hex: 10-byte namespace, 6-byte instance.
type EddystoneIdentity struct {
	Namespace string `json:"namespace" db:"namespace"`
	Instance  string `json:"instance" db:"instance"`
}

var (
	namespaceRe = regexp.MustCompile(`^[0-9a-f]{20}$`)
	instanceRe  = regexp.MustCompile(`^[0-9a-f]{12}$`)
)

// Validate checks the descriptor invariants.
func (b *BeaconDescriptor) Validate() error {
	switch b.Type {
	case BeaconTypeIBeacon:
		if b.IBeacon == nil {
			return fmt.Errorf("beacon %s: type %s without ibeacon identity", b.ID, b.Type)
		}
		if b.Eddystone != nil {
			return fmt.Errorf("beacon %s: both identity sets populated", b.ID)
		}

	case BeaconTypeEddystoneUID:
		if b.Eddystone == nil {
			return fmt.Errorf("beacon %s: type %s without eddystone identity", b.ID, b.Type)
		}
		if b.IBeacon != nil {
			return fmt.Errorf("beacon %s: both identity sets populated", b.ID)
		}
		if !namespaceRe.MatchString(b.Eddystone.Namespace) {
			return fmt.Errorf("beacon %s: invalid eddystone namespace %q", b.ID, b.Eddystone.Namespace)
		}
		if !instanceRe.MatchString(b.Eddystone.Instance) {
			return fmt.Errorf("beacon %s: invalid eddystone instance %q", b.ID, b.Eddystone.Instance)
		}

	default:
		return fmt.Errorf("beacon %s: unknown type %q", b.ID, b.Type)
	}

	return nil
}

// Uint16Ptr is a convenience for building descriptors with explicit
// major/minor values.
func Uint16Ptr(v uint16) *uint16 {
	return &v
}
