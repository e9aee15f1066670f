package beacon

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// UUID represents a 16-byte proximity UUID
type UUID [16]byte

// String returns the canonical lowercase 8-4-4-4-12 representation
func (u UUID) String() string {
	h := hex.EncodeToString(u[:])
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]
}

// Normalized returns the lowercase hex representation with dashes stripped
func (u UUID) Normalized() string {
	return hex.EncodeToString(u[:])
}

// MarshalJSON implements json.Marshaler
func (u UUID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (u *UUID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseUUID(s)
	if err != nil {
		return err
	}

	*u = parsed
	return nil
}

// ParseUUID parses a proximity UUID from hex, with or without dashes,
// in any letter case.
func ParseUUID(s string) (UUID, error) {
	var u UUID

	b, err := hex.DecodeString(NormalizeUUID(s))
	if err != nil {
		return u, fmt.Errorf("parse UUID: %w", err)
	}

	if len(b) != 16 {
		return u, fmt.Errorf("invalid UUID length: %d", len(b))
	}

	copy(u[:], b)
	return u, nil
}

// NormalizeUUID lowercases a UUID string and strips dashes so that the
// dashed and undashed renderings of the same UUID compare equal.
func NormalizeUUID(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "-", ""))
}

// Format identifies the advertisement format a signal was decoded from
type Format byte

const (
	FormatIBeacon Format = iota
	FormatAltBeacon
	FormatEddystoneUID
)

// String returns the format name
func (f Format) String() string {
	switch f {
	case FormatIBeacon:
		return "ibeacon"
	case FormatAltBeacon:
		return "altbeacon"
	case FormatEddystoneUID:
		return "eddystone-uid"
	default:
		return fmt.Sprintf("unknown(%d)", byte(f))
	}
}

// Signal is the tagged union produced by the decoder. Exactly one of
// IBeacon / EddystoneUID is set, selected by Format (AltBeacon payloads
// carry the same identity triple as iBeacon and share IBeaconSignal).
type Signal struct {
	Format       Format
	IBeacon      *IBeaconSignal
	EddystoneUID *EddystoneUIDSignal
}

// IBeaconSignal represents a decoded iBeacon or AltBeacon identity
type IBeaconSignal struct {
	UUID  UUID
	Major uint16
	Minor uint16
}

// EddystoneUIDSignal represents a decoded Eddystone-UID identity.
// Namespace and Instance are lowercase hex strings (10 and 6 bytes).
type EddystoneUIDSignal struct {
	Namespace string
	Instance  string
}

// Advertisement represents one raw advertisement record as delivered by
// the platform scanning facility.
type Advertisement struct {
	// ManufacturerData maps the 16-bit company identifier to the
	// payload following it in the AD structure.
	ManufacturerData map[uint16][]byte

	// ServiceData maps the service UUID string (16-bit or 128-bit
	// rendering) to its payload.
	ServiceData map[string][]byte

	RSSI int
}

const (
	// CompanyIDApple is the manufacturer id carrying iBeacon frames
	CompanyIDApple uint16 = 0x004C

	// CompanyIDRadiusNetworks is the manufacturer id carrying
	// AltBeacon frames
	CompanyIDRadiusNetworks uint16 = 0x0118

	// EddystoneServiceUUID16 is the 16-bit Eddystone service UUID
	EddystoneServiceUUID16 uint16 = 0xFEAA

	// EddystoneFrameTypeUID is the frame type byte of UID frames
	EddystoneFrameTypeUID byte = 0x00
)

// iBeacon/AltBeacon payload layout
const (
	ibeaconTypeByte    = 0x02
	ibeaconLengthByte  = 0x15
	altBeaconCode0     = 0xBE
	altBeaconCode1     = 0xAC
	ibeaconMinLength   = 23
	altBeaconMinLength = 24
)
