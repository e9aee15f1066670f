package beacon

import (
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strings"
)

// Decoder turns raw advertisement records into beacon signals. It is
// pure and deterministic: identical input bytes always produce the
// identical result, and malformed data produces no signal rather than
// an error.
//
// The relaxed mode scans every manufacturer-data payload at every byte
// offset for the iBeacon signature and accepts a candidate only when
// its UUID belongs to the configured target set. It is off by default
// because arbitrary payloads can contain the two signature bytes by
// coincidence.
type Decoder struct {
	relaxed bool
	targets map[string]struct{}
}

// NewDecoder creates a decoder. targets is the set of proximity UUIDs
// the caller is scanning for; it is only consulted by the relaxed
// fallback and may be nil when relaxed is false.
func NewDecoder(relaxed bool, targets []UUID) *Decoder {
	d := &Decoder{relaxed: relaxed}

	if relaxed {
		d.targets = make(map[string]struct{}, len(targets))
		for _, u := range targets {
			d.targets[u.Normalized()] = struct{}{}
		}
	}

	return d
}

// Decode attempts, in order: Eddystone-UID service data, iBeacon
// manufacturer data, AltBeacon manufacturer data, and (when enabled)
// the relaxed signature scan. The first success wins. The second
// return value reports whether a signal was decoded.
func (d *Decoder) Decode(adv Advertisement) (Signal, bool) {
	if sig, ok := d.decodeEddystoneUID(adv); ok {
		return sig, true
	}

	if sig, ok := decodeIBeacon(adv.ManufacturerData[CompanyIDApple]); ok {
		return sig, true
	}

	if sig, ok := decodeAltBeacon(adv.ManufacturerData[CompanyIDRadiusNetworks]); ok {
		return sig, true
	}

	if d.relaxed {
		if sig, ok := d.decodeRelaxed(adv); ok {
			return sig, true
		}
	}

	return Signal{}, false
}

// decodeEddystoneUID scans the service data for an Eddystone UID frame.
// Keys are visited in sorted order so that records with several service
// entries decode deterministically.
func (d *Decoder) decodeEddystoneUID(adv Advertisement) (Signal, bool) {
	keys := make([]string, 0, len(adv.ServiceData))
	for k := range adv.ServiceData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !isEddystoneServiceKey(key) {
			continue
		}

		data := adv.ServiceData[key]

		// frame type + tx power + 10-byte namespace + 6-byte instance
		if len(data) < 18 {
			continue
		}

		// Only UID frames carry an identity; URL/TLM/EID frames
		// yield no signal.
		if data[0] != EddystoneFrameTypeUID {
			continue
		}

		return Signal{
			Format: FormatEddystoneUID,
			EddystoneUID: &EddystoneUIDSignal{
				Namespace: hex.EncodeToString(data[2:12]),
				Instance:  hex.EncodeToString(data[12:18]),
			},
		}, true
	}

	return Signal{}, false
}

// isEddystoneServiceKey reports whether a service data key denotes the
// Eddystone service, either as the bare 16-bit value or embedded in a
// full 128-bit UUID string.
func isEddystoneServiceKey(key string) bool {
	return strings.Contains(NormalizeUUID(key), "feaa")
}

// decodeIBeacon parses an Apple manufacturer-data payload:
// 0x02 0x15, 16-byte UUID, big-endian major, big-endian minor.
func decodeIBeacon(data []byte) (Signal, bool) {
	if len(data) < ibeaconMinLength {
		return Signal{}, false
	}

	if data[0] != ibeaconTypeByte || data[1] != ibeaconLengthByte {
		return Signal{}, false
	}

	return ibeaconSignalAt(data, 2, FormatIBeacon), true
}

// decodeAltBeacon parses a Radius Networks manufacturer-data payload:
// 0xBE 0xAC beacon code, then the same UUID/major/minor layout.
func decodeAltBeacon(data []byte) (Signal, bool) {
	if len(data) < altBeaconMinLength {
		return Signal{}, false
	}

	if data[0] != altBeaconCode0 || data[1] != altBeaconCode1 {
		return Signal{}, false
	}

	return ibeaconSignalAt(data, 2, FormatAltBeacon), true
}

// decodeRelaxed searches every manufacturer-data payload at every byte
// offset for the 0x02 0x15 signature and accepts the candidate only if
// its UUID is one of the targets.
func (d *Decoder) decodeRelaxed(adv Advertisement) (Signal, bool) {
	companies := make([]uint16, 0, len(adv.ManufacturerData))
	for id := range adv.ManufacturerData {
		companies = append(companies, id)
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i] < companies[j] })

	for _, id := range companies {
		data := adv.ManufacturerData[id]

		for off := 0; off+ibeaconMinLength <= len(data); off++ {
			if data[off] != ibeaconTypeByte || data[off+1] != ibeaconLengthByte {
				continue
			}

			sig := ibeaconSignalAt(data, off+2, FormatIBeacon)
			if _, ok := d.targets[sig.IBeacon.UUID.Normalized()]; ok {
				return sig, true
			}
		}
	}

	return Signal{}, false
}

// ibeaconSignalAt reads a UUID/major/minor triple starting at off. The
// caller guarantees 20 bytes are available.
func ibeaconSignalAt(data []byte, off int, format Format) Signal {
	s := &IBeaconSignal{
		Major: binary.BigEndian.Uint16(data[off+16 : off+18]),
		Minor: binary.BigEndian.Uint16(data[off+18 : off+20]),
	}
	copy(s.UUID[:], data[off:off+16])

	return Signal{Format: format, IBeacon: s}
}
