package adapter

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/examples/lib/dev"
	"github.com/rs/zerolog/log"

	"github.com/beacon-checkin/beacon-checkin-server/pkg/beacon"
)

// BLE drives the host Bluetooth controller through go-ble. The device
// is initialized lazily on the first Available/Scan call and reused
// afterwards.
type BLE struct {
	deviceName string

	mu     sync.Mutex
	device ble.Device
}

// NewBLE creates an adapter for the named HCI device ("default" for
// the platform default controller).
func NewBLE(deviceName string) *BLE {
	return &BLE{deviceName: deviceName}
}

// Available reports whether the controller could be opened.
func (b *BLE) Available() bool {
	_, err := b.getDevice()
	if err != nil {
		log.Debug().Err(err).Str("device", b.deviceName).Msg("Bluetooth device unavailable")
	}
	return err == nil
}

// Scan runs a duplicate-reporting scan until ctx is cancelled, mapping
// each platform advertisement into the core record type.
func (b *BLE) Scan(ctx context.Context, h Handler) error {
	device, err := b.getDevice()
	if err != nil {
		return ErrNotAvailable
	}

	err = device.Scan(ctx, true, func(a ble.Advertisement) {
		h(convertAdvertisement(a))
	})

	// cancellation is the normal way a scan cycle ends
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}

	return err
}

// getDevice opens the controller on first use.
func (b *BLE) getDevice() (ble.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device != nil {
		return b.device, nil
	}

	device, err := dev.NewDevice(b.deviceName)
	if err != nil {
		return nil, fmt.Errorf("open bluetooth device %s: %w", b.deviceName, err)
	}

	b.device = device
	return device, nil
}

// convertAdvertisement maps a go-ble advertisement into the raw record
// the decoder consumes. go-ble hands manufacturer data as the raw AD
// payload: a little-endian company id followed by the vendor bytes.
func convertAdvertisement(a ble.Advertisement) beacon.Advertisement {
	adv := beacon.Advertisement{RSSI: a.RSSI()}

	if md := a.ManufacturerData(); len(md) >= 2 {
		company := binary.LittleEndian.Uint16(md[:2])
		adv.ManufacturerData = map[uint16][]byte{company: md[2:]}
	}

	if sds := a.ServiceData(); len(sds) > 0 {
		adv.ServiceData = make(map[string][]byte, len(sds))
		for _, sd := range sds {
			adv.ServiceData[sd.UUID.String()] = sd.Data
		}
	}

	return adv
}
