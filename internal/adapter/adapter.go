// Package adapter abstracts the platform BLE scanning facility. The
// real implementation drives a Bluetooth controller through go-ble;
// the fake implementation allows testing without hardware.
package adapter

import (
	"context"
	"errors"

	"github.com/beacon-checkin/beacon-checkin-server/pkg/beacon"
)

// Handler receives one raw advertisement record per detected packet.
type Handler func(adv beacon.Advertisement)

// Adapter is the platform scanning facility.
type Adapter interface {
	// Available reports whether the radio is present and powered on.
	Available() bool

	// Scan delivers advertisements to h until ctx is cancelled. It
	// returns nil after cancellation and an error on adapter-level
	// failure. h is never invoked after Scan returns.
	Scan(ctx context.Context, h Handler) error
}

// ErrNotAvailable is returned by Scan when the radio is absent or off.
var ErrNotAvailable = errors.New("bluetooth adapter not available")
