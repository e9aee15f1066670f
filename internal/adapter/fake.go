package adapter

import (
	"context"
	"sync"

	"github.com/beacon-checkin/beacon-checkin-server/pkg/beacon"
)

// Fake is a test double that delivers injected advertisements to the
// active scan handler. It also counts scan cycles, which lets tests
// observe the session's restart behavior.
type Fake struct {
	mu        sync.Mutex
	available bool
	handler   Handler
	scanErr   error
	scans     int
}

// NewFake creates a fake adapter.
func NewFake(available bool) *Fake {
	return &Fake{available: available}
}

// Available reports the scripted availability.
func (f *Fake) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

// SetAvailable changes the scripted availability.
func (f *Fake) SetAvailable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available = v
}

// FailNextScan makes the next Scan call return err immediately.
func (f *Fake) FailNextScan(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanErr = err
}

// Scan registers itself as the delivery target and blocks until ctx is
// cancelled.
func (f *Fake) Scan(ctx context.Context, h Handler) error {
	f.mu.Lock()
	if !f.available {
		f.mu.Unlock()
		return ErrNotAvailable
	}
	if err := f.scanErr; err != nil {
		f.scanErr = nil
		f.mu.Unlock()
		return err
	}
	f.handler = h
	f.scans++
	f.mu.Unlock()

	<-ctx.Done()

	f.mu.Lock()
	f.handler = nil
	f.mu.Unlock()

	return nil
}

// Inject synchronously delivers an advertisement to the active handler.
// It reports whether a scan was running to receive it.
func (f *Fake) Inject(adv beacon.Advertisement) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()

	if h == nil {
		return false
	}

	h(adv)
	return true
}

// ScanCount returns how many scan cycles have started.
func (f *Fake) ScanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans
}
