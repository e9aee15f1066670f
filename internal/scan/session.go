package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/beacon-checkin/beacon-checkin-server/internal/adapter"
	"github.com/beacon-checkin/beacon-checkin-server/internal/campaign"
	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
	"github.com/beacon-checkin/beacon-checkin-server/pkg/beacon"
)

// Common errors
var (
	// ErrAdapterUnavailable is returned by Start when the radio is
	// absent or powered off. It is terminal for the call; the session
	// stays Idle and the caller decides whether to retry.
	ErrAdapterUnavailable = errors.New("bluetooth adapter unavailable")

	// ErrNoTargets is returned by Start for an empty registry.
	ErrNoTargets = errors.New("no target beacons configured")
)

// DefaultRestartInterval is the period of the scan health refresh.
const DefaultRestartInterval = 10 * time.Second

// State is the session lifecycle state. Starting and Stopping are only
// observable while a Start/Stop call is in flight.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateScanning
	StateStopping
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateScanning:
		return "scanning"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Registry is the immutable beacon/campaign snapshot a session scans
// against. Replacing it requires a full Stop/Start cycle.
type Registry struct {
	Beacons   []models.BeaconDescriptor
	Campaigns []models.CampaignDescriptor
}

// Options configures a session.
type Options struct {
	// DebounceCooldown suppresses repeat detections per campaign.
	// Zero means DefaultCooldown.
	DebounceCooldown time.Duration

	// RestartInterval is the scan cycle refresh period countering
	// platform-level scan timeouts. Zero means
	// DefaultRestartInterval.
	RestartInterval time.Duration

	// RelaxedDecoding enables the decoder's signature-scan fallback.
	RelaxedDecoding bool
}

// Session owns the decode/match/debounce pipeline and drives continuous
// scanning on the adapter. One session is active at a time per device.
type Session struct {
	adapter    adapter.Adapter
	dispatcher *Dispatcher
	evaluator  *campaign.Evaluator
	opts       Options

	mu           sync.Mutex
	state        State
	pipe         *pipeline
	restartTimer *time.Timer
	cancelScan   context.CancelFunc
	scanDone     chan struct{}
}

// NewSession creates a session publishing detections on dispatcher.
// The dispatcher's lifecycle belongs to the caller; stopping the
// session does not close it.
func NewSession(a adapter.Adapter, dispatcher *Dispatcher, evaluator *campaign.Evaluator, opts Options) *Session {
	if opts.DebounceCooldown <= 0 {
		opts.DebounceCooldown = DefaultCooldown
	}
	if opts.RestartInterval <= 0 {
		opts.RestartInterval = DefaultRestartInterval
	}

	return &Session{
		adapter:    a,
		dispatcher: dispatcher,
		evaluator:  evaluator,
		opts:       opts,
		state:      StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start validates the registry snapshot, builds the pipeline and begins
// scanning. Calling Start while already scanning is a no-op.
func (s *Session) Start(registry Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateScanning {
		return nil
	}

	if len(registry.Beacons) == 0 {
		return ErrNoTargets
	}

	if !s.adapter.Available() {
		return ErrAdapterUnavailable
	}

	s.state = StateStarting

	pipe, err := newPipeline(registry, s.evaluator, s.dispatcher, s.opts)
	if err != nil {
		s.state = StateIdle
		return err
	}
	s.pipe = pipe

	s.launchScanLocked()
	s.restartTimer = time.AfterFunc(s.opts.RestartInterval, s.refreshScan)
	s.state = StateScanning

	log.Info().
		Int("beacons", len(registry.Beacons)).
		Int("campaigns", len(registry.Campaigns)).
		Dur("restart_interval", s.opts.RestartInterval).
		Msg("Scan session started")

	return nil
}

// Stop tears the session down: restart timer, in-flight scan cycle and
// all pending debounce timers are cancelled before it returns, after
// which no detection event is emitted. Stop is idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return
	}

	s.state = StateStopping

	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}

	s.cancelScan()
	<-s.scanDone

	// closes the emission gate; pending debounce timers die here
	s.pipe.debouncer.Stop()
	s.pipe = nil

	s.state = StateIdle
	log.Info().Msg("Scan session stopped")
}

// refreshScan fires on the restart timer: while still scanning, cancel
// the current scan cycle, start a new one and re-arm. The timer is
// stopped under the session lock in Stop, so a stale callback observes
// a non-scanning state and does nothing.
func (s *Session) refreshScan() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateScanning {
		return
	}

	log.Debug().Msg("Restarting scan cycle")

	s.cancelScan()
	<-s.scanDone
	s.launchScanLocked()

	s.restartTimer = time.AfterFunc(s.opts.RestartInterval, s.refreshScan)
}

// launchScanLocked starts one scan cycle. Caller holds s.mu.
func (s *Session) launchScanLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.cancelScan = cancel
	s.scanDone = done

	pipe := s.pipe
	go func() {
		defer close(done)

		if err := s.adapter.Scan(ctx, pipe.handle); err != nil {
			// Adapter-level mid-scan failure. The restart timer is a
			// health refresh, not a retry mechanism, so the error is
			// only logged; the next refresh or Start attempts anew.
			log.Error().Err(err).Msg("Scan cycle failed")
		}
	}()
}

// pipeline is the per-session decode/match/debounce chain. It is built
// once per Start and never mutated afterwards, so the adapter's
// delivery goroutine reads it without locking.
type pipeline struct {
	decoder    *beacon.Decoder
	matcher    *Matcher
	debouncer  *Debouncer
	campaigns  map[uuid.UUID]*models.CampaignDescriptor
	evaluator  *campaign.Evaluator
	dispatcher *Dispatcher
}

func newPipeline(registry Registry, ev *campaign.Evaluator, dispatcher *Dispatcher, opts Options) (*pipeline, error) {
	for i := range registry.Beacons {
		if err := registry.Beacons[i].Validate(); err != nil {
			return nil, err
		}
	}

	campaigns := make(map[uuid.UUID]*models.CampaignDescriptor, len(registry.Campaigns))
	for i := range registry.Campaigns {
		c := &registry.Campaigns[i]
		if err := c.Validate(); err != nil {
			return nil, err
		}
		campaigns[c.ID] = c
	}

	var targets []beacon.UUID
	if opts.RelaxedDecoding {
		for i := range registry.Beacons {
			if id := registry.Beacons[i].IBeacon; id != nil {
				targets = append(targets, id.UUID)
			}
		}
	}

	return &pipeline{
		decoder:    beacon.NewDecoder(opts.RelaxedDecoding, targets),
		matcher:    NewMatcher(registry.Beacons),
		debouncer:  NewDebouncer(opts.DebounceCooldown),
		campaigns:  campaigns,
		evaluator:  ev,
		dispatcher: dispatcher,
	}, nil
}

// handle processes one advertisement record. It runs on the adapter's
// delivery goroutine and must stay quick; per-record decode and match
// misses are swallowed, never errors.
func (p *pipeline) handle(adv beacon.Advertisement) {
	sig, ok := p.decoder.Decode(adv)
	if !ok {
		return
	}

	desc, ok := p.matcher.Match(sig)
	if !ok {
		return
	}

	c, ok := p.campaigns[desc.CampaignID]
	if !ok {
		log.Warn().
			Str("beacon_id", desc.ID.String()).
			Str("campaign_id", desc.CampaignID.String()).
			Msg("Matched beacon references unknown campaign")
		return
	}

	ev := models.DetectionEvent{
		BeaconID:   desc.ID,
		CampaignID: desc.CampaignID,
		RSSI:       adv.RSSI,
		Timestamp:  time.Now(),
	}

	delay := time.Duration(c.ProximityDelaySeconds) * time.Second
	p.debouncer.Offer(ev, delay, func(ev models.DetectionEvent) {
		// the eligibility evaluator gates the delayed-forward path
		if !p.evaluator.IsAllowedNow(c, time.Now()) {
			log.Debug().
				Str("campaign_id", c.ID.String()).
				Msg("Detection outside campaign time window, not forwarded")
			return
		}
		p.dispatcher.Publish(ev)
	})
}
