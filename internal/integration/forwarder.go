package integration

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
	"github.com/beacon-checkin/beacon-checkin-server/internal/scan"
	"github.com/beacon-checkin/beacon-checkin-server/internal/storage"
)

// subscriberBuffer sizes the dispatcher subscription. Detections
// arrive at human walking pace; the buffer only has to absorb a slow
// NATS round trip.
const subscriberBuffer = 64

// Forwarder is the downstream consumer of detection events: it drains
// the session's broadcast channel, publishes each event to NATS for
// the notification service, and records it in the detection log. The
// scan core itself never persists events.
type Forwarder struct {
	nc         *nats.Conn
	store      storage.Store
	dispatcher *scan.Dispatcher
}

// NewForwarder creates a forwarder.
func NewForwarder(nc *nats.Conn, store storage.Store, dispatcher *scan.Dispatcher) *Forwarder {
	return &Forwarder{nc: nc, store: store, dispatcher: dispatcher}
}

// Run subscribes to the dispatcher and forwards events until ctx is
// cancelled or the dispatcher closes.
func (f *Forwarder) Run(ctx context.Context) error {
	events, cancel := f.dispatcher.Subscribe(subscriberBuffer)
	defer cancel()

	log.Info().Msg("Detection forwarder started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				log.Info().Msg("Detection dispatcher closed, forwarder exiting")
				return nil
			}
			f.forward(ctx, ev)
		}
	}
}

// forward publishes one event and records it. Failures are logged and
// do not stop the forwarder; a missed notification must never stall
// the scan pipeline.
func (f *Forwarder) forward(ctx context.Context, ev models.DetectionEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal detection event")
		return
	}

	subject := fmt.Sprintf("checkin.campaign.%s.detection", ev.CampaignID)
	if err := f.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to publish detection event")
	}

	entry := &models.DetectionLog{
		BeaconID:   ev.BeaconID,
		CampaignID: ev.CampaignID,
		RSSI:       ev.RSSI,
		DetectedAt: ev.Timestamp,
	}
	if err := f.store.CreateDetectionLog(ctx, entry); err != nil {
		log.Error().Err(err).Msg("Failed to record detection log")
	}

	log.Info().
		Str("beacon_id", ev.BeaconID.String()).
		Str("campaign_id", ev.CampaignID.String()).
		Int("rssi", ev.RSSI).
		Msg("Detection forwarded")
}
