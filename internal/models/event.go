package models

import (
	"time"

	"github.com/google/uuid"
)

// DetectionEvent is produced when a decoded signal matches a registry
// descriptor. It is ephemeral: the scan core hands it to subscribers
// and keeps no copy.
type DetectionEvent struct {
	BeaconID   uuid.UUID `json:"beaconId"`
	CampaignID uuid.UUID `json:"campaignId"`
	RSSI       int       `json:"rssi"`
	Timestamp  time.Time `json:"timestamp"`
}

// DetectionLog is a persisted record of a forwarded detection, written
// by the integration consumer, never by the scan core.
type DetectionLog struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BeaconID   uuid.UUID `json:"beaconId" db:"beacon_id"`
	CampaignID uuid.UUID `json:"campaignId" db:"campaign_id"`
	RSSI       int       `json:"rssi" db:"rssi"`
	DetectedAt time.Time `json:"detectedAt" db:"detected_at"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}
