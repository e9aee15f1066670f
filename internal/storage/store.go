package storage

import (
	"context"
	"errors"

	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
)

// Common errors
var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidData = errors.New("invalid data")
)

// Store is the persistence collaborator. It supplies the registry
// snapshot handed to the scan session at start, and records the
// detection log written by the integration consumer.
type Store interface {
	// Registry snapshot
	ListBeacons(ctx context.Context) ([]models.BeaconDescriptor, error)
	ListCampaigns(ctx context.Context) ([]models.CampaignDescriptor, error)

	// Detection log
	CreateDetectionLog(ctx context.Context, entry *models.DetectionLog) error
	ListDetectionLogs(ctx context.Context, limit, offset int) ([]*models.DetectionLog, int64, error)

	// Close the store
	Close() error
}
