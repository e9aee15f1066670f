package api

import (
	"context"
	"fmt"

	"github.com/beacon-checkin/beacon-checkin-server/internal/scan"
	"github.com/beacon-checkin/beacon-checkin-server/internal/storage"
)

// LoadRegistry reads the beacon and campaign tables into the immutable
// snapshot consumed by a scan session. Each start gets a fresh snapshot;
// registry edits take effect on the next start.
func LoadRegistry(ctx context.Context, store storage.Store) (scan.Registry, error) {
	beacons, err := store.ListBeacons(ctx)
	if err != nil {
		return scan.Registry{}, fmt.Errorf("load beacons: %w", err)
	}

	campaigns, err := store.ListCampaigns(ctx)
	if err != nil {
		return scan.Registry{}, fmt.Errorf("load campaigns: %w", err)
	}

	return scan.Registry{
		Beacons:   beacons,
		Campaigns: campaigns,
	}, nil
}
