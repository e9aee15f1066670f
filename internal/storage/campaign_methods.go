package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
)

// ListCampaigns returns every campaign descriptor.
func (s *PostgresStore) ListCampaigns(ctx context.Context) ([]models.CampaignDescriptor, error) {
	query := `
		SELECT id, name, kind, required_duration_minutes,
		       required_presence_percentage, proximity_delay_seconds,
		       time_blocks, legacy_enabled, legacy_start, legacy_end
		FROM campaigns
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []models.CampaignDescriptor
	for rows.Next() {
		var (
			c          models.CampaignDescriptor
			start, end sql.NullInt32
		)

		if err := rows.Scan(&c.ID, &c.Name, &c.Kind,
			&c.RequiredDurationMinutes, &c.RequiredPresencePercentage,
			&c.ProximityDelaySeconds, &c.TimeBlocks,
			&c.LegacyEnabled, &start, &end); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}

		// legacy window bounds are stored as seconds since midnight
		if start.Valid {
			t := models.TimeOfDay(start.Int32)
			c.LegacyStart = &t
		}
		if end.Valid {
			t := models.TimeOfDay(end.Int32)
			c.LegacyEnd = &t
		}

		if err := c.Validate(); err != nil {
			return nil, err
		}

		campaigns = append(campaigns, c)
	}

	return campaigns, rows.Err()
}
