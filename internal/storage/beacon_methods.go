package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
	"github.com/beacon-checkin/beacon-checkin-server/pkg/beacon"
)

// ListBeacons returns every beacon descriptor in stored order. The
// order is significant: the matcher resolves duplicates first-wins.
func (s *PostgresStore) ListBeacons(ctx context.Context) ([]models.BeaconDescriptor, error) {
	query := `
		SELECT id, campaign_id, name, type, uuid, major, minor, namespace, instance
		FROM beacons
		ORDER BY sort_order, created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list beacons: %w", err)
	}
	defer rows.Close()

	var beacons []models.BeaconDescriptor
	for rows.Next() {
		var (
			b            models.BeaconDescriptor
			uuidStr      sql.NullString
			major, minor sql.NullInt32
			namespace    sql.NullString
			instance     sql.NullString
		)

		if err := rows.Scan(&b.ID, &b.CampaignID, &b.Name, &b.Type,
			&uuidStr, &major, &minor, &namespace, &instance); err != nil {
			return nil, fmt.Errorf("scan beacon: %w", err)
		}

		switch b.Type {
		case models.BeaconTypeIBeacon:
			if !uuidStr.Valid {
				return nil, fmt.Errorf("beacon %s: %w: missing uuid", b.ID, ErrInvalidData)
			}

			u, err := beacon.ParseUUID(uuidStr.String)
			if err != nil {
				return nil, fmt.Errorf("beacon %s: %w", b.ID, err)
			}

			id := &models.IBeaconIdentity{UUID: u}
			if major.Valid {
				id.Major = models.Uint16Ptr(uint16(major.Int32))
			}
			if minor.Valid {
				id.Minor = models.Uint16Ptr(uint16(minor.Int32))
			}
			b.IBeacon = id

		case models.BeaconTypeEddystoneUID:
			if !namespace.Valid || !instance.Valid {
				return nil, fmt.Errorf("beacon %s: %w: missing eddystone identity", b.ID, ErrInvalidData)
			}
			b.Eddystone = &models.EddystoneIdentity{
				Namespace: namespace.String,
				Instance:  instance.String,
			}

		default:
			return nil, fmt.Errorf("beacon %s: %w: unknown type %q", b.ID, ErrInvalidData, b.Type)
		}

		if err := b.Validate(); err != nil {
			return nil, err
		}

		beacons = append(beacons, b)
	}

	return beacons, rows.Err()
}
