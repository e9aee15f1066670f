package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
)

// CreateDetectionLog records one forwarded detection.
func (s *PostgresStore) CreateDetectionLog(ctx context.Context, entry *models.DetectionLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO detection_logs (id, beacon_id, campaign_id, rssi, detected_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.BeaconID, entry.CampaignID,
		entry.RSSI, entry.DetectedAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create detection log: %w", err)
	}

	return nil
}

// ListDetectionLogs lists recent detections, newest first.
func (s *PostgresStore) ListDetectionLogs(ctx context.Context, limit, offset int) ([]*models.DetectionLog, int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM detection_logs").Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("count detection logs: %w", err)
	}

	query := `
		SELECT id, beacon_id, campaign_id, rssi, detected_at, created_at
		FROM detection_logs
		ORDER BY detected_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list detection logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.DetectionLog
	for rows.Next() {
		entry := &models.DetectionLog{}
		if err := rows.Scan(&entry.ID, &entry.BeaconID, &entry.CampaignID,
			&entry.RSSI, &entry.DetectedAt, &entry.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan detection log: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, count, rows.Err()
}
