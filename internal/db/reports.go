package db

import (
	"context"
	"fmt"
	"time"

	"github.com/david/scholarship-finder/internal/models"
)

// WriteReport appends one ingestion report row.
func (s *Store) WriteReport(ctx context.Context, r models.IngestionReport) error {
	if r.OccurredAt.IsZero() {
		r.OccurredAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingestion_reports (
			run_id, source, status, message,
			items_processed, items_added, items_updated, items_flagged,
			error, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		r.RunID, r.Source, r.Status, r.Message,
		r.ItemsProcessed, r.ItemsAdded, r.ItemsUpdated, r.ItemsFlagged,
		nullableText(r.Error), r.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert report failed: %w", err)
	}
	return nil
}

// ListReports returns the newest reports first, optionally for one source.
func (s *Store) ListReports(ctx context.Context, source string, limit int) ([]models.IngestionReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, source, status, message,
			items_processed, items_added, items_updated, items_flagged,
			COALESCE(error, ''), occurred_at
		FROM ingestion_reports
		WHERE $1 = '' OR source = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var reports []models.IngestionReport
	for rows.Next() {
		var r models.IngestionReport
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.Source, &r.Status, &r.Message,
			&r.ItemsProcessed, &r.ItemsAdded, &r.ItemsUpdated, &r.ItemsFlagged,
			&r.Error, &r.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return reports, nil
}
