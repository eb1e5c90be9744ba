package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"expiry-notifier/internal/models"
)

func (d *DB) GetWatermark(ctx context.Context, key models.WatermarkKey) (models.Watermark, bool, error) {
	var last, exp time.Time
	var wm models.Watermark
	query := `
        SELECT last_notified_date, threshold, expiry_date
        FROM alert_watermarks
        WHERE document_id = $1 AND document_type = $2`
	err := d.Pool.QueryRow(ctx, query, key.DocumentID, key.DocumentType).Scan(&last, &wm.Threshold, &exp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Watermark{}, false, nil
		}
		return models.Watermark{}, false, fmt.Errorf("failed to get watermark for %s: %w", key, err)
	}
	wm.LastNotifiedDate = last.Format(dayLayout)
	wm.Expiry = exp.Format(dayLayout)
	return wm, true, nil
}

func (d *DB) SetWatermark(ctx context.Context, key models.WatermarkKey, wm models.Watermark) error {
	query := `
        INSERT INTO alert_watermarks (document_id, document_type, last_notified_date, threshold, expiry_date, updated_at)
        VALUES ($1, $2, $3::date, $4, $5::date, now())
        ON CONFLICT (document_id, document_type) DO UPDATE
        SET last_notified_date = EXCLUDED.last_notified_date,
            threshold = EXCLUDED.threshold,
            expiry_date = EXCLUDED.expiry_date,
            updated_at = now()`
	_, err := d.Pool.Exec(ctx, query, key.DocumentID, key.DocumentType, wm.LastNotifiedDate, wm.Threshold, wm.Expiry)
	if err != nil {
		return fmt.Errorf("failed to set watermark for %s: %w", key, err)
	}
	return nil
}
