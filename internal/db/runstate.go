package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// LastRunDate returns the date of the last completed run, or "" if none.
func (d *DB) LastRunDate(ctx context.Context) (string, error) {
	var last time.Time
	err := d.Pool.QueryRow(ctx, `SELECT last_run_date FROM run_state WHERE id = 1`).Scan(&last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get last run date: %w", err)
	}
	return last.Format(dayLayout), nil
}

// SetLastRunDate records date (YYYY-MM-DD) as the last completed run.
func (d *DB) SetLastRunDate(ctx context.Context, date string) error {
	query := `
        INSERT INTO run_state (id, last_run_date, updated_at)
        VALUES (1, $1::date, now())
        ON CONFLICT (id) DO UPDATE
        SET last_run_date = EXCLUDED.last_run_date, updated_at = now()`
	if _, err := d.Pool.Exec(ctx, query, date); err != nil {
		return fmt.Errorf("failed to set last run date: %w", err)
	}
	return nil
}

const dayLayout = "2006-01-02"
