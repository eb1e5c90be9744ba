package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"expiry-notifier/internal/models"
)

// AuditFilter narrows ListAudit. Zero values match everything.
type AuditFilter struct {
	DocumentID string
	Status     models.DispatchStatus
	Limit      int
}

// Append inserts entries in one batch.
func (d *DB) Append(ctx context.Context, entries ...models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	query := `
        INSERT INTO notification_audit (
            id, run_id, created_at, kind, document_id, document_type,
            days_left, recipient, channel, status, error
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query,
			pgtype.UUID{Bytes: e.ID, Valid: true}, pgtype.UUID{Bytes: e.RunID, Valid: true},
			e.Timestamp, e.Kind, e.DocumentID, e.DocumentType,
			e.DaysLeft, e.Recipient, e.Channel, string(e.Status), e.Error)
	}
	if err := d.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to append audit entries: %w", err)
	}
	return nil
}

// ListAudit returns the newest entries first.
func (d *DB) ListAudit(ctx context.Context, f AuditFilter) ([]models.AuditEntry, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	query := `
        SELECT id, run_id, created_at, kind, document_id, document_type,
               days_left, recipient, channel, status, error
        FROM notification_audit
        WHERE ($1 = '' OR document_id = $1)
          AND ($2 = '' OR status = $2)
        ORDER BY created_at DESC
        LIMIT $3`
	rows, err := d.Pool.Query(ctx, query, f.DocumentID, string(f.Status), f.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var id, runID pgtype.UUID
		var status string
		if err := rows.Scan(&id, &runID, &e.Timestamp, &e.Kind, &e.DocumentID, &e.DocumentType,
			&e.DaysLeft, &e.Recipient, &e.Channel, &status, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.ID = id.Bytes
		e.RunID = runID.Bytes
		e.Status = models.DispatchStatus(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return out, nil
}
