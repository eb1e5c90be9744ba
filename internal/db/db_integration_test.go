//go:build integration

package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expiry-notifier/internal/logging"
	"expiry-notifier/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	ctx := context.Background()
	d, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	require.NoError(t, d.Migrate(logging.NewNop()))
	_, err = d.Pool.Exec(ctx, `TRUNCATE run_state, alert_watermarks, notification_audit`)
	require.NoError(t, err)
	return d
}

func TestRunState(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	last, err := d.LastRunDate(ctx)
	require.NoError(t, err)
	assert.Empty(t, last)

	require.NoError(t, d.SetLastRunDate(ctx, "2026-10-15"))
	require.NoError(t, d.SetLastRunDate(ctx, "2026-10-16"))
	last, err = d.LastRunDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-16", last)
}

func TestWatermarks(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	key := models.WatermarkKey{DocumentID: "EQ-001", DocumentType: "Insurance"}

	_, found, err := d.GetWatermark(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	wm := models.Watermark{LastNotifiedDate: "2026-10-16", Threshold: 14, Expiry: "2026-10-28"}
	require.NoError(t, d.SetWatermark(ctx, key, wm))
	wm.Threshold = 7
	require.NoError(t, d.SetWatermark(ctx, key, wm))

	got, found, err := d.GetWatermark(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, wm, got)
}

func TestAudit(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	runID := uuid.New()
	base := time.Date(2026, time.October, 16, 7, 0, 0, 0, time.UTC)

	entries := []models.AuditEntry{
		{ID: uuid.New(), RunID: runID, Timestamp: base, Kind: models.KindDigest, DocumentID: "EQ-001",
			DocumentType: "Insurance", DaysLeft: 3, Recipient: "a@example.com", Channel: "email", Status: models.StatusSent},
		{ID: uuid.New(), RunID: runID, Timestamp: base.Add(time.Second), Kind: models.KindDigest, DocumentID: "EQ-002",
			DocumentType: "Fitness", DaysLeft: -4, Recipient: "a@example.com", Channel: "email", Status: models.StatusFailed, Error: "timeout"},
	}
	require.NoError(t, d.Append(ctx, entries...))

	all, err := d.ListAudit(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "EQ-002", all[0].DocumentID)
	assert.Equal(t, runID, uuid.UUID(all[0].RunID))

	failed, err := d.ListAudit(ctx, AuditFilter{Status: models.StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "timeout", failed[0].Error)
}
