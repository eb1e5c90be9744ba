package sheet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"expiry-notifier/internal/models"
)

var logHeader = []any{
	"Timestamp", "Run ID", "Kind", "Document ID", "Document Type",
	"Days Left", "Recipient", "Channel", "Status", "Error",
}

// Append writes entries below the last log row, creating the log sheet on
// first use. The sheet is read once per snapshot to find its end; rows over
// LogMaxRows are dropped by the next Save.
func (w *Workbook) Append(ctx context.Context, entries ...models.AuditEntry) error {
	if len(entries) == 0 || w.layout.LogSheet == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureLogSheet(); err != nil {
		return err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := w.logRows + 2
		cell, err := excelize.CoordinatesToCellName(1, next)
		if err != nil {
			return err
		}
		values := []any{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			uuid.UUID(e.RunID).String(),
			e.Kind,
			e.DocumentID,
			e.DocumentType,
			e.DaysLeft,
			e.Recipient,
			e.Channel,
			string(e.Status),
			e.Error,
		}
		if err := w.file.SetSheetRow(w.layout.LogSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write log row %d: %w", next, err)
		}
		w.logRows++
	}
	return nil
}

// LogRows returns the data rows of the log sheet, oldest first.
func (w *Workbook) LogRows() ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.layout.LogSheet == "" {
		return nil, nil
	}
	if idx, err := w.file.GetSheetIndex(w.layout.LogSheet); err != nil || idx < 0 {
		return nil, nil
	}
	rows, err := w.file.GetRows(w.layout.LogSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read log sheet: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

// ensureLogSheet creates the log sheet if needed and sets logRows to its
// current number of data rows.
func (w *Workbook) ensureLogSheet() error {
	if w.logRows >= 0 {
		return nil
	}
	idx, err := w.file.GetSheetIndex(w.layout.LogSheet)
	if err == nil && idx >= 0 {
		rows, err := w.file.GetRows(w.layout.LogSheet)
		if err != nil {
			return fmt.Errorf("failed to read log sheet: %w", err)
		}
		if len(rows) > 0 {
			w.logRows = len(rows) - 1
			return nil
		}
	} else if _, err := w.file.NewSheet(w.layout.LogSheet); err != nil {
		return fmt.Errorf("failed to create log sheet: %w", err)
	}
	header := logHeader
	if err := w.file.SetSheetRow(w.layout.LogSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write log header: %w", err)
	}
	w.logRows = 0
	return nil
}

// trimLog keeps the newest LogMaxRows data rows. The sheet is rebuilt in one
// pass instead of removing rows one at a time.
func (w *Workbook) trimLog() error {
	max := w.layout.LogMaxRows
	if max <= 0 || w.logRows <= max {
		return nil
	}
	rows, err := w.file.GetRows(w.layout.LogSheet)
	if err != nil {
		return fmt.Errorf("failed to read log sheet: %w", err)
	}
	if len(rows) <= max+1 {
		w.logRows = len(rows) - 1
		return nil
	}
	keep := rows[len(rows)-max:]

	if err := w.file.DeleteSheet(w.layout.LogSheet); err != nil {
		return fmt.Errorf("failed to trim log sheet: %w", err)
	}
	if _, err := w.file.NewSheet(w.layout.LogSheet); err != nil {
		return fmt.Errorf("failed to trim log sheet: %w", err)
	}
	header := logHeader
	if err := w.file.SetSheetRow(w.layout.LogSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write log header: %w", err)
	}
	for i, row := range keep {
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(w.layout.LogSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to rewrite log row %d: %w", i+2, err)
		}
	}
	w.logRows = len(keep)
	return nil
}
