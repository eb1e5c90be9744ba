package sheet

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"expiry-notifier/internal/colors"
	"expiry-notifier/internal/config"
	"expiry-notifier/internal/models"
)

func testLayout() Layout {
	return Layout{
		Sheet:            "Fleet",
		IDColumn:         "Registration No",
		LabelColumn:      "Model",
		InspectionColumn: "Inspection Date",
		StatusColumn:     "Status",
		DaysLeftColumn:   "Days Left",
		DateColumns: []config.DateColumn{
			{DocumentType: "Insurance", Header: "Insurance Expiry"},
			{DocumentType: "Fitness", Header: "Fitness Expiry"},
		},
		LogSheet:   "Notification Log",
		LogMaxRows: 3,
	}
}

// writeRegister saves a small register and returns its path.
func writeRegister(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Fleet"))
	header := []any{"registration no", "MODEL", "Insurance  Expiry", "Fitness Expiry", "Inspection Date", "Status", "Days Left"}
	require.NoError(t, f.SetSheetRow("Fleet", "A1", &header))

	rows := [][]any{
		{"EQ-001", "Tipper", "16/10/2026", time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC), "", "", ""},
		{"EQ-002", "Loader", "2026-10-20", "", "", "", ""},
		{"", "Spare", "2026-10-20", "", "", "", ""},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		r := r
		require.NoError(t, f.SetSheetRow("Fleet", cell, &r))
	}

	red, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "FF0000"}})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Fleet", "C3", "C3", red))
	yellow, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFFF00"}}})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Fleet", "D2", "D2", yellow))

	path := filepath.Join(t.TempDir(), "register.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadAll(t *testing.T) {
	wb, err := Open(writeRegister(t), testLayout())
	require.NoError(t, err)
	defer wb.Close()

	records, err := wb.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, 2, first.Row)
	assert.Equal(t, "EQ-001", first.ID)
	assert.Equal(t, "Tipper", first.Label)
	require.Len(t, first.Fields, 2)
	assert.Equal(t, "Insurance", first.Fields[0].DocumentType)
	assert.Equal(t, "16/10/2026", first.Fields[0].Raw)
	assert.Equal(t, "Fitness", first.Fields[1].DocumentType)
	assert.Equal(t, "2026-11-01", first.Fields[1].Raw, "date serials come back as ISO dates")
	assert.True(t, colors.IsHold(first.Fields[1].Color.Background))

	second := records[1]
	assert.True(t, colors.IsExclusion(second.Fields[0].Color.Font))
	assert.Empty(t, second.Fields[1].Raw)

	assert.Empty(t, records[2].ID)
}

func TestReadAll_MissingColumn(t *testing.T) {
	layout := testLayout()
	layout.DateColumns = append(layout.DateColumns, config.DateColumn{DocumentType: "Permit", Header: "Permit Expiry"})

	wb, err := Open(writeRegister(t), layout)
	require.NoError(t, err)
	defer wb.Close()

	_, err = wb.ReadAll(context.Background())
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "Permit Expiry")
}

func TestOpen_UnknownSheet(t *testing.T) {
	layout := testLayout()
	layout.Sheet = "Trucks"
	_, err := Open(writeRegister(t), layout)
	assert.Error(t, err)
}

func TestWriteCellAndSave(t *testing.T) {
	path := writeRegister(t)
	wb, err := Open(path, testLayout())
	require.NoError(t, err)

	_, err = wb.ReadAll(context.Background())
	require.NoError(t, err)
	require.NoError(t, wb.WriteCell(2, "Status", "CRITICAL"))
	require.NoError(t, wb.WriteCell(2, "days left", 0))
	require.NoError(t, wb.WriteCell(2, "Not A Column", "ignored"))
	require.NoError(t, wb.Save())
	require.NoError(t, wb.Close())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	status, err := f.GetCellValue("Fleet", "F2")
	require.NoError(t, err)
	assert.Equal(t, "CRITICAL", status)
	days, err := f.GetCellValue("Fleet", "G2")
	require.NoError(t, err)
	assert.Equal(t, "0", days)
}

func auditEntry(runID uuid.UUID, id string) models.AuditEntry {
	return models.AuditEntry{
		ID:           uuid.New(),
		RunID:        runID,
		Timestamp:    time.Date(2026, time.October, 16, 7, 0, 0, 0, time.UTC),
		Kind:         models.KindDigest,
		DocumentID:   id,
		DocumentType: "Insurance",
		DaysLeft:     4,
		Recipient:    "fleet@example.com",
		Channel:      "email",
		Status:       models.StatusSent,
	}
}

func TestAppend_CreatesAndCapsLogSheet(t *testing.T) {
	path := writeRegister(t)
	wb, err := Open(path, testLayout())
	require.NoError(t, err)
	defer wb.Close()

	runID := uuid.New()
	ctx := context.Background()
	require.NoError(t, wb.Append(ctx, auditEntry(runID, "EQ-001"), auditEntry(runID, "EQ-002")))
	require.NoError(t, wb.Append(ctx, auditEntry(runID, "EQ-003"), auditEntry(runID, "EQ-004")))

	rows, err := wb.LogRows()
	require.NoError(t, err)
	assert.Len(t, rows, 4, "the cap is applied on save")

	require.NoError(t, wb.Save())
	rows, err = wb.LogRows()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "EQ-002", rows[0][3])
	assert.Equal(t, "EQ-004", rows[2][3])
	assert.Equal(t, runID.String(), rows[2][1])
	assert.Equal(t, "SENT", rows[2][8])

	require.NoError(t, wb.Append(ctx, auditEntry(runID, "EQ-005")))
	rows, err = wb.LogRows()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "EQ-005", rows[3][3], "appends continue after the trimmed rows")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	header, err := f.GetCellValue("Notification Log", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Timestamp", header)
	last, err := f.GetCellValue("Notification Log", "D4")
	require.NoError(t, err)
	assert.Equal(t, "EQ-004", last)
}

// writeRegisterWithLog saves a register whose log sheet already holds n rows.
func writeRegisterWithLog(t *testing.T, n int) string {
	t.Helper()
	path := writeRegister(t)
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.NewSheet("Notification Log")
	require.NoError(t, err)
	header := logHeader
	require.NoError(t, f.SetSheetRow("Notification Log", "A1", &header))
	for i := 0; i < n; i++ {
		row := []any{"2026-10-15 07:00:00", "seed", "digest", fmt.Sprintf("OLD-%04d", i), "Insurance", 3, "fleet@example.com", "email", "SENT", ""}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, f.SetSheetRow("Notification Log", cell, &row))
	}
	require.NoError(t, f.Save())
	return path
}

func TestAppend_FullLogStaysCheap(t *testing.T) {
	layout := testLayout()
	layout.LogMaxRows = 5000
	path := writeRegisterWithLog(t, 5000)

	wb, err := Open(path, layout)
	require.NoError(t, err)
	defer wb.Close()

	ctx := context.Background()
	runID := uuid.New()
	start := time.Now()
	for i := 0; i < 200; i++ {
		e := auditEntry(runID, fmt.Sprintf("NEW-%03d", i))
		require.NoError(t, wb.Append(ctx, e, e))
	}
	assert.Equal(t, 5400, wb.logRows)
	require.NoError(t, wb.Save())
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, 5000, wb.logRows)

	rows, err := wb.LogRows()
	require.NoError(t, err)
	require.Len(t, rows, 5000)
	assert.Equal(t, "OLD-0400", rows[0][3])
	assert.Equal(t, "NEW-199", rows[4999][3])
}

func TestDateValue(t *testing.T) {
	assert.Equal(t, "", dateValue("  "))
	assert.Equal(t, "16/10/2026", dateValue("16/10/2026"))
	assert.Equal(t, "2026-10-16", dateValue("46311"))
	assert.Equal(t, "-3", dateValue("-3"))
}
