// Package sheet reads the fleet register from an xlsx workbook and writes
// status cells and log rows back to it.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"expiry-notifier/internal/config"
	"expiry-notifier/internal/expiry"
	"expiry-notifier/internal/models"
)

// ErrMissingColumn is returned when a configured header is not on the
// register's first row.
var ErrMissingColumn = errors.New("missing required column")

// Layout names the sheet and the headers the register uses. Optional
// columns may be empty or absent from the sheet.
type Layout struct {
	Sheet            string
	IDColumn         string
	LabelColumn      string
	PlantColumn      string
	LocationColumn   string
	InspectionColumn string
	StatusColumn     string
	DaysLeftColumn   string
	DateColumns      []config.DateColumn
	LogSheet         string
	LogMaxRows       int
}

// LayoutFromConfig copies the register layout out of cfg.
func LayoutFromConfig(cfg config.Config) Layout {
	return Layout{
		Sheet:            cfg.Sheet.Name,
		IDColumn:         cfg.Sheet.IDColumn,
		LabelColumn:      cfg.Sheet.LabelColumn,
		PlantColumn:      cfg.Sheet.PlantColumn,
		LocationColumn:   cfg.Sheet.LocationColumn,
		InspectionColumn: cfg.Sheet.InspectionColumn,
		StatusColumn:     cfg.Sheet.StatusColumn,
		DaysLeftColumn:   cfg.Sheet.DaysLeftColumn,
		DateColumns:      cfg.Sheet.DateColumns,
		LogSheet:         cfg.Sheet.LogName,
		LogMaxRows:       cfg.Sheet.LogMaxRows,
	}
}

// Workbook is the register file. Every ReadAll reopens the file so each run
// works on a fresh snapshot; writes go to that snapshot until Save.
type Workbook struct {
	path   string
	layout Layout

	mu      sync.Mutex
	file    *excelize.File
	sheet   string
	headers map[string]int
	// data rows in the log sheet, -1 until the sheet is first touched
	logRows int
}

// Open checks that path is a readable workbook and returns a Workbook for it.
func Open(path string, layout Layout) (*Workbook, error) {
	w := &Workbook{path: path, layout: layout}
	if err := w.reopen(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workbook) reopen() error {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return fmt.Errorf("failed to open workbook %s: %w", w.path, err)
	}
	sheet := w.layout.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		_ = f.Close()
		return fmt.Errorf("sheet %q not found in %s", sheet, w.path)
	}
	if w.file != nil {
		_ = w.file.Close()
	}
	w.file = f
	w.sheet = sheet
	w.headers = nil
	w.logRows = -1
	return nil
}

// ReadAll returns every data row of the register. The header row is
// matched case-insensitively; the identifier and every date column must be
// present.
func (w *Workbook) ReadAll(ctx context.Context) ([]models.DocumentRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.reopen(); err != nil {
		return nil, err
	}
	rows, err := w.file.GetRows(w.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", w.sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %s has no header row", ErrMissingColumn, w.sheet)
	}
	w.headers = indexHeaders(rows[0])
	if err := w.checkColumns(); err != nil {
		return nil, err
	}

	styles := map[int]models.CellColor{}
	records := make([]models.DocumentRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rowNum := i + 2
		rec := models.DocumentRecord{
			Row:            rowNum,
			ID:             strings.TrimSpace(w.cell(row, w.layout.IDColumn)),
			Label:          strings.TrimSpace(w.cell(row, w.layout.LabelColumn)),
			Plant:          strings.TrimSpace(w.cell(row, w.layout.PlantColumn)),
			Location:       strings.TrimSpace(w.cell(row, w.layout.LocationColumn)),
			InspectionDate: dateValue(w.cell(row, w.layout.InspectionColumn)),
		}
		for _, dc := range w.layout.DateColumns {
			color, err := w.cellColor(rowNum, dc.Header, styles)
			if err != nil {
				return nil, err
			}
			rec.Fields = append(rec.Fields, models.DateField{
				DocumentType: dc.DocumentType,
				Column:       dc.Header,
				Raw:          dateValue(w.cell(row, dc.Header)),
				Color:        color,
			})
		}
		records = append(records, rec)
	}
	return records, nil
}

// CellColor returns the explicit font and fill colors of the cell at row
// under header.
func (w *Workbook) CellColor(row int, header string) (models.CellColor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureHeaders(); err != nil {
		return models.CellColor{}, err
	}
	return w.cellColor(row, header, nil)
}

// WriteCell sets the cell at row under header. Headers the sheet does not
// have are ignored so optional writeback columns can be left out.
func (w *Workbook) WriteCell(row int, header string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureHeaders(); err != nil {
		return err
	}
	col, ok := w.column(header)
	if !ok {
		return nil
	}
	name, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return err
	}
	return w.file.SetCellValue(w.sheet, name, value)
}

// Save caps the log sheet and writes pending changes back to the workbook
// file.
func (w *Workbook) Save() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.trimLog(); err != nil {
		return err
	}
	if err := w.file.Save(); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", w.path, err)
	}
	return nil
}

// Close releases the open snapshot.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *Workbook) ensureHeaders() error {
	if w.headers != nil {
		return nil
	}
	rows, err := w.file.GetRows(w.sheet)
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", w.sheet, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: sheet %s has no header row", ErrMissingColumn, w.sheet)
	}
	w.headers = indexHeaders(rows[0])
	return nil
}

func (w *Workbook) checkColumns() error {
	var missing []string
	if _, ok := w.column(w.layout.IDColumn); !ok {
		missing = append(missing, w.layout.IDColumn)
	}
	for _, dc := range w.layout.DateColumns {
		if _, ok := w.column(dc.Header); !ok {
			missing = append(missing, dc.Header)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v in sheet %s", ErrMissingColumn, missing, w.sheet)
	}
	return nil
}

func (w *Workbook) column(header string) (int, bool) {
	if header == "" {
		return 0, false
	}
	idx, ok := w.headers[normalizeHeader(header)]
	return idx, ok
}

func (w *Workbook) cell(row []string, header string) string {
	idx, ok := w.column(header)
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// cellColor resolves the style of one cell. cache, when non-nil, maps style
// IDs already looked up during this read.
func (w *Workbook) cellColor(row int, header string, cache map[int]models.CellColor) (models.CellColor, error) {
	col, ok := w.column(header)
	if !ok {
		return models.CellColor{}, nil
	}
	name, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return models.CellColor{}, err
	}
	styleID, err := w.file.GetCellStyle(w.sheet, name)
	if err != nil {
		return models.CellColor{}, fmt.Errorf("failed to read style of %s: %w", name, err)
	}
	if c, ok := cache[styleID]; ok {
		return c, nil
	}
	style, err := w.file.GetStyle(styleID)
	if err != nil {
		return models.CellColor{}, fmt.Errorf("failed to read style %d: %w", styleID, err)
	}
	var c models.CellColor
	if style.Font != nil {
		c.Font = style.Font.Color
	}
	if len(style.Fill.Color) > 0 {
		c.Background = style.Fill.Color[0]
	}
	if cache != nil {
		cache[styleID] = c
	}
	return c, nil
}

func indexHeaders(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// dateValue turns an Excel date serial into an ISO date. Text is passed
// through for the evaluator to parse.
func dateValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	// 1 is 1900-01-01, 2958465 is 9999-12-31
	if v < 1 || v > 2958465 {
		return raw
	}
	t, err := excelize.ExcelDateToTime(v, false)
	if err != nil {
		return raw
	}
	return t.Format(expiry.DayLayout)
}
