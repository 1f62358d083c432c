package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/digest/internal/models"
)

// Workbook is a local .xlsx sink laid out like the Google sheet.
type Workbook struct {
	path  string
	sheet string
}

// NewWorkbook returns a workbook sink for path. The file is created on first write.
func NewWorkbook(path, sheet string) *Workbook {
	if sheet == "" {
		sheet = "Sheet1"
	}
	return &Workbook{path: path, sheet: sheet}
}

// Name identifies the sink in publish warnings.
func (w *Workbook) Name() string {
	return "workbook"
}

// Path returns the workbook file path.
func (w *Workbook) Path() string {
	return w.path
}

func (w *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
		if w.sheet != "Sheet1" {
			if err := f.SetSheetName("Sheet1", w.sheet); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("name sheet: %w", err)
			}
		}
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	idx, err := f.GetSheetIndex(w.sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("find sheet %q: %w", w.sheet, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(w.sheet); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("create sheet %q: %w", w.sheet, err)
		}
	}
	return f, nil
}

// KnownIDs returns the Unique ID column of the workbook. A missing file has no ids.
func (w *Workbook) KnownIDs(_ context.Context) ([]string, error) {
	if _, err := os.Stat(w.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(w.sheet)
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", w.sheet, err)
	}
	var ids []string
	for i, row := range rows {
		if i == 0 || len(row) <= models.UniqueIDColumn {
			continue
		}
		if id := row[models.UniqueIDColumn]; id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// WriteEntries appends entries after the last used row, writing headers into an empty sheet.
// Entries whose Unique ID is already in the sheet are skipped, so offering the same entries
// again after another sink failed does not duplicate rows.
func (w *Workbook) WriteEntries(ctx context.Context, entries []models.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	f, err := w.open()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	rows, err := f.GetRows(w.sheet)
	if err != nil {
		return 0, fmt.Errorf("get rows for sheet %q: %w", w.sheet, err)
	}
	present := make(map[string]bool, len(rows))
	for _, row := range rows {
		if len(row) > models.UniqueIDColumn {
			present[row[models.UniqueIDColumn]] = true
		}
	}
	next := len(rows) + 1
	if len(rows) == 0 {
		if err := w.setRow(f, 1, models.Headers); err != nil {
			return 0, err
		}
		next = 2
	}
	written := 0
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		id := entries[i].UniqueID
		if id != "" && present[id] {
			continue
		}
		present[id] = true
		if err := w.setRow(f, next+written, entries[i].Row()); err != nil {
			return 0, err
		}
		written++
	}
	if written == 0 {
		return 0, nil
	}

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("create workbook directory: %w", err)
		}
	}
	if err := f.SaveAs(w.path); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}
	return written, nil
}

func (w *Workbook) setRow(f *excelize.File, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	values := toRow(cells)
	if err := f.SetSheetRow(w.sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
