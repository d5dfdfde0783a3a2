package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"RucFilter/internal/ports"
)

// Workbook is a Sheet stored in a local .xlsx file. Every write is saved
// to disk before returning.
type Workbook struct {
	mu    sync.Mutex
	file  *excelize.File
	path  string
	sheet string
}

var _ ports.Sheet = (*Workbook)(nil)

// OpenWorkbook opens path, creating the file and the sheet when missing.
func OpenWorkbook(path, sheet string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		f = excelize.NewFile()
		if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
			return nil, fmt.Errorf("name sheet: %w", err)
		}
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("add sheet %s: %w", sheet, err)
		}
	}

	w := &Workbook{file: f, path: path, sheet: sheet}
	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("save %s: %w", path, err)
	}
	return w, nil
}

func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *Workbook) Values(_ context.Context, a1 string) ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.file.GetRows(w.sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if a1 == "" {
		return rows, nil
	}

	b, err := parseBlock(a1)
	if err != nil {
		return nil, err
	}
	var out [][]string
	for r := b.row1; r <= b.row2 && r <= len(rows); r++ {
		row := rows[r-1]
		var cells []string
		for c := b.col1; c <= b.col2 && c <= len(row); c++ {
			cells = append(cells, row[c-1])
		}
		out = append(out, cells)
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (w *Workbook) BatchUpdate(_ context.Context, ranges []ports.ValueRange) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, vr := range ranges {
		b, err := parseBlock(vr.Range)
		if err != nil {
			return err
		}
		for i, row := range vr.Values {
			for j, v := range row {
				cell, err := excelize.CoordinatesToCellName(b.col1+j, b.row1+i)
				if err != nil {
					return err
				}
				if err := w.file.SetCellStr(w.sheet, cell, v); err != nil {
					return fmt.Errorf("set %s: %w", cell, err)
				}
			}
		}
	}
	return w.file.SaveAs(w.path)
}

func (w *Workbook) BatchClear(_ context.Context, ranges []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.file.GetRows(w.sheet)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	for _, a1 := range ranges {
		b, err := parseBlock(a1)
		if err != nil {
			return err
		}
		for r := b.row1; r <= b.row2 && r <= len(rows); r++ {
			for c := b.col1; c <= b.col2 && c <= len(rows[r-1]); c++ {
				cell, _ := excelize.CoordinatesToCellName(c, r)
				if err := w.file.SetCellStr(w.sheet, cell, ""); err != nil {
					return fmt.Errorf("clear %s: %w", cell, err)
				}
			}
		}
	}
	return w.file.SaveAs(w.path)
}

// block is an inclusive 1-based cell rectangle.
type block struct {
	col1, row1, col2, row2 int
}

// parseBlock reads "B2", "A2:D9" and open-ended "A2:A" ranges.
func parseBlock(a1 string) (block, error) {
	start, end, found := strings.Cut(a1, ":")
	c1, r1, err := splitCell(start)
	if err != nil || r1 == 0 {
		return block{}, fmt.Errorf("invalid range %q", a1)
	}
	if !found {
		return block{c1, r1, c1, r1}, nil
	}
	c2, r2, err := splitCell(end)
	if err != nil {
		return block{}, fmt.Errorf("invalid range %q", a1)
	}
	if r2 == 0 {
		r2 = excelize.TotalRows
	}
	return block{c1, r1, c2, r2}, nil
}

func splitCell(cell string) (col, row int, err error) {
	i := strings.IndexAny(cell, "0123456789")
	letters, digits := cell, ""
	if i >= 0 {
		letters, digits = cell[:i], cell[i:]
	}
	col, err = excelize.ColumnNameToNumber(letters)
	if err != nil {
		return 0, 0, err
	}
	if digits != "" {
		row, err = strconv.Atoi(digits)
		if err != nil {
			return 0, 0, err
		}
	}
	return col, row, nil
}
