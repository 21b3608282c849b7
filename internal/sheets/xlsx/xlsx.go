// Package xlsx reads workbook files into importer grids.
package xlsx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedWorkbook is returned for binary workbooks that are readable
// containers but cannot be imported: pre-BIFF8 versions, encrypted files and
// oversized workbook streams.
var ErrUnsupportedWorkbook = errors.New("unsupported workbook")

// ErrInvalidWorkbook wraps input that cannot be opened as a workbook at all.
var ErrInvalidWorkbook = errors.New("invalid workbook")

// compound file signature shared by every BIFF .xls workbook
var xlsSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// ReadFirstSheet returns the first worksheet of an .xlsx or .xls workbook as
// a grid. Text cells stay strings, numeric cells (dates included, as serial
// day numbers) become float64 and empty cells are nil. A workbook without
// sheets yields an empty grid.
func ReadFirstSheet(r io.Reader) ([][]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	if bytes.HasPrefix(data, xlsSignature) {
		return readLegacy(data)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	sheet := sheets[0]

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	grid := make([][]any, len(raw))
	for ri, row := range raw {
		cells := make([]any, len(row))
		for ci, v := range row {
			cells[ci] = typedCell(f, sheet, ci, ri, v)
		}
		grid[ri] = cells
	}
	return grid, nil
}

func typedCell(f *excelize.File, sheet string, col, row int, v string) any {
	if v == "" {
		return nil
	}
	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return v
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return v
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return v
	case excelize.CellTypeBool:
		return v == "1" || v == "TRUE"
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}
