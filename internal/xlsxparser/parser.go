// =============================================================================
// filingsync - XLSX Reader
// =============================================================================
//
// Reads one sheet of an Excel workbook into a types.Table. Both sources are
// delivered as workbooks: the filing-authority paste and the platform export.
//
// CELL VALUES:
//   Cells are read raw (no number formatting applied). Dates therefore arrive
//   as Excel serial numbers and large ids are not rendered in scientific
//   notation; the normalize package turns both back into typed values.
//
// SHEET SELECTION:
//   The first sheet is read unless a sheet name is given. Sheets whose name
//   starts with "_" are never picked automatically.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/xuri/excelize/v2"
)

// Options controls how a workbook is read.
type Options struct {
	// Sheet is the sheet to read. Empty means the first visible data sheet.
	Sheet string

	// HeaderRow is the 0-based index of the header row.
	// Default: 0
	HeaderRow int
}

// DefaultOptions returns the default read options.
func DefaultOptions() Options {
	return Options{}
}

// Read reads the first sheet of a workbook.
//
// PARAMETERS:
//   - path: The path to the XLSX file.
//
// RETURNS:
//   - The sheet as a table. Fully empty rows are skipped; row numbers keep
//     the original sheet lines.
//   - An InputError if the file cannot be read or holds no header row.
func Read(path string) (*types.Table, error) {
	return ReadWithOptions(path, DefaultOptions())
}

// ReadWithOptions reads a workbook using custom options.
func ReadWithOptions(path string, opts Options) (*types.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, types.NewInputError(path, fmt.Errorf("failed to open workbook: %w", err))
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = firstSheet(f)
	}
	if sheet == "" {
		return nil, types.NewInputError(path, fmt.Errorf("workbook has no sheets"))
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, types.NewInputError(path, fmt.Errorf("failed to read sheet %q: %w", sheet, err))
	}

	table, err := buildTable(rows, opts.HeaderRow)
	if err != nil {
		return nil, types.NewInputError(path, err)
	}
	table.Source = path
	return table, nil
}

// SheetNames lists the sheets of a workbook.
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, types.NewInputError(path, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func firstSheet(f *excelize.File) string {
	for _, name := range f.GetSheetList() {
		if strings.HasPrefix(name, "_") {
			continue
		}
		visible, err := f.GetSheetVisible(name)
		if err == nil && !visible {
			continue
		}
		return name
	}
	return ""
}

// buildTable splits raw rows into a header row and data rows.
func buildTable(rows [][]string, headerRow int) (*types.Table, error) {
	if headerRow < 0 || headerRow >= len(rows) || isRowEmpty(rows[headerRow]) {
		return nil, fmt.Errorf("no header row found")
	}

	table := &types.Table{Headers: trimAll(rows[headerRow])}
	for i := headerRow + 1; i < len(rows); i++ {
		if isRowEmpty(rows[i]) {
			continue
		}
		table.Rows = append(table.Rows, rows[i])
		table.RowNumbers = append(table.RowNumbers, i+1)
	}
	return table, nil
}

func trimAll(row []string) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

// isRowEmpty checks if a row has no non-empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
