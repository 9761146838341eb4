// Package tableio picks a reader for an input file by its extension.
package tableio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/filingsync/internal/config"
	"github.com/ginjaninja78/filingsync/internal/csvparser"
	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/ginjaninja78/filingsync/internal/xlsxparser"
)

// Read loads a workbook or CSV file into a table. Unknown extensions and
// files without data rows are input errors.
func Read(path string, csv config.CSVSettings) (*types.Table, error) {
	var (
		table *types.Table
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		table, err = xlsxparser.Read(path)
	case ".csv", ".txt", ".tsv":
		table, err = csvparser.Parse(path, csv)
	default:
		return nil, types.NewInputError(path, fmt.Errorf("unsupported file type %q", filepath.Ext(path)))
	}
	if err != nil {
		return nil, err
	}
	if len(table.Rows) == 0 {
		return nil, types.NewInputError(path, fmt.Errorf("file has no data rows"))
	}
	return table, nil
}
