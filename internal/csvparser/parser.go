// =============================================================================
// filingsync - CSV Reader
// =============================================================================
//
// Reads a delimited text export into a types.Table. Operators sometimes save
// the filing-authority paste as CSV instead of a workbook, and some platform
// exports are CSV by default.
//
// FEATURES:
//   - Configurable or sniffed delimiter (comma, tab, pipe, semicolon)
//   - Multi-line headers merged into one header row
//   - UTF-8 byte order mark stripped from the first header
//   - Fully empty rows skipped, original line numbers kept
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/filingsync/internal/config"
	"github.com/ginjaninja78/filingsync/internal/types"
)

// utf8BOM is written by spreadsheet tools when saving "CSV UTF-8".
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sniffCandidates are the delimiters considered when none is configured.
var sniffCandidates = []rune{',', '\t', ';', '|'}

// Read reads a CSV file using the default settings.
func Read(filePath string) (*types.Table, error) {
	return Parse(filePath, config.DefaultCSVSettings())
}

// Parse reads a CSV file and returns it as a table.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV parsing settings.
//
// RETURNS:
//   - The parsed table.
//   - An InputError if the file cannot be read or holds no header row.
//
// PARSING PROCESS:
//   1. Read the file and strip a UTF-8 byte order mark
//   2. Configure the CSV reader, sniffing the delimiter if not set
//   3. Read and merge header rows (for multi-line headers)
//   4. Read data rows starting from the configured data start row
func Parse(filePath string, settings config.CSVSettings) (*types.Table, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, types.NewInputError(filePath, fmt.Errorf("failed to open file: %w", err))
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	table, err := ParseReader(bytes.NewReader(data), settings)
	if err != nil {
		return nil, types.NewInputError(filePath, err)
	}
	table.Source = filePath
	return table, nil
}

// ParseReader parses CSV content from a reader.
func ParseReader(r io.Reader, settings config.CSVSettings) (*types.Table, error) {
	buffered := bufio.NewReader(r)

	if settings.Delimiter == "" {
		peek, _ := buffered.Peek(4096)
		settings.Delimiter = string(SniffDelimiter(peek))
	}

	csvReader := csv.NewReader(buffered)
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	headers, err := extractHeaders(allRows, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to extract headers: %w", err)
	}

	table := &types.Table{Headers: headers}
	extractDataRows(allRows, table, settings)
	return table, nil
}

// SniffDelimiter picks the candidate delimiter that occurs most often in the
// first line. Comma wins when nothing else is found.
func SniffDelimiter(sample []byte) rune {
	line := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}

	best, bestCount := ',', 0
	for _, c := range sniffCandidates {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = []rune(settings.Delimiter)[0]
		} else {
			reader.Comma = ','
		}
	}

	// Pasted exports have ragged rows.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// extractHeaders extracts and merges headers from the CSV.
//
// MULTI-LINE HEADER HANDLING:
//   Non-empty values of each column across the header rows are joined with
//   a space.
//
//   Example:
//   Row 1: "מועד חוקי/", "", "מספר"
//   Row 2: "תאריך ארכה", "שם", "תיק"
//   Result: "מועד חוקי/ תאריך ארכה", "שם", "מספר תיק"
func extractHeaders(allRows [][]string, settings config.CSVSettings) ([]string, error) {
	headerRows := settings.HeaderRows
	if headerRows <= 0 {
		headerRows = 1
	}
	if len(allRows) < headerRows {
		return nil, fmt.Errorf("file has fewer rows than header_rows setting")
	}

	if headerRows == 1 {
		return cleanHeaders(allRows[0]), nil
	}

	maxCols := 0
	for i := 0; i < headerRows; i++ {
		if len(allRows[i]) > maxCols {
			maxCols = len(allRows[i])
		}
	}

	headers := make([]string, maxCols)
	for col := 0; col < maxCols; col++ {
		var parts []string
		for row := 0; row < headerRows; row++ {
			if col < len(allRows[row]) {
				if value := strings.TrimSpace(allRows[row][col]); value != "" {
					parts = append(parts, value)
				}
			}
		}
		headers[col] = strings.Join(parts, " ")
	}
	return cleanHeaders(headers), nil
}

// cleanHeaders trims header values. Empty headers stay empty so that value
// sniffing can still claim those columns.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		cleaned[i] = strings.TrimSpace(header)
	}
	return cleaned
}

// extractDataRows copies the non-empty data rows into the table.
func extractDataRows(allRows [][]string, table *types.Table, settings config.CSVSettings) {
	// DataStartRow is 1-indexed.
	startIndex := settings.DataStartRow - 1
	if startIndex < 0 {
		startIndex = settings.HeaderRows
		if startIndex <= 0 {
			startIndex = 1
		}
	}

	for rowIndex := startIndex; rowIndex < len(allRows); rowIndex++ {
		row := allRows[rowIndex]
		if isRowEmpty(row) {
			continue
		}
		table.Rows = append(table.Rows, row)
		table.RowNumbers = append(table.RowNumbers, rowIndex+1)
	}
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
