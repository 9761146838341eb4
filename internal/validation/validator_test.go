package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/filingsync/internal/schema"
	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T, minExpected int) *Validator {
	t.Helper()
	def, err := schema.Lookup(types.CategoryFinancial)
	require.NoError(t, err)
	return NewValidator(def.WithMinExpectedRecords(minExpected))
}

func sourceA(keys ...string) *types.Table {
	tbl := &types.Table{Headers: []string{"מועד חוקי/ תאריך ארכה", "שם", "מספר תיק"}}
	for _, k := range keys {
		tbl.Rows = append(tbl.Rows, []string{"31/05/2025", "כהן משה", k})
	}
	return tbl
}

func sourceB(year int, keys ...string) *types.Table {
	tbl := &types.Table{Headers: []string{"מזהה", "שנת מס", "כרטיס לקוח", "ח.פ", "סטטוס", "הגשה"}}
	for i, k := range keys {
		tbl.Rows = append(tbl.Rows, []string{fmt.Sprint(i), fmt.Sprintf("1125575564: %d", year), "", k, "", "15/03/2025"})
	}
	return tbl
}

func TestValidateHappyPath(t *testing.T) {
	v := newTestValidator(t, 2)
	report := v.Validate(sourceA("123456789", "0012345", "987654321"), sourceB(2024, "123456789", "12345", "555"), 2024)

	assert.True(t, report.IsValid)
	assert.Empty(t, report.Warnings())
	assert.Equal(t, 3, report.SourceARows)
	assert.Equal(t, 3, report.SourceBYearRows)
	assert.Equal(t, 2, report.ExpectedMatches)
	assert.Equal(t, "66.7", report.MatchRate.StringFixed(1))
	assert.Equal(t, []int{2024}, report.AvailableYears)
}

func TestValidateEmptyInputs(t *testing.T) {
	v := newTestValidator(t, 0)
	report := v.Validate(&types.Table{}, nil, 2024)

	assert.False(t, report.IsValid)
	assert.Equal(t, 2, report.ErrorCount)
	assert.True(t, report.MatchRate.IsZero(), "match rate is skipped after errors")
}

func TestValidateMissingColumns(t *testing.T) {
	v := newTestValidator(t, 0)
	a := &types.Table{Headers: []string{"שם"}, Rows: [][]string{{"x"}}}
	b := &types.Table{Headers: []string{"מזהה", "שנת מס"}, Rows: [][]string{{"1", "2024"}}}

	report := v.Validate(a, b, 2024)

	assert.False(t, report.IsValid)
	errs := report.Errors()
	assert.Contains(t, errs, "required column not found in source A: extension_date")
	assert.Contains(t, errs, "required column not found in source A: case_number")
	assert.Contains(t, errs, "match key column missing: ח.פ")
}

func TestValidateYearCoverage(t *testing.T) {
	v := newTestValidator(t, 0)
	report := v.Validate(sourceA("1"), sourceB(2023, "1"), 2024)

	assert.False(t, report.IsValid)
	assert.Contains(t, report.Errors(), "no records found for tax year 2024")
	assert.Equal(t, []int{2023}, report.AvailableYears)
}

func TestValidateFilteredExportWarning(t *testing.T) {
	v := newTestValidator(t, 50)
	report := v.Validate(sourceA("1", "2"), sourceB(2024, "1", "2"), 2024)

	assert.True(t, report.IsValid)
	require.Len(t, report.Warnings(), 1)
	assert.Contains(t, report.Warnings()[0], "expected at least 50")
}

func TestValidateLowMatchRate(t *testing.T) {
	v := newTestValidator(t, 1)
	report := v.Validate(sourceA("1", "2", "3"), sourceB(2024, "1", "9"), 2024)

	assert.True(t, report.IsValid)
	assert.Equal(t, "33.3", report.MatchRate.StringFixed(1))
	require.Len(t, report.Warnings(), 1)
	assert.Contains(t, report.Warnings()[0], "low expected match rate")
}

func TestValidateDateFormat(t *testing.T) {
	v := newTestValidator(t, 1)
	b := sourceB(2024, "1")
	b.Rows[0][5] = "2025-03-15"

	report := v.Validate(sourceA("1"), b, 2024)
	assert.True(t, report.IsValid)
	assert.Contains(t, report.Warnings(), "unexpected date format in column הגשה: expected dd/MM/yyyy")
}

func TestFormatAndWriteReport(t *testing.T) {
	report := newReport()
	assert.Equal(t, "No preflight issues.", FormatIssues(report))

	report.add(SeverityError, CheckSourceA, "source A file is empty")
	out := FormatIssues(report)
	assert.Contains(t, out, "1 error(s)")
	assert.Contains(t, out, "[ERROR] source_a: source A file is empty")

	path := filepath.Join(t.TempDir(), "preflight.txt")
	require.NoError(t, WriteReport(report, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out, string(data))
}
