// =============================================================================
// filingsync - Preflight Validator
// =============================================================================
//
// Fast sanity checks over the raw input tables, run before the (possibly
// slow) full reconciliation. The validator never mutates data and never
// trusts the parsers' column maps: every check re-derives what it needs
// from the schema, which catches drift between the parsers and the schema.
//
// CHECKS:
//   1. Both inputs have data rows
//   2. Source A required fields are recognizable by header
//   3. Source B required headers and match key are present
//   4. The requested tax year has records, and enough of them
//   5. Date columns are not in an unexpected format
//   6. The expected match rate, estimated from the key sets directly
//
// SEVERITY:
//   - error   : blocks execution
//   - warning : proceed with caution
//   - info    : telemetry for the operator
//
// =============================================================================

package validation

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ginjaninja78/filingsync/internal/normalize"
	"github.com/ginjaninja78/filingsync/internal/schema"
	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ISSUES
// =============================================================================

// Severity of a preflight issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is a single preflight finding.
type Issue struct {
	Severity Severity `json:"severity"`

	// Check names the check that produced the issue.
	Check string `json:"check"`

	Message string `json:"message"`
}

// Error implements the error interface.
func (i *Issue) Error() string {
	return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(i.Severity)), i.Check, i.Message)
}

// Check names.
const (
	CheckSourceA   = "source_a"
	CheckSourceB   = "source_b"
	CheckTaxYear   = "tax_year"
	CheckDates     = "date_format"
	CheckMatchRate = "match_rate"
)

// =============================================================================
// REPORT
// =============================================================================

// Report is the result of a preflight run.
type Report struct {
	// IsValid is true if there are no errors.
	IsValid bool `json:"is_valid"`

	Issues []*Issue `json:"issues"`

	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`

	SourceARows     int `json:"source_a_rows"`
	SourceBRows     int `json:"source_b_rows"`
	SourceBYearRows int `json:"source_b_year_rows"`

	SourceAKeys     int `json:"source_a_keys"`
	SourceBKeys     int `json:"source_b_keys"`
	ExpectedMatches int `json:"expected_matches"`

	// MatchRate is the expected match percentage, one decimal place.
	MatchRate decimal.Decimal `json:"match_rate"`

	// AvailableYears lists the tax years found in source B.
	AvailableYears []int `json:"available_years,omitempty"`
}

func newReport() *Report {
	return &Report{IsValid: true}
}

func (r *Report) add(sev Severity, check, format string, args ...any) {
	r.Issues = append(r.Issues, &Issue{Severity: sev, Check: check, Message: fmt.Sprintf(format, args...)})
	switch sev {
	case SeverityError:
		r.ErrorCount++
		r.IsValid = false
	case SeverityWarning:
		r.WarningCount++
	}
}

// Messages returns the messages of one severity, in order.
func (r *Report) Messages(sev Severity) []string {
	var out []string
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i.Message)
		}
	}
	return out
}

// Errors returns the blocking issues.
func (r *Report) Errors() []string { return r.Messages(SeverityError) }

// Warnings returns the non-blocking issues.
func (r *Report) Warnings() []string { return r.Messages(SeverityWarning) }

// =============================================================================
// VALIDATOR
// =============================================================================

const (
	// LowMatchRate is the percentage below which a warning is raised.
	LowMatchRate = 50

	// dateSample is the number of values spot-checked per date column.
	dateSample = 5
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// Validator runs preflight checks for one category.
type Validator struct {
	def *schema.Definition
}

// NewValidator creates a new Validator instance.
func NewValidator(def *schema.Definition) *Validator {
	return &Validator{def: def}
}

// Validate runs every check over the two raw tables.
//
// PARAMETERS:
//   - a: The raw source A table.
//   - b: The raw source B table, before year filtering.
//   - taxYear: The requested tax year.
//
// RETURNS:
//   - The combined report. The match-rate estimate only runs when no
//     error has been found so far.
func (v *Validator) Validate(a, b *types.Table, taxYear int) *Report {
	report := newReport()

	v.checkSourceA(a, report)
	v.checkSourceB(b, taxYear, report)

	if report.ErrorCount == 0 {
		v.checkMatchRate(a, b, report)
	}
	return report
}

// checkSourceA re-derives the required source A columns by header.
func (v *Validator) checkSourceA(a *types.Table, report *Report) {
	if a == nil || len(a.Rows) == 0 {
		report.add(SeverityError, CheckSourceA, "source A file is empty")
		return
	}
	report.SourceARows = len(a.Rows)
	report.add(SeverityInfo, CheckSourceA, "found %d rows in source A", len(a.Rows))

	var found []string
	for _, f := range v.def.SourceA.Fields {
		if _, ok := findSourceAColumn(a.Headers, f); ok {
			found = append(found, f.Name)
		} else if f.Required {
			report.add(SeverityError, CheckSourceA, "required column not found in source A: %s", f.Name)
		}
	}
	if report.ErrorCount == 0 {
		report.add(SeverityInfo, CheckSourceA, "recognized columns: %s", strings.Join(found, ", "))
	}
}

func findSourceAColumn(headers []string, f schema.Field) (int, bool) {
	for i, h := range headers {
		h = normalize.Header(h)
		if h == "" {
			continue
		}
		for _, variant := range f.Headers {
			variant = normalize.Header(variant)
			if h == variant || strings.Contains(h, variant) {
				return i, true
			}
		}
	}
	return 0, false
}

// checkSourceB verifies headers, year coverage and date formats.
func (v *Validator) checkSourceB(b *types.Table, taxYear int, report *Report) {
	if b == nil || len(b.Rows) == 0 {
		report.add(SeverityError, CheckSourceB, "source B file is empty")
		return
	}
	report.SourceBRows = len(b.Rows)

	headers := make([]string, len(b.Headers))
	index := make(map[string]int, len(b.Headers))
	for i, h := range b.Headers {
		headers[i] = normalize.Header(h)
		if _, ok := index[headers[i]]; !ok {
			index[headers[i]] = i
		}
	}

	var missing []string
	for _, required := range v.def.RequiredHeaders {
		if !hasHeader(headers, normalize.Header(required)) {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		report.add(SeverityError, CheckSourceB, "missing columns in source B: %s", strings.Join(missing, ", "))
	}
	if _, ok := index[normalize.Header(v.def.MatchKeyHeader)]; !ok {
		report.add(SeverityError, CheckSourceB, "match key column missing: %s", v.def.MatchKeyHeader)
	}

	if yearCol, ok := index[normalize.Header(schema.HeaderTaxYear)]; ok {
		v.checkYear(b, yearCol, taxYear, report)
	}

	for _, h := range v.def.DateHeaders {
		col, ok := index[normalize.Header(h)]
		if !ok {
			continue
		}
		for _, val := range b.NonEmpty(col, dateSample) {
			if isoDate.MatchString(val) {
				report.add(SeverityWarning, CheckDates, "unexpected date format in column %s: expected dd/MM/yyyy", h)
				break
			}
		}
	}

	if report.ErrorCount == 0 && report.WarningCount == 0 {
		report.add(SeverityInfo, CheckSourceB, "source B export is valid")
	}
}

// hasHeader accepts an exact header or a partial match in either direction.
func hasHeader(headers []string, required string) bool {
	for _, h := range headers {
		if h == required {
			return true
		}
	}
	for _, h := range headers {
		if h != "" && (strings.Contains(h, required) || strings.Contains(required, h)) {
			return true
		}
	}
	return false
}

func (v *Validator) checkYear(b *types.Table, yearCol, taxYear int, report *Report) {
	counts := make(map[int]int)
	for i := range b.Rows {
		if y, ok := normalize.ExtractYear(b.Cell(i, yearCol)); ok {
			counts[y]++
		}
	}
	for y := range counts {
		report.AvailableYears = append(report.AvailableYears, y)
	}
	sort.Ints(report.AvailableYears)

	report.SourceBYearRows = counts[taxYear]
	if report.SourceBYearRows == 0 {
		report.add(SeverityError, CheckTaxYear, "no records found for tax year %d", taxYear)
		if len(report.AvailableYears) > 0 {
			report.add(SeverityInfo, CheckTaxYear, "years available in source B: %v", report.AvailableYears)
		}
		return
	}
	report.add(SeverityInfo, CheckTaxYear, "found %d records for tax year %d", report.SourceBYearRows, taxYear)

	if minimum := v.def.MinExpectedRecords; report.SourceBYearRows < minimum {
		report.add(SeverityWarning, CheckTaxYear,
			"only %d records found, the export may be filtered (expected at least %d)",
			report.SourceBYearRows, minimum)
	}
}

// checkMatchRate intersects the key sets of both tables without running
// the parsers or the engine.
func (v *Validator) checkMatchRate(a, b *types.Table, report *Report) {
	aKeys := make(map[string]bool)
	if f, ok := v.def.SourceA.Field(schema.FieldCaseNumber); ok {
		if col, ok := findSourceAColumn(a.Headers, f); ok {
			for _, val := range a.Column(col) {
				if k := normalize.MatchKey(val); k != "" {
					aKeys[k] = true
				}
			}
		}
	}

	bKeys := make(map[string]bool)
	bStripped := make(map[string]bool)
	for i, h := range b.Headers {
		if normalize.Header(h) != normalize.Header(v.def.MatchKeyHeader) {
			continue
		}
		for _, val := range b.Column(i) {
			if k := normalize.MatchKey(val); k != "" {
				bKeys[k] = true
				bStripped[normalize.StripLeadingZeros(k)] = true
			}
		}
		break
	}

	if len(aKeys) == 0 {
		report.add(SeverityError, CheckMatchRate, "no match keys found in source A")
		return
	}
	if len(bKeys) == 0 {
		report.add(SeverityError, CheckMatchRate, "no match keys found in source B")
		return
	}

	matches := 0
	for k := range aKeys {
		if bKeys[k] || bStripped[normalize.StripLeadingZeros(k)] {
			matches++
		}
	}

	report.SourceAKeys = len(aKeys)
	report.SourceBKeys = len(bKeys)
	report.ExpectedMatches = matches
	report.MatchRate = decimal.NewFromInt(int64(matches)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(len(aKeys)))).
		Round(1)

	report.add(SeverityInfo, CheckMatchRate, "source A keys: %d, source B keys: %d", len(aKeys), len(bKeys))
	report.add(SeverityInfo, CheckMatchRate, "expected matches: %d (%s%%)", matches, report.MatchRate.StringFixed(1))

	if report.MatchRate.LessThan(decimal.NewFromInt(LowMatchRate)) {
		report.add(SeverityWarning, CheckMatchRate,
			"low expected match rate (%s%%); check that both files are for the same report category and tax year",
			report.MatchRate.StringFixed(1))
	}
	if unmatched := len(aKeys) - matches; unmatched > 0 {
		report.add(SeverityInfo, CheckMatchRate, "expected unmatched records: %d", unmatched)
	}
}

// =============================================================================
// REPORT FORMATTING
// =============================================================================

// FormatIssues formats a report for display or logging.
//
// PARAMETERS:
//   - report: The preflight report to format.
//
// RETURNS:
//   - A formatted string listing every issue.
func FormatIssues(report *Report) string {
	if len(report.Issues) == 0 {
		return "No preflight issues."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Preflight completed with %d error(s) and %d warning(s):\n\n",
		report.ErrorCount, report.WarningCount))

	for i, issue := range report.Issues {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, issue.Error()))
	}
	return builder.String()
}

// WriteReport writes the formatted report to a file.
func WriteReport(report *Report, filePath string) error {
	if err := os.WriteFile(filePath, []byte(FormatIssues(report)), 0644); err != nil {
		return fmt.Errorf("failed to write preflight report: %w", err)
	}
	return nil
}
