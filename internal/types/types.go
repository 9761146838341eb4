// =============================================================================
// filingsync - Shared Types
// =============================================================================
//
// This package contains the typed records shared by the parsers, the
// reconciliation engine, the preflight validator and the output writer.
// Parsing is the only place where untyped spreadsheet cells are turned into
// these records; nothing downstream reads raw cells.
//
// Types defined here are used by:
//   - sourcea / sourceb  (parsers)
//   - reconcile          (engine)
//   - validation         (preflight)
//   - xlsxwriter         (output)
//   - store              (persistence)
//
// =============================================================================

package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// REPORT CATEGORY
// =============================================================================

// Category identifies a report category. Each category has exactly one
// schema definition in the registry.
type Category string

const (
	// CategoryFinancial covers companies and trusts (financial statements).
	CategoryFinancial Category = "financial"

	// CategoryAnnual covers individuals (annual returns).
	CategoryAnnual Category = "annual"
)

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// =============================================================================
// DATE
// =============================================================================

// DateLayout is the display format for every date the system emits.
const DateLayout = "02/01/2006"

// Date is an optional calendar date. The zero value is an absent date.
type Date struct {
	Time  time.Time
	Valid bool
}

// NewDate returns a present date truncated to the calendar day.
func NewDate(t time.Time) Date {
	return Date{
		Time:  time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
		Valid: true,
	}
}

// String renders the date as dd/MM/yyyy, or "" when absent.
func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// Equal reports whether two dates fall on the same day. Two absent dates
// are equal.
func (d Date) Equal(other Date) bool {
	if d.Valid != other.Valid {
		return false
	}
	if !d.Valid {
		return true
	}
	y1, m1, d1 := d.Time.Date()
	y2, m2, d2 := other.Time.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Later reports whether d should be preferred over other when picking the
// latest date. Absent dates sort last.
func (d Date) Later(other Date) bool {
	if !d.Valid {
		return false
	}
	if !other.Valid {
		return true
	}
	return d.Time.After(other.Time)
}

// MarshalJSON renders the date as a dd/MM/yyyy string or null.
func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// =============================================================================
// VALUE
// =============================================================================

// Value is one output cell. Date is set when the cell holds a parsed date;
// Text keeps the original cell text either way.
type Value struct {
	Text string
	Date Date
}

// TextValue returns a plain text value.
func TextValue(s string) Value {
	return Value{Text: s}
}

// DateValue returns a value holding a date.
func DateValue(d Date) Value {
	return Value{Text: d.String(), Date: d}
}

// String renders dates as dd/MM/yyyy and everything else verbatim.
func (v Value) String() string {
	if v.Date.Valid {
		return v.Date.String()
	}
	return v.Text
}

// Differs compares two values the way a reviewer would: dates by day,
// everything else by trimmed text.
func (v Value) Differs(other Value) bool {
	if v.Date.Valid && other.Date.Valid {
		return !v.Date.Equal(other.Date)
	}
	return strings.TrimSpace(v.String()) != strings.TrimSpace(other.String())
}

// =============================================================================
// TABLE
// =============================================================================

// Table is a fully materialized sheet: one header row plus data rows. It is
// the hand-off format between the file readers and the parsers.
type Table struct {
	// Source labels the table in logs and errors (usually the file path).
	Source string

	// Headers is the header row as read, untouched.
	Headers []string

	// Rows holds the data rows. Rows may be shorter than Headers.
	Rows [][]string

	// RowNumbers holds the 1-based sheet line of each data row. When nil,
	// rows are assumed to start on line 2.
	RowNumbers []int
}

// Cell returns the trimmed cell at (row, col), or "" when out of range.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

// RowNumber returns the sheet line for a data row index.
func (t *Table) RowNumber(row int) int {
	if row >= 0 && row < len(t.RowNumbers) {
		return t.RowNumbers[row]
	}
	return row + 2
}

// Column returns every value of one column, in row order.
func (t *Table) Column(col int) []string {
	values := make([]string, len(t.Rows))
	for i := range t.Rows {
		values[i] = t.Cell(i, col)
	}
	return values
}

// NonEmpty returns up to limit non-empty values of one column, in row order.
func (t *Table) NonEmpty(col, limit int) []string {
	var values []string
	for i := range t.Rows {
		v := t.Cell(i, col)
		if v == "" {
			continue
		}
		values = append(values, v)
		if len(values) == limit {
			break
		}
	}
	return values
}

// =============================================================================
// SOURCE RECORDS
// =============================================================================

// SourceARecord is one filing-authority row after parsing.
type SourceARecord struct {
	// MatchKey is digits only, leading zeros preserved. Never empty.
	MatchKey string

	Name           string
	ExtensionDate  Date
	SubmissionDate Date

	// Aux holds the remaining detected fields by canonical name.
	Aux map[string]string

	// RowNumber is the sheet line the record came from.
	RowNumber int
}

// SourceBRecord is one platform-export row after parsing.
type SourceBRecord struct {
	// ID is the platform's internal record id, float artifacts removed.
	ID string

	// MatchKey is digits only, leading zeros preserved.
	MatchKey string

	// AliasKey is MatchKey without leading zeros, or "" when identical.
	AliasKey string

	// RawKey is the match-key cell as exported.
	RawKey string

	Status         string
	ExtensionDate  Date
	SubmissionDate Date
	TaxYear        int

	// Fields holds every known export column by header.
	Fields map[string]string

	// Dates holds parsed values for the date columns by header.
	Dates map[string]Date

	RowNumber int
}

// Value returns the typed value of one export column.
func (r *SourceBRecord) Value(header string) Value {
	v := Value{Text: r.Fields[header]}
	if d, ok := r.Dates[header]; ok && d.Valid {
		v.Date = d
	}
	return v
}

// =============================================================================
// CHANGES AND EXCEPTIONS
// =============================================================================

// ChangeCategory classifies a FieldChange.
type ChangeCategory string

const (
	ChangeStatusCompletion ChangeCategory = "status_completion"
	ChangeExtensionUpdate  ChangeCategory = "extension_update"
	ChangeSubmissionUpdate ChangeCategory = "submission_update"
)

// FieldChange records one output field whose new value differs from the
// existing source B value.
type FieldChange struct {
	RecordID string         `json:"record_id"`
	Name     string         `json:"name"`
	Field    string         `json:"field"`
	OldValue string         `json:"old_value"`
	NewValue string         `json:"new_value"`
	Category ChangeCategory `json:"category"`
}

// ExceptionKind is the kind of a flagged record.
type ExceptionKind string

const (
	ExceptionNoCounterpart ExceptionKind = "no_counterpart_match"
	ExceptionDuplicateKey  ExceptionKind = "duplicate_key"
	ExceptionStatusAnomaly ExceptionKind = "status_anomaly"
)

// Exception is a record that needs a human decision.
type Exception struct {
	Kind ExceptionKind `json:"kind"`

	// SourceAKey is the match key of the source A record.
	SourceAKey string `json:"source_a_key"`

	// SourceBID and SourceBKey identify the counterpart, when there is one.
	SourceBID  string `json:"source_b_id,omitempty"`
	SourceBKey string `json:"source_b_key,omitempty"`

	Name   string `json:"name"`
	Status string `json:"status,omitempty"`

	// Detail is a one-line description for the review queue.
	Detail string `json:"detail"`

	// Fields carries the originating record's auxiliary values.
	Fields map[string]string `json:"fields,omitempty"`

	// RowNumber is the source A sheet line, when known.
	RowNumber int `json:"row_number,omitempty"`

	// Retained marks the duplicate that survived deduplication.
	Retained bool `json:"retained,omitempty"`
}

// AnomalyDetail is attached to every status anomaly for operator review.
type AnomalyDetail struct {
	SourceAKey string `json:"source_a_key"`
	SourceBID  string `json:"source_b_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
}

// =============================================================================
// RECONCILIATION RESULT
// =============================================================================

// Counts are the aggregate tallies of one run.
type Counts struct {
	TotalA          int `json:"total_a"`
	TotalB          int `json:"total_b"`
	Matched         int `json:"matched"`
	Unmatched       int `json:"unmatched"`
	Changed         int `json:"changed"`
	Unchanged       int `json:"unchanged"`
	StatusCompleted int `json:"status_completed"`
	StatusPreserved int `json:"status_preserved"`
	StatusAnomaly   int `json:"status_anomaly"`
}

// OutputRow is one matched record in output column order.
type OutputRow struct {
	RecordID string
	MatchKey string
	Values   []Value
}

// Result is the output of one reconciliation run. It is built once by the
// engine and treated as read-only afterwards.
type Result struct {
	Category   Category
	TaxYear    int
	Counts     Counts
	Columns    []string
	Rows       []OutputRow
	Changes    []FieldChange
	Exceptions []Exception
	Anomalies  []AnomalyDetail
	Warnings   []string
}

// ExceptionsOf returns the exceptions of one kind, in order.
func (r *Result) ExceptionsOf(kind ExceptionKind) []Exception {
	var out []Exception
	for _, e := range r.Exceptions {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// NeedsReview reports whether the run left anything for an operator.
func (r *Result) NeedsReview() bool {
	return r.Counts.Unmatched > 0 || r.Counts.StatusAnomaly > 0
}

// Summary is a one-line description used in logs and CLI output.
func (r *Result) Summary() string {
	c := r.Counts
	return fmt.Sprintf("%s %d: %d matched, %d unmatched, %d changes, %d anomalies",
		r.Category, r.TaxYear, c.Matched, c.Unmatched, c.Changed, c.StatusAnomaly)
}
