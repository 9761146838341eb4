// =============================================================================
// filingsync - Schema Registry
// =============================================================================
//
// Static, per-category definitions of the two source formats and of the
// import file. This is the single contract between the engine and the
// exports: adding a report category means adding one Definition here, not
// touching the parsers or the engine.
//
// CATEGORIES:
//   financial : companies and trusts, keyed by company number
//   annual    : individuals, keyed by id / company number
//
// SOURCE A:
//   The filing-authority paste has no stable column order. Its fields are
//   resolved by header variants and, for some fields, by value patterns.
//
// SOURCE B:
//   The platform export has fixed headers per category. Output columns are
//   either copied from source B or derived by the engine.
//
// =============================================================================

package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ginjaninja78/filingsync/internal/types"
)

// =============================================================================
// STATUS SENTINEL
// =============================================================================

const (
	// StatusCompletedCode is the platform code for "filing completed".
	StatusCompletedCode = "1125886300"

	// StatusCompletedLabel is the full "code: label" rendering of the code.
	StatusCompletedLabel = "1125886300: 9) תהליך הושלם"
)

// IsCompleted reports whether a status value denotes completion. Exports
// carry either the bare code or the "code: label" form.
func IsCompleted(status string) bool {
	return strings.Contains(status, StatusCompletedCode)
}

// =============================================================================
// SOURCE A FIELDS
// =============================================================================

// Canonical source A field names.
const (
	FieldTransmissionCode = "transmission_code"
	FieldExtensionDate    = "extension_date"
	FieldSubmissionDate   = "submission_date"
	FieldDepartment       = "department"
	FieldAssessmentYear   = "assessment_year"
	FieldFileType         = "file_type"
	FieldFilerClass       = "filer_class"
	FieldAssessingOffice  = "assessing_office"
	FieldName             = "name"
	FieldCaseNumber       = "case_number"
)

// Field is a canonical column: a logical name decoupled from the literal
// header text of any particular export.
type Field struct {
	// Name is the canonical field name.
	Name string

	// Headers lists the accepted header variants, most specific first.
	Headers []string

	// Required fields abort the parse when they cannot be resolved.
	Required bool

	// Pattern, when set, allows the field to be found by sniffing values.
	Pattern *regexp.Regexp
}

// SourceA describes the filing-authority paste.
type SourceA struct {
	// Fields are in declared detection order.
	Fields []Field

	// MatchKey is the canonical field used for matching.
	MatchKey string
}

// Field returns a field by canonical name.
func (s *SourceA) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields returns the canonical names of required fields.
func (s *SourceA) RequiredFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

var (
	caseNumberPattern = regexp.MustCompile(`^\d{6,9}$`)
	hebrewNamePattern = regexp.MustCompile(`[\x{0590}-\x{05FF}]{2,}\s+[\x{0590}-\x{05FF}]{2,}`)
)

// sourceA is shared by every category.
var sourceA = SourceA{
	MatchKey: FieldCaseNumber,
	Fields: []Field{
		{Name: FieldTransmissionCode, Headers: []string{"קוד שידור"}},
		{Name: FieldExtensionDate, Headers: []string{"תאריך ארכה", "מועד חוקי/ תאריך ארכה", "מועד חוקי"}, Required: true},
		{Name: FieldSubmissionDate, Headers: []string{"תאריך הגשה"}},
		{Name: FieldDepartment, Headers: []string{"מח"}},
		{Name: FieldAssessmentYear, Headers: []string{"ס'ש", "ס״ש", "שנת שומה"}},
		{Name: FieldFileType, Headers: []string{"סוג תיק", "סת"}},
		{Name: FieldFilerClass, Headers: []string{"ח"}},
		{Name: FieldAssessingOffice, Headers: []string{"פקיד שומה", "פ.ש"}},
		{Name: FieldName, Headers: []string{"שם משפחה ופרטי", "שם"}, Pattern: hebrewNamePattern},
		{Name: FieldCaseNumber, Headers: []string{"מספר תיק"}, Required: true, Pattern: caseNumberPattern},
	},
}

// =============================================================================
// SOURCE B AND OUTPUT
// =============================================================================

// Source B headers common to both categories.
const (
	HeaderID           = "מזהה"
	HeaderTaxYear      = "שנת מס"
	HeaderCustomerCard = "כרטיס לקוח"
	HeaderStatus       = "סטטוס"
	HeaderNotes        = "הערות"
	HeaderWorkStart    = "תחילת עבודה"
	HeaderPreworkEnd   = "סיום עבודה מקדימה"
	HeaderSubmission   = "הגשה"
	HeaderAuthorityExt = `אורכה מ"ה`
	HeaderOfficeExt    = "אורכה משרד"
)

// Derivation says where an output column's value comes from.
type Derivation int

const (
	// CopyFromSourceB columns are source-B owned: copied verbatim, never
	// flagged as changed.
	CopyFromSourceB Derivation = iota

	// DerivedStatus is recomputed by the status rule.
	DerivedStatus

	// DerivedExtension takes source A's extension date when present.
	DerivedExtension

	// DerivedSubmission takes source A's submission date when present.
	DerivedSubmission
)

// String implements fmt.Stringer.
func (d Derivation) String() string {
	switch d {
	case DerivedStatus:
		return "derived_status"
	case DerivedExtension:
		return "derived_extension"
	case DerivedSubmission:
		return "derived_submission"
	default:
		return "source_b"
	}
}

// OutputColumn is one column of the import file.
type OutputColumn struct {
	Header string
	Source string
	Derive Derivation
}

func copyCol(header string) OutputColumn {
	return OutputColumn{Header: header, Source: header, Derive: CopyFromSourceB}
}

func derivedCol(header string, d Derivation) OutputColumn {
	return OutputColumn{Header: header, Source: header, Derive: d}
}

// Definition is the full schema of one report category. Definitions are
// read-only; use WithMinExpectedRecords to derive an adjusted copy.
type Definition struct {
	Category      types.Category
	DisplayName   string
	DisplayNameEN string

	SourceA SourceA

	// MatchKeyHeader is the source B column holding the match key.
	MatchKeyHeader string

	// Columns lists every source B export column in export order.
	Columns []string

	// RequiredHeaders must all be present for the export to pass preflight.
	RequiredHeaders []string

	// DateHeaders are parsed as dates when reading source B.
	DateHeaders []string

	// Output lists the import file columns in order.
	Output []OutputColumn

	// MinExpectedRecords below which an export is suspected to be filtered.
	MinExpectedRecords int
}

// IdentityHeaders are the source B columns the parser cannot work without.
func (d *Definition) IdentityHeaders() []string {
	return []string{d.MatchKeyHeader, HeaderID, HeaderTaxYear}
}

// OutputHeaders returns the import file header row.
func (d *Definition) OutputHeaders() []string {
	headers := make([]string, len(d.Output))
	for i, c := range d.Output {
		headers[i] = c.Header
	}
	return headers
}

// IsDateHeader reports whether a source B column holds dates.
func (d *Definition) IsDateHeader(header string) bool {
	for _, h := range d.DateHeaders {
		if h == header {
			return true
		}
	}
	return false
}

// WithMinExpectedRecords returns a copy with a different threshold. A
// non-positive value keeps the registry default.
func (d *Definition) WithMinExpectedRecords(n int) *Definition {
	if n <= 0 || n == d.MinExpectedRecords {
		return d
	}
	c := *d
	c.MinExpectedRecords = n
	return &c
}

var sourceBDateHeaders = []string{
	HeaderWorkStart,
	HeaderPreworkEnd,
	HeaderSubmission,
	HeaderAuthorityExt,
	HeaderOfficeExt,
}

// =============================================================================
// REGISTRY
// =============================================================================

var financial = &Definition{
	Category:       types.CategoryFinancial,
	DisplayName:    "דוחות כספיים",
	DisplayNameEN:  "Financial Reports",
	SourceA:        sourceA,
	MatchKeyHeader: "ח.פ",
	Columns: []string{
		HeaderID, HeaderTaxYear, HeaderCustomerCard, "מספר לקוח", "ח.פ",
		"מנהל תיק", "מנהל/ת חשבונות", "עובד/ת ביקורת", "עובד ע. מקדימה", "עובד מטפל",
		HeaderStatus, HeaderNotes, HeaderWorkStart, HeaderPreworkEnd, HeaderSubmission,
		"חבות מס", HeaderAuthorityExt, HeaderOfficeExt,
	},
	RequiredHeaders: []string{HeaderID, HeaderTaxYear, HeaderCustomerCard, "ח.פ", HeaderStatus},
	DateHeaders:     sourceBDateHeaders,
	Output: []OutputColumn{
		copyCol(HeaderID),
		copyCol(HeaderTaxYear),
		copyCol(HeaderCustomerCard),
		copyCol("עובד ע. מקדימה"),
		copyCol("עובד מטפל"),
		derivedCol(HeaderStatus, DerivedStatus),
		copyCol(HeaderNotes),
		copyCol("חבות מס"),
		copyCol(HeaderWorkStart),
		copyCol(HeaderAuthorityExt),
		derivedCol(HeaderOfficeExt, DerivedExtension),
		copyCol(HeaderPreworkEnd),
		derivedCol(HeaderSubmission, DerivedSubmission),
	},
	MinExpectedRecords: 50,
}

var annual = &Definition{
	Category:       types.CategoryAnnual,
	DisplayName:    "דוחות שנתיים",
	DisplayNameEN:  "Annual Reports",
	SourceA:        sourceA,
	MatchKeyHeader: `ת"ז/ח"פ`,
	Columns: []string{
		HeaderID, HeaderTaxYear, HeaderCustomerCard, "סוג לקוח", "מספר לקוח", `ת"ז/ח"פ`,
		"מנהל תיק", "מנהל/ת חשבונות", "עובד/ת ביקורת", "עובד ע.מקדימה", "עובד מטפל",
		HeaderStatus, HeaderWorkStart, HeaderPreworkEnd, `דרישה לדוח מ"ה`, HeaderSubmission,
		HeaderNotes, "חבות מס", "חבות ביטוח לאומי", HeaderAuthorityExt, HeaderOfficeExt,
	},
	RequiredHeaders: []string{HeaderID, HeaderTaxYear, HeaderCustomerCard, `ת"ז/ח"פ`, HeaderStatus},
	DateHeaders:     sourceBDateHeaders,
	Output: []OutputColumn{
		copyCol(HeaderID),
		copyCol(HeaderTaxYear),
		copyCol(HeaderCustomerCard),
		copyCol("עובד ע.מקדימה"),
		copyCol("עובד מטפל"),
		derivedCol(HeaderStatus, DerivedStatus),
		copyCol(HeaderNotes),
		copyCol("חבות מס"),
		copyCol("חבות ביטוח לאומי"),
		copyCol(HeaderWorkStart),
		copyCol(HeaderAuthorityExt),
		derivedCol(HeaderOfficeExt, DerivedExtension),
		copyCol(HeaderPreworkEnd),
		derivedCol(HeaderSubmission, DerivedSubmission),
	},
	MinExpectedRecords: 100,
}

var registry = map[types.Category]*Definition{
	types.CategoryFinancial: financial,
	types.CategoryAnnual:    annual,
}

// Lookup returns the definition of a category.
func Lookup(category types.Category) (*Definition, error) {
	def, ok := registry[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid: %s)", types.ErrUnknownCategory, category, strings.Join(categoryNames(), ", "))
	}
	return def, nil
}

// ParseCategory validates a category name given on the command line or
// in a request.
func ParseCategory(name string) (types.Category, error) {
	c := types.Category(strings.ToLower(strings.TrimSpace(name)))
	if _, err := Lookup(c); err != nil {
		return "", err
	}
	return c, nil
}

// Categories returns every registered category, sorted.
func Categories() []types.Category {
	names := categoryNames()
	out := make([]types.Category, len(names))
	for i, n := range names {
		out[i] = types.Category(n)
	}
	return out
}

func categoryNames() []string {
	names := make([]string, 0, len(registry))
	for c := range registry {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return names
}
