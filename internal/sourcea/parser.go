// =============================================================================
// filingsync - Source A Parser
// =============================================================================
//
// Parses the filing-authority paste. The paste comes from a web table copied
// into a spreadsheet, so columns shift whenever an optional column is empty
// and headers vary between exports. Parsing therefore resolves every
// canonical field to a column index before reading any row.
//
// COLUMN DETECTION:
//   Three passes over the header row. Each pass handles every unresolved
//   field in declared order before the next pass starts, and a column
//   claimed by one field is never offered to another.
//   1. Exact match of a folded header against a known variant
//   2. Substring match in either direction
//   3. Value-pattern sniffing over the first 10 non-empty cells
//
// DEDUPLICATION:
//   Rows sharing a match key collapse to one survivor: the latest
//   submission date if any member has one, otherwise the latest extension
//   date. Every member of the group is reported as a duplicate_key conflict,
//   the survivor included.
//
// =============================================================================

package sourcea

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/filingsync/internal/normalize"
	"github.com/ginjaninja78/filingsync/internal/schema"
	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/rs/zerolog"
)

const (
	// sniffSample is the number of non-empty cells inspected per column.
	sniffSample = 10

	// sniffMinMatches is the number of sampled cells that must match.
	sniffMinMatches = 3
)

// ColumnMap maps canonical field names to column indexes.
type ColumnMap map[string]int

// Claimed reports whether a column index is already assigned.
func (m ColumnMap) Claimed(idx int) bool {
	for _, i := range m {
		if i == idx {
			return true
		}
	}
	return false
}

// Result is the output of one parse.
type Result struct {
	// Records holds one surviving record per match key, in order of first
	// appearance.
	Records []types.SourceARecord

	// Conflicts holds every member of every duplicate group.
	Conflicts []types.Exception

	// Columns is the resolved column map.
	Columns ColumnMap

	// RawCount is the number of data rows read.
	RawCount int

	// DroppedEmptyKey counts rows dropped for having no match key.
	DroppedEmptyKey int

	Warnings []string
}

// Keys returns the match keys of the surviving records.
func (r *Result) Keys() []string {
	keys := make([]string, len(r.Records))
	for i, rec := range r.Records {
		keys[i] = rec.MatchKey
	}
	return keys
}

// Parser parses source A tables against a schema.
type Parser struct {
	schema *schema.SourceA
	logger zerolog.Logger
}

// NewParser creates a parser for a source A schema.
func NewParser(s *schema.SourceA, logger zerolog.Logger) *Parser {
	return &Parser{
		schema: s,
		logger: logger.With().Str("component", "sourcea").Logger(),
	}
}

// Parse resolves the columns of a table, reads every row into a typed
// record and deduplicates by match key.
//
// PARAMETERS:
//   - table: The materialized paste, header row included.
//
// RETURNS:
//   - The parse result.
//   - A SchemaError when a required field cannot be resolved.
func (p *Parser) Parse(table *types.Table) (*Result, error) {
	res := &Result{RawCount: len(table.Rows)}

	columns, warnings, err := p.DetectColumns(table)
	if err != nil {
		return nil, err
	}
	res.Columns = columns
	res.Warnings = append(res.Warnings, warnings...)

	p.logger.Debug().
		Str("source", table.Source).
		Interface("columns", columns).
		Msg("resolved source A columns")

	var records []types.SourceARecord
	for i := range table.Rows {
		rec := p.readRow(table, i, columns)
		if rec.MatchKey == "" {
			res.DroppedEmptyKey++
			continue
		}
		records = append(records, rec)
	}
	if res.DroppedEmptyKey > 0 {
		p.logger.Info().Int("dropped", res.DroppedEmptyKey).Msg("dropped rows without case number")
	}

	res.Records, res.Conflicts = Deduplicate(records)
	if len(res.Conflicts) > 0 {
		p.logger.Warn().
			Int("conflicts", len(res.Conflicts)).
			Int("surviving", len(res.Records)).
			Msg("duplicate case numbers in source A")
	}

	p.logger.Info().
		Int("rows", res.RawCount).
		Int("records", len(res.Records)).
		Msg("parsed source A")
	return res, nil
}

// =============================================================================
// COLUMN DETECTION
// =============================================================================

// DetectColumns resolves every canonical field to a column index.
//
// RETURNS:
//   - The column map.
//   - Warnings for fields resolved by pattern sniffing.
//   - A SchemaError listing unresolved required fields.
func (p *Parser) DetectColumns(table *types.Table) (ColumnMap, []string, error) {
	headers := make([]string, len(table.Headers))
	for i, h := range table.Headers {
		headers[i] = normalize.Header(h)
	}

	columns := ColumnMap{}
	var warnings []string

	// Pass 1: exact.
	for _, f := range p.schema.Fields {
		if idx, ok := findHeader(headers, f.Headers, columns, exactHeader); ok {
			columns[f.Name] = idx
		}
	}

	// Pass 2: substring.
	for _, f := range p.schema.Fields {
		if _, ok := columns[f.Name]; ok {
			continue
		}
		if idx, ok := findHeader(headers, f.Headers, columns, containsHeader); ok {
			columns[f.Name] = idx
		}
	}

	// Pass 3: value patterns.
	for _, f := range p.schema.Fields {
		if _, ok := columns[f.Name]; ok || f.Pattern == nil {
			continue
		}
		if idx, ok := sniffColumn(table, f, columns); ok {
			columns[f.Name] = idx
			w := fmt.Sprintf("detected %s by value pattern in column %d", f.Name, idx+1)
			warnings = append(warnings, w)
			p.logger.Warn().Str("field", f.Name).Int("column", idx).Msg("column detected by value pattern")
		}
	}

	var missing []string
	for _, name := range p.schema.RequiredFields() {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, warnings, types.NewSchemaError("source A", missing...)
	}
	return columns, warnings, nil
}

type headerMatcher func(header, variant string) bool

func exactHeader(header, variant string) bool {
	return header == variant
}

func containsHeader(header, variant string) bool {
	if header == "" || variant == "" {
		return false
	}
	return strings.Contains(header, variant) || strings.Contains(variant, header)
}

// findHeader returns the first unclaimed column matching any variant.
// Variants are tried in order so the most specific one wins.
func findHeader(headers, variants []string, claimed ColumnMap, match headerMatcher) (int, bool) {
	for _, v := range variants {
		v = normalize.Header(v)
		for idx, h := range headers {
			if claimed.Claimed(idx) {
				continue
			}
			if match(h, v) {
				return idx, true
			}
		}
	}
	return 0, false
}

// sniffColumn returns the first unclaimed column whose sampled values match
// the field pattern often enough.
func sniffColumn(table *types.Table, f schema.Field, claimed ColumnMap) (int, bool) {
	width := len(table.Headers)
	for _, row := range table.Rows {
		if len(row) > width {
			width = len(row)
		}
	}

	for idx := 0; idx < width; idx++ {
		if claimed.Claimed(idx) {
			continue
		}
		matches := 0
		for _, v := range table.NonEmpty(idx, sniffSample) {
			if f.Pattern.MatchString(v) {
				matches++
			}
		}
		if matches >= sniffMinMatches {
			return idx, true
		}
	}
	return 0, false
}

// =============================================================================
// ROW PARSING
// =============================================================================

func (p *Parser) readRow(table *types.Table, row int, columns ColumnMap) types.SourceARecord {
	cell := func(field string) string {
		idx, ok := columns[field]
		if !ok {
			return ""
		}
		return normalize.CleanString(table.Cell(row, idx))
	}

	rec := types.SourceARecord{
		MatchKey:       normalize.MatchKey(cell(schema.FieldCaseNumber)),
		Name:           cell(schema.FieldName),
		ExtensionDate:  normalize.ParseDate(cell(schema.FieldExtensionDate)),
		SubmissionDate: normalize.ParseDate(cell(schema.FieldSubmissionDate)),
		Aux:            make(map[string]string),
		RowNumber:      table.RowNumber(row),
	}
	for _, f := range p.schema.Fields {
		switch f.Name {
		case schema.FieldCaseNumber, schema.FieldName, schema.FieldExtensionDate, schema.FieldSubmissionDate:
			continue
		}
		if v := cell(f.Name); v != "" {
			rec.Aux[f.Name] = v
		}
	}
	return rec
}

// =============================================================================
// DEDUPLICATION
// =============================================================================

// Deduplicate collapses records sharing a match key.
//
// RETURNS:
//   - One survivor per key, in order of first appearance.
//   - One duplicate_key exception per member of every group larger than one.
func Deduplicate(records []types.SourceARecord) ([]types.SourceARecord, []types.Exception) {
	groups := make(map[string][]int)
	var order []string
	for i, rec := range records {
		if _, ok := groups[rec.MatchKey]; !ok {
			order = append(order, rec.MatchKey)
		}
		groups[rec.MatchKey] = append(groups[rec.MatchKey], i)
	}

	survivors := make([]types.SourceARecord, 0, len(order))
	var conflicts []types.Exception
	for _, key := range order {
		members := groups[key]
		if len(members) == 1 {
			survivors = append(survivors, records[members[0]])
			continue
		}

		best := pickSurvivor(records, members)
		survivors = append(survivors, records[best])

		for _, i := range members {
			rec := records[i]
			conflicts = append(conflicts, types.Exception{
				Kind:       types.ExceptionDuplicateKey,
				SourceAKey: key,
				Name:       rec.Name,
				Detail:     duplicateDetail(rec, len(members), i == best),
				Fields:     conflictFields(rec),
				RowNumber:  rec.RowNumber,
				Retained:   i == best,
			})
		}
	}
	return survivors, conflicts
}

// pickSurvivor applies the tie-break rule. Ties keep the earlier row.
func pickSurvivor(records []types.SourceARecord, members []int) int {
	bySubmission := false
	for _, i := range members {
		if records[i].SubmissionDate.Valid {
			bySubmission = true
			break
		}
	}

	best := members[0]
	for _, i := range members[1:] {
		if bySubmission {
			if records[i].SubmissionDate.Later(records[best].SubmissionDate) {
				best = i
			}
		} else if records[i].ExtensionDate.Later(records[best].ExtensionDate) {
			best = i
		}
	}
	return best
}

func duplicateDetail(rec types.SourceARecord, groupSize int, retained bool) string {
	action := "discarded"
	if retained {
		action = "retained"
	}
	return fmt.Sprintf("case number %s appears %d times; row %d %s (submission %q, extension %q)",
		rec.MatchKey, groupSize, rec.RowNumber, action, rec.SubmissionDate.String(), rec.ExtensionDate.String())
}

func conflictFields(rec types.SourceARecord) map[string]string {
	fields := make(map[string]string, len(rec.Aux)+2)
	for k, v := range rec.Aux {
		fields[k] = v
	}
	if rec.ExtensionDate.Valid {
		fields[schema.FieldExtensionDate] = rec.ExtensionDate.String()
	}
	if rec.SubmissionDate.Valid {
		fields[schema.FieldSubmissionDate] = rec.SubmissionDate.String()
	}
	return fields
}
