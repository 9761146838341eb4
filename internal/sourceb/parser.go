// =============================================================================
// filingsync - Source B Parser
// =============================================================================
//
// Parses the practice-management platform export. Unlike source A the export
// has fixed, well-formed headers, so there is no pattern sniffing: a missing
// identity column is a schema error.
//
// PROCESSING STEPS:
//   1. Validate the identity columns (match key, id, tax year)
//   2. Keep only rows whose composite "code: label" year equals the
//      requested tax year
//   3. Clean ids, normalize match keys, parse date columns
//   4. Build the match lookup (see lookup.go)
//
// =============================================================================

package sourceb

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/filingsync/internal/normalize"
	"github.com/ginjaninja78/filingsync/internal/schema"
	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/rs/zerolog"
)

// maxListedDuplicates caps the keys named in the duplicate warning.
const maxListedDuplicates = 5

// Result is the output of one parse.
type Result struct {
	// Records holds the rows of the requested tax year, in export order.
	Records []types.SourceBRecord

	// Lookup indexes Records by match key.
	Lookup *Lookup

	// RawCount is the number of data rows before year filtering.
	RawCount int

	// FilteredOut counts rows of other tax years.
	FilteredOut int

	// DuplicateKeys lists match keys whose later rows lost to an earlier
	// claim on the same key, in order.
	DuplicateKeys []string

	Warnings []string
}

// Parser parses source B tables against a category definition.
type Parser struct {
	def    *schema.Definition
	logger zerolog.Logger
}

// NewParser creates a parser for a category definition.
func NewParser(def *schema.Definition, logger zerolog.Logger) *Parser {
	return &Parser{
		def:    def,
		logger: logger.With().Str("component", "sourceb").Str("category", string(def.Category)).Logger(),
	}
}

// Parse validates, filters and indexes a source B table.
//
// PARAMETERS:
//   - table: The materialized export, header row included.
//   - taxYear: Only rows of this tax year are kept.
//
// RETURNS:
//   - The parse result. An empty year yields a warning, not an error.
//   - A SchemaError when identity columns are missing.
func (p *Parser) Parse(table *types.Table, taxYear int) (*Result, error) {
	columns, err := p.ValidateColumns(table)
	if err != nil {
		return nil, err
	}

	res := &Result{RawCount: len(table.Rows)}
	yearCol := columns[schema.HeaderTaxYear]

	for i := range table.Rows {
		year, ok := normalize.ExtractYear(table.Cell(i, yearCol))
		if !ok || year != taxYear {
			res.FilteredOut++
			continue
		}
		res.Records = append(res.Records, p.readRow(table, i, columns, year))
	}

	if res.FilteredOut > 0 {
		p.logger.Info().Int("filtered", res.FilteredOut).Int("tax_year", taxYear).Msg("filtered rows of other tax years")
	}
	if len(res.Records) == 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("no source B records found for tax year %d", taxYear))
	}

	res.Lookup = NewLookup(res.Records)
	res.DuplicateKeys = res.Lookup.Duplicates()
	if n := len(res.DuplicateKeys); n > 0 {
		listed := res.DuplicateKeys
		if n > maxListedDuplicates {
			listed = listed[:maxListedDuplicates]
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"found %d duplicate match keys in source B; first occurrence is used for matching (%s)",
			n, strings.Join(listed, ", ")))
		p.logger.Warn().Strs("keys", listed).Int("count", n).Msg("duplicate match keys in source B")
	}

	p.logger.Info().
		Int("rows", res.RawCount).
		Int("records", len(res.Records)).
		Int("indexed", res.Lookup.Len()).
		Int("tax_year", taxYear).
		Msg("parsed source B")
	return res, nil
}

// ValidateColumns maps every known export column to its index and checks
// that the identity columns are present.
func (p *Parser) ValidateColumns(table *types.Table) (map[string]int, error) {
	index := make(map[string]int, len(table.Headers))
	for i, h := range table.Headers {
		folded := normalize.Header(h)
		if _, ok := index[folded]; !ok {
			index[folded] = i
		}
	}

	columns := make(map[string]int)
	for _, h := range p.def.Columns {
		if i, ok := index[normalize.Header(h)]; ok {
			columns[h] = i
		}
	}

	var missing []string
	for _, h := range p.def.IdentityHeaders() {
		if _, ok := columns[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, types.NewSchemaError("source B", missing...)
	}
	return columns, nil
}

func (p *Parser) readRow(table *types.Table, row int, columns map[string]int, year int) types.SourceBRecord {
	rec := types.SourceBRecord{
		TaxYear:   year,
		Fields:    make(map[string]string, len(columns)),
		Dates:     make(map[string]types.Date),
		RowNumber: table.RowNumber(row),
	}

	for header, col := range columns {
		v := normalize.CleanString(table.Cell(row, col))
		rec.Fields[header] = v
		if p.def.IsDateHeader(header) {
			rec.Dates[header] = normalize.ParseDate(v)
		}
	}

	rec.ID = normalize.CleanID(rec.Fields[schema.HeaderID])
	rec.Fields[schema.HeaderID] = rec.ID
	rec.RawKey = rec.Fields[p.def.MatchKeyHeader]
	rec.MatchKey = normalize.MatchKey(rec.RawKey)
	if stripped := normalize.StripLeadingZeros(rec.MatchKey); stripped != rec.MatchKey {
		rec.AliasKey = stripped
	}
	rec.Status = rec.Fields[schema.HeaderStatus]
	rec.ExtensionDate = rec.Dates[schema.HeaderOfficeExt]
	rec.SubmissionDate = rec.Dates[schema.HeaderSubmission]
	return rec
}
