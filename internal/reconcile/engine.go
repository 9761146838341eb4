// =============================================================================
// filingsync - Reconciliation Engine
// =============================================================================
//
// Matches every surviving source A record against the source B lookup and
// builds the import rows, the field-level diff and the exception list.
//
// MATCHING:
//   1. Primary: exact lookup of the normalized key (aliases included)
//   2. Fallback: only for keys with leading zeros, zero-insensitive lookup
//   3. No match: no_counterpart_match exception, record dropped
//
// STATUS RULE:
//   Status is a forward-only machine, pending -> completed. A submission
//   date in source A completes the filing. A completed status in source B
//   is never downgraded; without submission evidence in source A it is
//   flagged as a status_anomaly instead.
//
// The engine is synchronous and keeps all state in a per-run builder, so
// independent runs may execute concurrently.
//
// =============================================================================

package reconcile

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/filingsync/internal/schema"
	"github.com/ginjaninja78/filingsync/internal/sourcea"
	"github.com/ginjaninja78/filingsync/internal/sourceb"
	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/rs/zerolog"
)

// Engine reconciles parsed sources for one category.
type Engine struct {
	def    *schema.Definition
	logger zerolog.Logger
}

// NewEngine creates an engine for a category definition.
func NewEngine(def *schema.Definition, logger zerolog.Logger) *Engine {
	return &Engine{
		def:    def,
		logger: logger.With().Str("component", "reconcile").Str("category", string(def.Category)).Logger(),
	}
}

// Outcome is the mutually exclusive status tally of one pair.
type Outcome int

const (
	OutcomePreserved Outcome = iota
	OutcomeCompleted
	OutcomeAnomaly
)

// builder accumulates one run. It is never shared between runs.
type builder struct {
	result         *types.Result
	exceptions     []types.Exception
	unmatched      int
	changedRecords int
}

// Reconcile runs the engine over two parsed sources.
//
// PARAMETERS:
//   - a: Parsed and deduplicated source A.
//   - b: Parsed source B, filtered to the tax year.
//   - taxYear: The tax year of the run, recorded on the result.
//
// RETURNS:
//   - The reconciliation result. Record-level problems never produce an
//     error; they are reported as exceptions and warnings.
func (e *Engine) Reconcile(a *sourcea.Result, b *sourceb.Result, taxYear int) *types.Result {
	bld := &builder{
		result: &types.Result{
			Category: e.def.Category,
			TaxYear:  taxYear,
			Columns:  e.def.OutputHeaders(),
		},
	}
	res := bld.result
	res.Counts.TotalA = len(a.Records)
	res.Counts.TotalB = len(b.Records)

	res.Warnings = append(res.Warnings, a.Warnings...)
	res.Warnings = append(res.Warnings, b.Warnings...)
	bld.exceptions = append(bld.exceptions, a.Conflicts...)

	e.logger.Info().
		Int("source_a", res.Counts.TotalA).
		Int("source_b", res.Counts.TotalB).
		Int("tax_year", taxYear).
		Msg("starting reconciliation")

	for i := range a.Records {
		rec := &a.Records[i]
		match, ok := e.match(rec, b.Lookup, bld)
		if !ok {
			bld.unmatched++
			bld.exceptions = append(bld.exceptions, unmatchedException(rec))
			continue
		}
		e.processPair(rec, match, bld)
	}

	res.Counts.Matched = len(res.Rows)
	res.Counts.Unmatched = bld.unmatched
	res.Counts.Changed = len(res.Changes)
	res.Counts.Unchanged = res.Counts.Matched - bld.changedRecords

	res.Exceptions = bld.exceptions

	if res.Counts.Unmatched > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"%d source A records have no counterpart in source B; the export may be partial or filtered, or these are new clients",
			res.Counts.Unmatched))
	}

	e.logger.Info().
		Int("matched", res.Counts.Matched).
		Int("unmatched", res.Counts.Unmatched).
		Int("changes", res.Counts.Changed).
		Int("anomalies", res.Counts.StatusAnomaly).
		Msg("reconciliation complete")
	return res
}

// match finds the counterpart of a source A record.
func (e *Engine) match(rec *types.SourceARecord, lookup *sourceb.Lookup, bld *builder) (*types.SourceBRecord, bool) {
	if lookup == nil {
		return nil, false
	}
	if b, ok := lookup.Get(rec.MatchKey); ok {
		return b, true
	}
	b, key, ok := lookup.Fallback(rec.MatchKey)
	if !ok {
		return nil, false
	}
	bld.result.Warnings = append(bld.result.Warnings,
		fmt.Sprintf("secondary match for %s -> %s (leading zeros)", rec.MatchKey, key))
	e.logger.Debug().Str("key", rec.MatchKey).Str("substituted", key).Msg("fallback match")
	return b, true
}

// processPair derives the output row and changes of one matched pair.
func (e *Engine) processPair(a *types.SourceARecord, b *types.SourceBRecord, bld *builder) {
	res := bld.result
	name := displayName(a, b)

	status, outcome := DeriveStatus(a, b.Status)
	switch outcome {
	case OutcomeCompleted:
		res.Counts.StatusCompleted++
	case OutcomeAnomaly:
		res.Counts.StatusAnomaly++
		res.Anomalies = append(res.Anomalies, types.AnomalyDetail{
			SourceAKey: a.MatchKey,
			SourceBID:  b.ID,
			Name:       name,
			Status:     b.Status,
		})
		bld.exceptions = append(bld.exceptions, types.Exception{
			Kind:       types.ExceptionStatusAnomaly,
			SourceAKey: a.MatchKey,
			SourceBID:  b.ID,
			SourceBKey: b.MatchKey,
			Name:       name,
			Status:     b.Status,
			Detail:     "source B reports the filing as completed but source A has no submission date",
			RowNumber:  a.RowNumber,
		})
	default:
		res.Counts.StatusPreserved++
	}

	row := types.OutputRow{
		RecordID: b.ID,
		MatchKey: b.MatchKey,
		Values:   make([]types.Value, len(e.def.Output)),
	}
	var changes []types.FieldChange
	record := func(field string, old, updated types.Value, category types.ChangeCategory) {
		changes = append(changes, types.FieldChange{
			RecordID: b.ID,
			Name:     name,
			Field:    field,
			OldValue: old.String(),
			NewValue: updated.String(),
			Category: category,
		})
	}

	for i, col := range e.def.Output {
		current := b.Value(col.Source)
		switch col.Derive {
		case schema.DerivedStatus:
			row.Values[i] = types.TextValue(status)
			if status != b.Status {
				record(col.Header, current, row.Values[i], types.ChangeStatusCompletion)
			}
		case schema.DerivedExtension:
			row.Values[i] = preferDate(a.ExtensionDate, current)
			if row.Values[i].Differs(current) {
				record(col.Header, current, row.Values[i], types.ChangeExtensionUpdate)
			}
		case schema.DerivedSubmission:
			row.Values[i] = preferDate(a.SubmissionDate, current)
			if row.Values[i].Differs(current) {
				record(col.Header, current, row.Values[i], types.ChangeSubmissionUpdate)
			}
		default:
			row.Values[i] = current
		}
	}

	res.Rows = append(res.Rows, row)
	if len(changes) > 0 {
		res.Changes = append(res.Changes, changes...)
		bld.changedRecords++
	}
}

// DeriveStatus applies the status rule to one pair and returns the new
// status value. A completed current status is always returned unchanged.
func DeriveStatus(a *types.SourceARecord, current string) (string, Outcome) {
	completed := schema.IsCompleted(current)
	switch {
	case a.SubmissionDate.Valid && completed:
		return current, OutcomeCompleted
	case a.SubmissionDate.Valid:
		return schema.StatusCompletedCode, OutcomeCompleted
	case completed:
		return current, OutcomeAnomaly
	default:
		return current, OutcomePreserved
	}
}

func preferDate(fromA types.Date, current types.Value) types.Value {
	if fromA.Valid {
		return types.DateValue(fromA)
	}
	return current
}

// displayName prefers the source A name and falls back to the name part of
// the "id: name" customer card.
func displayName(a *types.SourceARecord, b *types.SourceBRecord) string {
	if a.Name != "" {
		return a.Name
	}
	card := b.Fields[schema.HeaderCustomerCard]
	if i := strings.Index(card, ":"); i >= 0 {
		return strings.TrimSpace(card[i+1:])
	}
	return card
}

func unmatchedException(rec *types.SourceARecord) types.Exception {
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
	return types.Exception{
		Kind:       types.ExceptionNoCounterpart,
		SourceAKey: rec.MatchKey,
		Name:       rec.Name,
		Detail:     "no matching record in the source B export; possibly a new client or a filtered export",
		Fields:     fields,
		RowNumber:  rec.RowNumber,
	}
}
