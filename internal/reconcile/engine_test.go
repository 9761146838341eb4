package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/ginjaninja78/filingsync/internal/schema"
	"github.com/ginjaninja78/filingsync/internal/sourcea"
	"github.com/ginjaninja78/filingsync/internal/sourceb"
	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FIXTURES
// =============================================================================

const testYear = 2024

var (
	sourceAHeaders = []string{"קוד שידור", "תאריך ארכה", "תאריך הגשה", "שם משפחה ופרטי", "מספר תיק"}
	sourceBHeaders = []string{"מזהה", "שנת מס", "כרטיס לקוח", "ח.פ", "עובד מטפל", "סטטוס", "הגשה", "אורכה משרד", "הערות"}
)

type aRow struct {
	key, name, ext, sub string
}

type bRow struct {
	id, key, status, sub, ext, notes string
}

const pending = "1125886299: 8) בעבודה"

type fixture struct {
	t   *testing.T
	def *schema.Definition
	a   []aRow
	b   []bRow
}

func newFixture(t *testing.T) *fixture {
	def, err := schema.Lookup(types.CategoryFinancial)
	require.NoError(t, err)
	return &fixture{t: t, def: def}
}

func (f *fixture) run() *types.Result {
	f.t.Helper()

	aTable := &types.Table{Headers: sourceAHeaders}
	for _, r := range f.a {
		aTable.Rows = append(aTable.Rows, []string{"1", r.ext, r.sub, r.name, r.key})
	}
	bTable := &types.Table{Headers: sourceBHeaders}
	for _, r := range f.b {
		bTable.Rows = append(bTable.Rows, []string{
			r.id, fmt.Sprintf("1125575564: %d", testYear), r.id + ": לקוח " + r.id, r.key, "דנה", r.status, r.sub, r.ext, r.notes,
		})
	}

	a, err := sourcea.NewParser(&f.def.SourceA, zerolog.Nop()).Parse(aTable)
	require.NoError(f.t, err)
	b, err := sourceb.NewParser(f.def, zerolog.Nop()).Parse(bTable, testYear)
	require.NoError(f.t, err)

	res := NewEngine(f.def, zerolog.Nop()).Reconcile(a, b, testYear)
	assertInvariants(f.t, res)
	return res
}

func assertInvariants(t *testing.T, res *types.Result) {
	t.Helper()
	c := res.Counts
	assert.Equal(t, c.TotalA, c.Matched+c.Unmatched, "matched + unmatched == total A")
	assert.Equal(t, c.Matched, c.StatusCompleted+c.StatusPreserved+c.StatusAnomaly, "status tallies cover every match")
	assert.Equal(t, c.StatusAnomaly, len(res.Anomalies), "anomaly details track the anomaly count")
	assert.Equal(t, c.StatusAnomaly, len(res.ExceptionsOf(types.ExceptionStatusAnomaly)))
	assert.Equal(t, c.Unmatched, len(res.ExceptionsOf(types.ExceptionNoCounterpart)))
	assert.Len(t, res.Rows, c.Matched)
	assert.Equal(t, len(res.Changes), c.Changed)
	assert.GreaterOrEqual(t, c.Unchanged, 0)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(types.DateLayout, s)
	require.NoError(t, err)
	return d
}

func (f *fixture) column(res *types.Result, row int, header string) types.Value {
	f.t.Helper()
	for i, h := range res.Columns {
		if h == header {
			return res.Rows[row].Values[i]
		}
	}
	f.t.Fatalf("no output column %q", header)
	return types.Value{}
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestCompletedStatusPreservedAsAnomaly(t *testing.T) {
	f := newFixture(t)
	f.a = []aRow{{key: "111111111", name: "כהן משה", ext: "31/05/2025"}}
	f.b = []bRow{{id: "7001", key: "111111111", status: schema.StatusCompletedLabel}}

	res := f.run()

	assert.Equal(t, 1, res.Counts.StatusAnomaly)
	assert.Equal(t, 0, res.Counts.StatusPreserved)
	assert.Equal(t, schema.StatusCompletedLabel, f.column(res, 0, schema.HeaderStatus).Text)

	anomalies := res.ExceptionsOf(types.ExceptionStatusAnomaly)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "111111111", anomalies[0].SourceAKey)
	assert.Equal(t, "7001", anomalies[0].SourceBID)
	assert.Equal(t, "111111111", anomalies[0].SourceBKey)
	assert.Equal(t, types.AnomalyDetail{SourceAKey: "111111111", SourceBID: "7001", Name: "כהן משה", Status: schema.StatusCompletedLabel}, res.Anomalies[0])

	for _, c := range res.Changes {
		assert.NotEqual(t, schema.HeaderStatus, c.Field)
	}
	assert.True(t, res.NeedsReview())
}

func TestNoCounterpart(t *testing.T) {
	f := newFixture(t)
	f.a = []aRow{
		{key: "555555555", name: "לוי דנה", ext: "31/05/2025"},
		{key: "123456789", name: "כהן משה"},
	}
	f.b = []bRow{{id: "1", key: "123456789", status: pending}}

	res := f.run()

	assert.Equal(t, 1, res.Counts.Matched)
	assert.Equal(t, 1, res.Counts.Unmatched)
	unmatched := res.ExceptionsOf(types.ExceptionNoCounterpart)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "555555555", unmatched[0].SourceAKey)
	assert.Equal(t, "לוי דנה", unmatched[0].Name)
	assert.Equal(t, "31/05/2025", unmatched[0].Fields[schema.FieldExtensionDate])
	for _, row := range res.Rows {
		assert.NotEqual(t, "555555555", row.MatchKey)
	}
	assert.Contains(t, res.Warnings[len(res.Warnings)-1], "1 source A records have no counterpart")
}

func TestLeadingZeroFallback(t *testing.T) {
	f := newFixture(t)
	f.a = []aRow{{key: "0012345", name: "פרץ רון"}}
	f.b = []bRow{{id: "9", key: "12345", status: pending}}

	res := f.run()

	assert.Equal(t, 1, res.Counts.Matched)
	assert.Equal(t, "9", res.Rows[0].RecordID)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "0012345 -> 12345")
}

func TestFallbackNeverOverridesPrimary(t *testing.T) {
	f := newFixture(t)
	f.a = []aRow{{key: "0012345"}, {key: "12345"}}
	f.b = []bRow{
		{id: "bare", key: "12345", status: pending},
		{id: "zero", key: "0012345", status: pending},
	}

	res := f.run()

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "zero", res.Rows[0].RecordID)
	assert.Equal(t, "bare", res.Rows[1].RecordID)
	for _, w := range res.Warnings {
		assert.NotContains(t, w, "secondary match")
	}
}

func TestEarlierAliasClaimsLaterKey(t *testing.T) {
	f := newFixture(t)
	f.a = []aRow{{key: "789"}}
	f.b = []bRow{
		{id: "1", key: "0789", status: pending},
		{id: "2", key: "789", status: pending},
	}

	res := f.run()

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "1", res.Rows[0].RecordID, "first-seen record keeps the key")
	assert.Equal(t, 1, res.Counts.Matched)
}

func TestNoFallbackWithoutLeadingZeros(t *testing.T) {
	f := newFixture(t)
	f.a = []aRow{{key: "12345"}}
	f.b = []bRow{{id: "x", key: "123450", status: pending}}

	res := f.run()
	assert.Equal(t, 1, res.Counts.Unmatched)
}

func TestSubmissionCompletesStatus(t *testing.T) {
	f := newFixture(t)
	f.a = []aRow{{key: "222222222", name: "מזרחי אבי", ext: "31/05/2025", sub: "20/04/2025"}}
	f.b = []bRow{{id: "44", key: "222222222", status: pending, ext: "31/03/2025", notes: "keep me"}}

	res := f.run()

	assert.Equal(t, 1, res.Counts.StatusCompleted)
	assert.Equal(t, schema.StatusCompletedCode, f.column(res, 0, schema.HeaderStatus).Text)
	assert.Equal(t, "31/05/2025", f.column(res, 0, schema.HeaderOfficeExt).String())
	assert.Equal(t, "20/04/2025", f.column(res, 0, schema.HeaderSubmission).String())
	assert.Equal(t, "keep me", f.column(res, 0, schema.HeaderNotes).Text)
	assert.Equal(t, "דנה", f.column(res, 0, "עובד מטפל").Text)

	require.Len(t, res.Changes, 3)
	byCategory := map[types.ChangeCategory]types.FieldChange{}
	for _, c := range res.Changes {
		byCategory[c.Category] = c
		assert.Equal(t, "44", c.RecordID)
		assert.Equal(t, "מזרחי אבי", c.Name)
	}
	assert.Equal(t, pending, byCategory[types.ChangeStatusCompletion].OldValue)
	assert.Equal(t, "31/03/2025", byCategory[types.ChangeExtensionUpdate].OldValue)
	assert.Equal(t, "", byCategory[types.ChangeSubmissionUpdate].OldValue)

	assert.Equal(t, 3, res.Counts.Changed)
	assert.Equal(t, 0, res.Counts.Unchanged)
}

func TestSubmissionOnCompletedRecordIsNotAChange(t *testing.T) {
	f := newFixture(t)
	f.a = []aRow{{key: "333333333", sub: "20/04/2025"}}
	f.b = []bRow{{id: "5", key: "333333333", status: schema.StatusCompletedLabel, sub: "20/04/2025"}}

	res := f.run()

	assert.Equal(t, 1, res.Counts.StatusCompleted)
	assert.Empty(t, res.Changes)
	assert.Equal(t, 1, res.Counts.Unchanged)
	assert.Equal(t, schema.StatusCompletedLabel, f.column(res, 0, schema.HeaderStatus).Text)
}

func TestSourceBDatesKeptWhenSourceAHasNone(t *testing.T) {
	f := newFixture(t)
	f.a = []aRow{{key: "444444444"}}
	f.b = []bRow{{id: "6", key: "444444444", status: pending, ext: "2025-05-31", sub: ""}}

	res := f.run()

	assert.Equal(t, 1, res.Counts.StatusPreserved)
	assert.Empty(t, res.Changes)
	assert.Equal(t, "31/05/2025", f.column(res, 0, schema.HeaderOfficeExt).String())
	assert.Equal(t, "", f.column(res, 0, schema.HeaderSubmission).String())
	assert.Equal(t, "6: לקוח 6", f.column(res, 0, schema.HeaderCustomerCard).Text)
}

func TestDuplicatesReportedBeforeMatching(t *testing.T) {
	f := newFixture(t)
	f.a = []aRow{
		{key: "123456789", ext: "01/09/2025"},
		{key: "123456789", ext: "01/05/2025"},
		{key: "987654321", sub: "01/04/2025"},
	}
	f.b = []bRow{
		{id: "1", key: "123456789", status: pending},
		{id: "2", key: "987654321", status: pending},
	}

	res := f.run()

	assert.Equal(t, 2, res.Counts.TotalA)
	dups := res.ExceptionsOf(types.ExceptionDuplicateKey)
	require.Len(t, dups, 2)
	assert.Equal(t, types.ExceptionDuplicateKey, res.Exceptions[0].Kind)
	assert.Equal(t, "01/09/2025", f.column(res, 0, schema.HeaderOfficeExt).String())
	assert.False(t, res.NeedsReview(), "duplicates alone do not hold a run for review")
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestStatusMonotonic(t *testing.T) {
	statuses := []string{schema.StatusCompletedCode, schema.StatusCompletedLabel}
	dates := []types.Date{{}, types.NewDate(mustDate(t, "20/04/2025"))}

	for _, status := range statuses {
		for _, sub := range dates {
			for _, ext := range dates {
				rec := &types.SourceARecord{MatchKey: "1", SubmissionDate: sub, ExtensionDate: ext}
				got, _ := DeriveStatus(rec, status)
				assert.True(t, schema.IsCompleted(got))
				assert.Equal(t, status, got)
			}
		}
	}
}

func TestDeriveStatusOutcomes(t *testing.T) {
	withSub := &types.SourceARecord{SubmissionDate: types.NewDate(mustDate(t, "01/01/2025"))}
	without := &types.SourceARecord{}

	got, outcome := DeriveStatus(withSub, pending)
	assert.Equal(t, schema.StatusCompletedCode, got)
	assert.Equal(t, OutcomeCompleted, outcome)

	_, outcome = DeriveStatus(without, schema.StatusCompletedCode)
	assert.Equal(t, OutcomeAnomaly, outcome)

	got, outcome = DeriveStatus(without, pending)
	assert.Equal(t, pending, got)
	assert.Equal(t, OutcomePreserved, outcome)

	got, outcome = DeriveStatus(without, "")
	assert.Equal(t, "", got)
	assert.Equal(t, OutcomePreserved, outcome)
}

func TestInvariantsOnMixedInput(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 40; i++ {
		key := fmt.Sprintf("%09d", 100000000+i%30)
		r := aRow{key: key, name: "שם בדיקה"}
		if i%3 == 0 {
			r.sub = "01/04/2025"
		}
		if i%4 == 0 {
			r.ext = fmt.Sprintf("%02d/05/2025", 1+i%28)
		}
		f.a = append(f.a, r)
	}
	for i := 0; i < 25; i++ {
		status := pending
		if i%5 == 0 {
			status = schema.StatusCompletedLabel
		}
		f.b = append(f.b, bRow{id: fmt.Sprint(i), key: fmt.Sprintf("%09d", 100000000+i), status: status})
	}

	res := f.run()
	assert.Equal(t, 30, res.Counts.TotalA)
	assert.Equal(t, 25, res.Counts.Matched)
	assert.Equal(t, 5, res.Counts.Unmatched)
}
