// =============================================================================
// filingsync - XLSX Writer Module
// =============================================================================
//
// This module writes the three workbooks produced by a reconciliation run.
//
// OUTPUT FILES:
//   import         One sheet, header row in schema order, one row per matched
//                  record. Values only; dates as dd/MM/yyyy strings. A header
//                  only file is written when nothing matched.
//   change_report  Summary, all changes, status changes, extension updates
//                  and warnings.
//   exceptions     Unmatched records, status review, duplicates and a
//                  summary.
//
// Every sheet is laid out right to left.
//
// =============================================================================

package xlsxwriter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/ginjaninja78/filingsync/internal/schema"
	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/ginjaninja78/filingsync/pkg/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Output kinds, used in file names.
const (
	KindImport       = "import"
	KindChangeReport = "change_report"
	KindExceptions   = "exceptions"
)

// DefaultNameFormat is used when no name format is configured.
const DefaultNameFormat = "{kind}_{category}_{year}_{timestamp}.xlsx"

// Sheet names.
const (
	SheetImport        = "ייבוא"
	SheetSummary       = "סיכום"
	SheetChanges       = "שינויים"
	SheetStatusChanges = "שינויי סטטוס"
	SheetExtensions    = "עדכוני ארכה"
	SheetWarnings      = "אזהרות"
	SheetUnmatched     = "ללא התאמה"
	SheetStatusReview  = "סקירת סטטוס"
	SheetDuplicates    = "כפילויות"
)

const (
	headerFill = "4472C4"
	noteFill   = "FFF2CC"

	minColWidth = 10.0
	maxColWidth = 50.0
)

// =============================================================================
// WRITER
// =============================================================================

// Paths lists the files written for one run.
type Paths struct {
	Import       string
	ChangeReport string
	Exceptions   string
}

// ByKind returns the paths keyed by output kind.
func (p Paths) ByKind() map[string]string {
	return map[string]string{
		KindImport:       p.Import,
		KindChangeReport: p.ChangeReport,
		KindExceptions:   p.Exceptions,
	}
}

// Writer writes run outputs into one directory.
type Writer struct {
	dir        string
	nameFormat string
	logger     zerolog.Logger
	now        func() time.Time
}

// New creates a Writer. An empty name format means DefaultNameFormat.
func New(dir, nameFormat string, logger zerolog.Logger) *Writer {
	if nameFormat == "" {
		nameFormat = DefaultNameFormat
	}
	return &Writer{
		dir:        dir,
		nameFormat: nameFormat,
		logger:     logger,
		now:        time.Now,
	}
}

// WriteAll writes the import, change report and exceptions workbooks.
//
// PARAMETERS:
//   - result: The reconciliation result.
//   - def: The schema the result was produced with.
//
// RETURNS:
//   - The paths of the three files.
//   - An error if the directory cannot be created or any file fails.
func (w *Writer) WriteAll(result *types.Result, def *schema.Definition) (Paths, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return Paths{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths Paths
	var err error

	if paths.Import, err = w.write(KindImport, result, func(f *excelize.File) error {
		return writeImport(f, result)
	}); err != nil {
		return Paths{}, err
	}
	if paths.ChangeReport, err = w.write(KindChangeReport, result, func(f *excelize.File) error {
		return w.writeChangeReport(f, result, def)
	}); err != nil {
		return Paths{}, err
	}
	if paths.Exceptions, err = w.write(KindExceptions, result, func(f *excelize.File) error {
		return writeExceptions(f, result)
	}); err != nil {
		return Paths{}, err
	}

	w.logger.Info().
		Str("dir", w.dir).
		Int("rows", len(result.Rows)).
		Msg("output files written")
	return paths, nil
}

func (w *Writer) write(kind string, result *types.Result, fill func(*excelize.File) error) (string, error) {
	name := utils.GenerateOutputFileName(w.nameFormat, map[string]string{
		"kind":     kind,
		"category": result.Category.String(),
		"year":     strconv.Itoa(result.TaxYear),
	})
	path := filepath.Join(w.dir, name)

	f := excelize.NewFile()
	defer f.Close()

	if err := fill(f); err != nil {
		return "", fmt.Errorf("failed to build %s workbook: %w", kind, err)
	}
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save %s workbook: %w", kind, err)
	}
	return path, nil
}

// =============================================================================
// IMPORT WORKBOOK
// =============================================================================

func writeImport(f *excelize.File, result *types.Result) error {
	s, err := newSheet(f, SheetImport, true)
	if err != nil {
		return err
	}
	if err := s.header(result.Columns); err != nil {
		return err
	}
	for _, row := range result.Rows {
		values := make([]any, len(row.Values))
		for i, v := range row.Values {
			values[i] = v.String()
		}
		if err := s.row(values); err != nil {
			return err
		}
	}
	return s.finish()
}

// =============================================================================
// CHANGE REPORT
// =============================================================================

var changeHeaders = []string{"מזהה", "שם", "שדה", "ערך קודם", "ערך חדש", "סוג שינוי"}

func (w *Writer) writeChangeReport(f *excelize.File, result *types.Result, def *schema.Definition) error {
	if err := w.writeSummary(f, result, def); err != nil {
		return err
	}

	var status, extension []types.FieldChange
	for _, c := range result.Changes {
		switch c.Category {
		case types.ChangeStatusCompletion:
			status = append(status, c)
		case types.ChangeExtensionUpdate:
			extension = append(extension, c)
		}
	}

	for _, sheet := range []struct {
		name    string
		changes []types.FieldChange
	}{
		{SheetChanges, result.Changes},
		{SheetStatusChanges, status},
		{SheetExtensions, extension},
	} {
		if err := writeChanges(f, sheet.name, sheet.changes); err != nil {
			return err
		}
	}
	return writeWarnings(f, result.Warnings)
}

func (w *Writer) writeSummary(f *excelize.File, result *types.Result, def *schema.Definition) error {
	s, err := newSheet(f, SheetSummary, true)
	if err != nil {
		return err
	}
	c := result.Counts

	displayName := result.Category.String()
	if def != nil {
		displayName = def.DisplayName
	}

	rows := [][]any{
		{"דו״ח סנכרון"},
		{"סוג דו״ח: " + displayName},
		{fmt.Sprintf("שנת מס: %d", result.TaxYear)},
		{"נוצר: " + w.now().Format("2006-01-02 15:04:05")},
		{},
		{"סטטיסטיקת עיבוד"},
		{"רשומות מקור א", c.TotalA},
		{"רשומות מקור ב", c.TotalB},
		{},
		{"תוצאות התאמה"},
		{"התאמות", c.Matched},
		{"ללא התאמה (חריגים)", c.Unmatched},
		{"אחוז התאמה", MatchPercentage(c.Matched, c.TotalA)},
		{},
		{"סטטיסטיקת עדכונים"},
		{"רשומות שהשתנו", c.Changed},
		{"רשומות ללא שינוי", c.Unchanged},
		{"סטטוס → הושלם", c.StatusCompleted},
		{"סטטוס נשמר", c.StatusPreserved},
		{"חריגות סטטוס", c.StatusAnomaly},
	}
	for _, r := range rows {
		if err := s.row(r); err != nil {
			return err
		}
	}
	for _, line := range []int{1, 6, 10, 15} {
		if err := s.boldCell(1, line); err != nil {
			return err
		}
	}

	if len(result.Warnings) > 0 {
		s.next++
		if err := s.row([]any{"אזהרות"}); err != nil {
			return err
		}
		if err := s.boldCell(1, s.next-1); err != nil {
			return err
		}
		for _, warning := range result.Warnings {
			if err := s.row([]any{warning}); err != nil {
				return err
			}
			if err := s.noteCell(1, s.next-1); err != nil {
				return err
			}
		}
	}
	return s.finish()
}

// MatchPercentage renders matched/total as a percentage with one decimal.
// A zero total counts as one.
func MatchPercentage(matched, total int) string {
	if total < 1 {
		total = 1
	}
	pct := decimal.NewFromInt(int64(matched)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total)))
	return pct.StringFixed(1) + "%"
}

func writeChanges(f *excelize.File, name string, changes []types.FieldChange) error {
	s, err := newSheet(f, name, false)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return s.note("לא נרשמו שינויים")
	}
	if err := s.header(changeHeaders); err != nil {
		return err
	}
	for _, c := range changes {
		if err := s.row([]any{c.RecordID, c.Name, c.Field, c.OldValue, c.NewValue, string(c.Category)}); err != nil {
			return err
		}
	}
	return s.finish()
}

func writeWarnings(f *excelize.File, warnings []string) error {
	s, err := newSheet(f, SheetWarnings, false)
	if err != nil {
		return err
	}
	if err := s.row([]any{"אזהרות"}); err != nil {
		return err
	}
	if err := s.boldCell(1, 1); err != nil {
		return err
	}
	if len(warnings) == 0 {
		warnings = []string{"אין אזהרות"}
	}
	for _, warning := range warnings {
		if err := s.row([]any{warning}); err != nil {
			return err
		}
	}
	return s.finish()
}

// =============================================================================
// EXCEPTIONS REPORT
// =============================================================================

func writeExceptions(f *excelize.File, result *types.Result) error {
	if err := writeUnmatched(f, result.ExceptionsOf(types.ExceptionNoCounterpart)); err != nil {
		return err
	}
	if err := writeStatusReview(f, result.Anomalies); err != nil {
		return err
	}
	if err := writeDuplicates(f, result.ExceptionsOf(types.ExceptionDuplicateKey)); err != nil {
		return err
	}

	s, err := newSheet(f, SheetSummary, false)
	if err != nil {
		return err
	}
	c := result.Counts
	if err := s.header([]string{"מדד", "ערך"}); err != nil {
		return err
	}
	for _, r := range [][]any{
		{"רשומות מקור א", c.TotalA},
		{"רשומות מקור ב", c.TotalB},
		{"התאמות", c.Matched},
		{"ללא התאמה (חריגים)", c.Unmatched},
		{"שינויים", c.Changed},
		{"חריגות סטטוס", c.StatusAnomaly},
		{"כפילויות", len(result.ExceptionsOf(types.ExceptionDuplicateKey))},
	} {
		if err := s.row(r); err != nil {
			return err
		}
	}
	return s.finish()
}

func writeUnmatched(f *excelize.File, exceptions []types.Exception) error {
	s, err := newSheet(f, SheetUnmatched, true)
	if err != nil {
		return err
	}
	if len(exceptions) == 0 {
		return s.note("אין נתונים (רשומות ללא התאמה)")
	}

	extra := fieldNames(exceptions)
	headers := append([]string{"מספר תיק", "שם", "שורה", "פירוט"}, extra...)
	if err := s.header(headers); err != nil {
		return err
	}
	for _, e := range exceptions {
		values := []any{e.SourceAKey, e.Name, rowRef(e.RowNumber), e.Detail}
		for _, name := range extra {
			values = append(values, e.Fields[name])
		}
		if err := s.row(values); err != nil {
			return err
		}
	}
	return s.finish()
}

func writeStatusReview(f *excelize.File, anomalies []types.AnomalyDetail) error {
	s, err := newSheet(f, SheetStatusReview, false)
	if err != nil {
		return err
	}
	if len(anomalies) == 0 {
		return s.note("אין חריגות סטטוס")
	}
	if err := s.header([]string{"מספר תיק", "מזהה", "שם", "סטטוס"}); err != nil {
		return err
	}
	for _, a := range anomalies {
		if err := s.row([]any{a.SourceAKey, a.SourceBID, a.Name, a.Status}); err != nil {
			return err
		}
	}
	return s.finish()
}

func writeDuplicates(f *excelize.File, exceptions []types.Exception) error {
	s, err := newSheet(f, SheetDuplicates, false)
	if err != nil {
		return err
	}
	if len(exceptions) == 0 {
		return s.note("אין כפילויות")
	}
	if err := s.header([]string{"מספר תיק", "שם", "שורה", "נשמר", "פירוט"}); err != nil {
		return err
	}
	for _, e := range exceptions {
		kept := "לא"
		if e.Retained {
			kept = "כן"
		}
		if err := s.row([]any{e.SourceAKey, e.Name, rowRef(e.RowNumber), kept, e.Detail}); err != nil {
			return err
		}
	}
	return s.finish()
}

// fieldNames is the sorted union of the auxiliary field names.
func fieldNames(exceptions []types.Exception) []string {
	seen := map[string]bool{}
	var names []string
	for _, e := range exceptions {
		for name := range e.Fields {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func rowRef(n int) any {
	if n <= 0 {
		return ""
	}
	return n
}
