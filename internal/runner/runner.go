// =============================================================================
// filingsync - Run Orchestration
// =============================================================================
//
// This module runs one reconciliation end to end. It is shared by the CLI and
// the HTTP API.
//
// PIPELINE:
//   1. Resolve the category schema
//   2. Read both input files
//   3. Preflight validation (errors abort unless forced)
//   4. Parse source A (detect columns, normalize, deduplicate)
//   5. Parse source B (validate columns, filter by tax year, build lookup)
//   6. Reconcile
//   7. Write the import, change report and exceptions workbooks
//   8. Write the run summary log
//
// =============================================================================

package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/filingsync/internal/config"
	"github.com/ginjaninja78/filingsync/internal/reconcile"
	"github.com/ginjaninja78/filingsync/internal/schema"
	"github.com/ginjaninja78/filingsync/internal/sourcea"
	"github.com/ginjaninja78/filingsync/internal/sourceb"
	"github.com/ginjaninja78/filingsync/internal/tableio"
	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/ginjaninja78/filingsync/internal/validation"
	"github.com/ginjaninja78/filingsync/internal/xlsxwriter"
	"github.com/ginjaninja78/filingsync/pkg/utils"
	"github.com/rs/zerolog"
)

// ErrPreflightFailed is matched by errors.Is when preflight blocked a run.
var ErrPreflightFailed = errors.New("preflight validation failed")

// PreflightError carries the report of a blocked run.
type PreflightError struct {
	Report *validation.Report
}

// Error implements the error interface
func (e *PreflightError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPreflightFailed, strings.Join(e.Report.Errors(), "; "))
}

// Is implements errors.Is support
func (e *PreflightError) Is(target error) bool {
	return target == ErrPreflightFailed
}

// =============================================================================
// OPTIONS AND OUTCOME
// =============================================================================

// Options describes one run.
type Options struct {
	Category    types.Category
	TaxYear     int
	SourceAPath string
	SourceBPath string

	// OutputDir receives the workbooks and the summary log.
	OutputDir string

	// OutputNameFormat is passed to the workbook writer.
	OutputNameFormat string

	// Force continues past preflight errors.
	Force bool

	// DryRun reconciles without writing any file.
	DryRun bool

	// MinExpectedRecords overrides the schema threshold when positive.
	MinExpectedRecords int

	CSV config.CSVSettings
}

func (o Options) validate() error {
	if o.TaxYear <= 0 {
		return fmt.Errorf("tax year must be positive, got %d", o.TaxYear)
	}
	if o.SourceAPath == "" || o.SourceBPath == "" {
		return fmt.Errorf("both source A and source B files are required")
	}
	if !o.DryRun && o.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	return nil
}

// Stats contains processing statistics.
type Stats struct {
	SourceARows    int
	SourceBRows    int
	ProcessingTime time.Duration
}

// Outcome is everything one run produced.
type Outcome struct {
	Result    *types.Result
	Preflight *validation.Report
	Paths     xlsxwriter.Paths

	// SummaryPath is the text summary log, empty on dry runs.
	SummaryPath string

	Stats Stats
}

// Status is the lifecycle state a finished run should move to.
func (o *Outcome) Status() string {
	if o.Result != nil && o.Result.NeedsReview() {
		return "review"
	}
	return "completed"
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes reconciliation runs.
type Runner struct {
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a Runner.
func New(logger zerolog.Logger) *Runner {
	return &Runner{
		logger: logger.With().Str("component", "runner").Logger(),
		now:    time.Now,
	}
}

type inputs struct {
	def *schema.Definition
	a   *types.Table
	b   *types.Table
}

func (r *Runner) load(ctx context.Context, opts Options) (*inputs, error) {
	def, err := schema.Lookup(opts.Category)
	if err != nil {
		return nil, err
	}
	def = def.WithMinExpectedRecords(opts.MinExpectedRecords)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := tableio.Read(opts.SourceAPath, opts.CSV)
	if err != nil {
		return nil, fmt.Errorf("source A: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := tableio.Read(opts.SourceBPath, opts.CSV)
	if err != nil {
		return nil, fmt.Errorf("source B: %w", err)
	}
	return &inputs{def: def, a: a, b: b}, nil
}

// Preflight reads both inputs and validates them without reconciling.
//
// RETURNS:
//   - The preflight report. Blocking problems are reported as issues,
//     not as an error.
//   - An error if the options are invalid or a file cannot be read.
func (r *Runner) Preflight(ctx context.Context, opts Options) (*validation.Report, error) {
	opts.DryRun = true
	if err := opts.validate(); err != nil {
		return nil, err
	}
	in, err := r.load(ctx, opts)
	if err != nil {
		return nil, err
	}
	report := validation.NewValidator(in.def).Validate(in.a, in.b, opts.TaxYear)
	r.logger.Info().
		Bool("valid", report.IsValid).
		Int("errors", report.ErrorCount).
		Int("warnings", report.WarningCount).
		Str("match_rate", report.MatchRate.String()).
		Msg("preflight finished")
	return report, nil
}

// Run executes the full pipeline.
//
// RETURNS:
//   - The outcome. When preflight blocks the run the outcome still carries
//     the report.
//   - A *PreflightError when preflight found errors and Force is off, a
//     SchemaError or InputError for structural failures, or the context
//     error when cancelled.
func (r *Runner) Run(ctx context.Context, opts Options) (*Outcome, error) {
	start := r.now()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	log := r.logger.With().
		Str("category", opts.Category.String()).
		Int("tax_year", opts.TaxYear).
		Logger()

	// =========================================================================
	// STEP 1-2: SCHEMA AND INPUTS
	// =========================================================================

	in, err := r.load(ctx, opts)
	if err != nil {
		return nil, err
	}
	outcome := &Outcome{
		Stats: Stats{SourceARows: len(in.a.Rows), SourceBRows: len(in.b.Rows)},
	}

	// =========================================================================
	// STEP 3: PREFLIGHT
	// =========================================================================

	outcome.Preflight = validation.NewValidator(in.def).Validate(in.a, in.b, opts.TaxYear)
	for _, issue := range outcome.Preflight.Issues {
		log.Debug().Str("severity", string(issue.Severity)).Str("check", issue.Check).Msg(issue.Message)
	}
	if !outcome.Preflight.IsValid {
		if !opts.Force {
			return outcome, &PreflightError{Report: outcome.Preflight}
		}
		log.Warn().Int("errors", outcome.Preflight.ErrorCount).Msg("continuing past preflight errors")
	}

	// =========================================================================
	// STEP 4-5: PARSE BOTH SOURCES
	// =========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parsedA, err := sourcea.NewParser(&in.def.SourceA, log).Parse(in.a)
	if err != nil {
		return outcome, err
	}
	parsedB, err := sourceb.NewParser(in.def, log).Parse(in.b, opts.TaxYear)
	if err != nil {
		return outcome, err
	}

	// =========================================================================
	// STEP 6: RECONCILE
	// =========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outcome.Result = reconcile.NewEngine(in.def, log).Reconcile(parsedA, parsedB, opts.TaxYear)
	log.Info().Msg(outcome.Result.Summary())

	// =========================================================================
	// STEP 7-8: OUTPUTS
	// =========================================================================

	if !opts.DryRun {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		writer := xlsxwriter.New(opts.OutputDir, opts.OutputNameFormat, log)
		outcome.Paths, err = writer.WriteAll(outcome.Result, in.def)
		if err != nil {
			return outcome, err
		}
	}

	outcome.Stats.ProcessingTime = r.now().Sub(start)

	if !opts.DryRun {
		outcome.SummaryPath, err = utils.WriteSummaryLog(summaryOf(opts, outcome, start, r.now()), opts.OutputDir)
		if err != nil {
			// The workbooks are already written; a missing summary log is not fatal.
			log.Warn().Err(err).Msg("failed to write summary log")
		}
	}
	return outcome, nil
}

func summaryOf(opts Options, outcome *Outcome, start, end time.Time) utils.RunSummary {
	c := outcome.Result.Counts
	summary := utils.RunSummary{
		StartTime:   start,
		EndTime:     end,
		Category:    opts.Category.String(),
		TaxYear:     opts.TaxYear,
		SourceAFile: filepath.Base(opts.SourceAPath),
		SourceBFile: filepath.Base(opts.SourceBPath),
		Counts: []utils.SummaryLine{
			{Label: "Source A records", Value: c.TotalA},
			{Label: "Source B records", Value: c.TotalB},
			{Label: "Matched", Value: c.Matched},
			{Label: "Unmatched", Value: c.Unmatched},
			{Label: "Changed", Value: c.Changed},
			{Label: "Unchanged", Value: c.Unchanged},
			{Label: "Status completed", Value: c.StatusCompleted},
			{Label: "Status preserved", Value: c.StatusPreserved},
			{Label: "Status anomalies", Value: c.StatusAnomaly},
		},
		Warnings: outcome.Result.Warnings,
	}
	for _, path := range []string{outcome.Paths.Import, outcome.Paths.ChangeReport, outcome.Paths.Exceptions} {
		if path != "" {
			summary.OutputFiles = append(summary.OutputFiles, filepath.Base(path))
		}
	}
	return summary
}
