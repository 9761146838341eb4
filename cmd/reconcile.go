// =============================================================================
// filingsync - Reconcile Command
// =============================================================================
//
// This file defines the 'reconcile' command, which runs one reconciliation
// from two local files. It orchestrates the entire pipeline through the
// runner package.
//
// COMMAND USAGE:
//   filingsync reconcile --category financial --year 2024 \
//       --source-a idom.xlsx --source-b export.xlsx [flags]
//
// FLAGS:
//   --out           : Directory for the output workbooks
//   --force         : Continue past preflight errors
//   --dry-run       : Reconcile without writing any file
//   --min-expected  : Override the category's minimum expected record count
//
// PROCESSING PIPELINE:
//   1. Load configuration
//   2. Read both inputs (xlsx or csv)
//   3. Preflight; errors abort unless --force
//   4. Parse source A and source B
//   5. Reconcile
//   6. Write the import, change report and exceptions workbooks
//   7. Print the summary
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ginjaninja78/filingsync/internal/config"
	"github.com/ginjaninja78/filingsync/internal/runner"
	"github.com/ginjaninja78/filingsync/internal/schema"
	"github.com/ginjaninja78/filingsync/internal/validation"
	"github.com/ginjaninja78/filingsync/internal/xlsxwriter"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// runFlags are shared by 'reconcile' and 'validate'.
type runFlags struct {
	category    string
	year        int
	sourceA     string
	sourceB     string
	minExpected int
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "Report category (financial, annual)")
	cmd.Flags().IntVarP(&f.year, "year", "y", 0, "Tax year to reconcile")
	cmd.Flags().StringVar(&f.sourceA, "source-a", "", "Filing-authority case list (.xlsx or .csv)")
	cmd.Flags().StringVar(&f.sourceB, "source-b", "", "Accounting platform export (.xlsx or .csv)")
	cmd.Flags().IntVar(&f.minExpected, "min-expected", 0, "Minimum expected source B records (0 keeps the configured value)")

	for _, name := range []string{"category", "year", "source-a", "source-b"} {
		cmd.MarkFlagRequired(name)
	}
}

// options builds runner options from the flags and the configuration.
func (f *runFlags) options(cfg *config.MainConfig) (runner.Options, error) {
	category, err := schema.ParseCategory(f.category)
	if err != nil {
		return runner.Options{}, err
	}
	minExpected := f.minExpected
	if minExpected <= 0 {
		minExpected = cfg.MinExpectedFor(string(category))
	}
	return runner.Options{
		Category:           category,
		TaxYear:            f.year,
		SourceAPath:        f.sourceA,
		SourceBPath:        f.sourceB,
		OutputNameFormat:   cfg.OutputNameFormat,
		MinExpectedRecords: minExpected,
		CSV:                cfg.CSV,
	}, nil
}

var reconcileFlags runFlags

// outDir is the directory for the output workbooks.
var outDir string

// force continues past preflight errors.
var force bool

// dryRun reconciles without writing any file.
var dryRun bool

// =============================================================================
// RECONCILE COMMAND DEFINITION
// =============================================================================

// reconcileCmd represents the 'reconcile' command.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a case list against a platform export",
	Long: `The reconcile command matches every case in the filing-authority list
(source A) against the platform export (source B) for one tax year, derives
the new status and dates, and writes three workbooks:

  import_*         Ready to upload back to the platform
  change_report_*  Every changed field, with a summary sheet
  exceptions_*     Unmatched cases, status anomalies and duplicates

Preflight runs first. Errors stop the run unless --force is given.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runReconcile(ctx)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileFlags.register(reconcileCmd)
	reconcileCmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default <data_dir>/outputs)")
	reconcileCmd.Flags().BoolVar(&force, "force", false, "Continue past preflight errors")
	reconcileCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Reconcile without writing output files")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runReconcile(ctx context.Context) error {
	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(cfg)
	defer closeLog()

	opts, err := reconcileFlags.options(cfg)
	if err != nil {
		return err
	}
	opts.Force = force
	opts.DryRun = dryRun
	opts.OutputDir = outDir
	if opts.OutputDir == "" {
		opts.OutputDir = filepath.Join(cfg.DataDir, "outputs")
	}

	def, err := schema.Lookup(opts.Category)
	if err != nil {
		return err
	}
	fmt.Println("=== filingsync reconcile ===")
	fmt.Printf("Category:  %s (%s)\n", def.DisplayNameEN, def.DisplayName)
	fmt.Printf("Tax year:  %d\n", opts.TaxYear)
	fmt.Printf("Source A:  %s\n", opts.SourceAPath)
	fmt.Printf("Source B:  %s\n", opts.SourceBPath)

	// =========================================================================
	// STEP 2: RUN THE PIPELINE
	// =========================================================================

	outcome, err := runner.New(logger).Run(ctx, opts)
	if err != nil {
		var pfErr *runner.PreflightError
		if errors.As(err, &pfErr) {
			fmt.Fprintln(os.Stderr)
			fmt.Fprint(os.Stderr, validation.FormatIssues(pfErr.Report))
			fmt.Fprintln(os.Stderr, "\nRe-run with --force to reconcile anyway.")
		}
		return err
	}

	// =========================================================================
	// STEP 3: PRINT SUMMARY
	// =========================================================================

	printOutcome(outcome)
	return nil
}

func printOutcome(outcome *runner.Outcome) {
	res := outcome.Result
	c := res.Counts

	if outcome.Preflight != nil && outcome.Preflight.WarningCount > 0 {
		fmt.Println("\nPreflight warnings:")
		for _, w := range outcome.Preflight.Warnings() {
			fmt.Printf("  ! %s\n", w)
		}
	}

	fmt.Println("\n=== Reconciliation Complete ===")
	fmt.Printf("Source A records:   %d\n", c.TotalA)
	fmt.Printf("Source B records:   %d\n", c.TotalB)
	fmt.Printf("Matched:            %d (%s)\n", c.Matched, xlsxwriter.MatchPercentage(c.Matched, c.TotalA))
	fmt.Printf("Unmatched:          %d\n", c.Unmatched)
	fmt.Printf("Changed:            %d\n", c.Changed)
	fmt.Printf("Unchanged:          %d\n", c.Unchanged)
	fmt.Printf("Status completed:   %d\n", c.StatusCompleted)
	fmt.Printf("Status preserved:   %d\n", c.StatusPreserved)
	fmt.Printf("Status anomalies:   %d\n", c.StatusAnomaly)
	fmt.Printf("Time elapsed:       %s\n", outcome.Stats.ProcessingTime)
	fmt.Printf("Status:             %s\n", outcome.Status())

	if len(res.Warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range res.Warnings {
			fmt.Printf("  ! %s\n", w)
		}
	}

	if outcome.Paths.Import == "" {
		fmt.Println("\nDry run: no files written.")
		return
	}
	fmt.Println("\nOutputs:")
	for _, path := range []string{outcome.Paths.Import, outcome.Paths.ChangeReport, outcome.Paths.Exceptions} {
		if path != "" {
			fmt.Printf("  ✓ %s\n", path)
		}
	}
	if outcome.SummaryPath != "" {
		fmt.Printf("  ✓ %s\n", outcome.SummaryPath)
	}
}
