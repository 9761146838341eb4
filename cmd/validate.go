// =============================================================================
// filingsync - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which runs the preflight checks
// on two input files without reconciling them.
//
// COMMAND USAGE:
//   filingsync validate --category annual --year 2024 \
//       --source-a idom.xlsx --source-b export.xlsx [--report issues.txt]
//
// EXIT STATUS:
//   0 when preflight found no errors (warnings are allowed), 1 otherwise.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ginjaninja78/filingsync/internal/runner"
	"github.com/ginjaninja78/filingsync/internal/validation"
	"github.com/spf13/cobra"
)

var validateFlags runFlags

// reportPath optionally receives the formatted preflight report.
var reportPath string

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the preflight checks on two input files",
	Long: `The validate command reads both inputs and checks them without reconciling:

  - Source A has its required columns and usable case numbers
  - Source B has the required headers for the category
  - Source B contains records for the requested tax year
  - The export is not suspiciously small
  - The expected match rate between the two files`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runValidate(ctx)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateFlags.register(validateCmd)
	validateCmd.Flags().StringVar(&reportPath, "report", "", "Also write the report to this file")
}

func runValidate(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(cfg)
	defer closeLog()

	opts, err := validateFlags.options(cfg)
	if err != nil {
		return err
	}

	report, err := runner.New(logger).Preflight(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Println("=== filingsync validate ===")
	fmt.Printf("Source A rows:       %d\n", report.SourceARows)
	fmt.Printf("Source B rows:       %d (%d in %d)\n", report.SourceBRows, report.SourceBYearRows, opts.TaxYear)
	fmt.Printf("Expected matches:    %d (%s%%)\n", report.ExpectedMatches, report.MatchRate.StringFixed(1))
	fmt.Println()
	fmt.Print(validation.FormatIssues(report))
	fmt.Println()

	if reportPath != "" {
		if err := validation.WriteReport(report, reportPath); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", reportPath)
	}

	if !report.IsValid {
		return fmt.Errorf("preflight found %d error(s)", report.ErrorCount)
	}
	fmt.Println("✓ Inputs are ready to reconcile")
	return nil
}
