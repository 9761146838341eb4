// =============================================================================
// filingsync - Main Entry Point
// =============================================================================
//
// filingsync reconciles a filing-authority case export against an accounting
// platform export for one tax year and report category, and produces an
// import workbook, a change report and an exceptions report.
//
// USAGE:
//   filingsync reconcile   - Run one reconciliation from two files
//   filingsync validate    - Run the preflight checks only
//   filingsync serve       - Start the HTTP API
//   filingsync schemas     - Print the report category registry
//   filingsync version     - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Parsers, reconciliation engine, persistence, API
//   - pkg/           : Shared file management utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/filingsync/cmd"
)

// main is the entry point of the application.
func main() {
	cmd.Execute()
}
