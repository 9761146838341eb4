// =============================================================================
// filingsync - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for reconciliation runs:
//   - Run-scoped upload and output directories
//   - Upload storage with a size limit
//   - Output file naming
//   - Volume write probe
//   - Processing summary log
//
// DIRECTORY LAYOUT:
//   <data_dir>/runs/<run id>/uploads/   source A and source B files
//   <data_dir>/runs/<run id>/outputs/   generated workbooks
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUploadTooLarge is returned when an upload exceeds the size limit.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles run-scoped file storage.
type FileManager struct {
	// DataDir is the root of the storage volume.
	DataDir string
}

// NewFileManager creates a new FileManager rooted at dataDir.
func NewFileManager(dataDir string) *FileManager {
	return &FileManager{DataDir: dataDir}
}

// RunDir returns the directory holding everything for one run.
func (fm *FileManager) RunDir(runID string) string {
	return filepath.Join(fm.DataDir, "runs", runID)
}

// UploadDir returns the directory for a run's input files.
func (fm *FileManager) UploadDir(runID string) string {
	return filepath.Join(fm.RunDir(runID), "uploads")
}

// OutputDir returns the directory for a run's generated workbooks.
func (fm *FileManager) OutputDir(runID string) string {
	return filepath.Join(fm.RunDir(runID), "outputs")
}

// EnsureRunDirs creates the upload and output directories of a run.
//
// RETURNS:
//   - An error if any directory cannot be created.
func (fm *FileManager) EnsureRunDirs(runID string) error {
	for _, dir := range []string{fm.UploadDir(runID), fm.OutputDir(runID)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// UPLOADS
// =============================================================================

// SaveUpload stores an uploaded file for a run.
//
// PARAMETERS:
//   - runID: The run the file belongs to.
//   - role: The file role, used as the stored name prefix.
//   - name: The client-supplied file name. Only its base name and
//           extension are kept.
//   - r: The file content.
//   - maxBytes: The size limit. Zero or less means no limit.
//
// RETURNS:
//   - The stored path and its size in bytes.
//   - ErrUploadTooLarge if the content exceeds maxBytes. Nothing new is
//     left on disk in that case and an earlier upload of the role is kept.
//
// A second upload with the same role replaces the first once it has been
// written in full.
func (fm *FileManager) SaveUpload(runID, role, name string, r io.Reader, maxBytes int64) (string, int64, error) {
	if err := fm.EnsureRunDirs(runID); err != nil {
		return "", 0, err
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	dir := fm.UploadDir(runID)
	dest := filepath.Join(dir, role+ext)

	// Content lands in a hidden temp file first; the accepted upload of the
	// same role stays in place until the new one is complete.
	file, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	tmp := file.Name()

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	written, copyErr := io.Copy(file, src)
	closeErr := file.Close()

	switch {
	case copyErr != nil:
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to write upload: %w", copyErr)
	case closeErr != nil:
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to write upload: %w", closeErr)
	case maxBytes > 0 && written > maxBytes:
		os.Remove(tmp)
		return "", 0, fmt.Errorf("%w: more than %d bytes", ErrUploadTooLarge, maxBytes)
	}

	// Replace earlier uploads of the same role regardless of extension.
	old, _ := filepath.Glob(filepath.Join(dir, role+".*"))
	for _, path := range old {
		if path != dest {
			os.Remove(path)
		}
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to store upload: %w", err)
	}
	return dest, written, nil
}

// RemoveRun deletes every file stored for a run.
func (fm *FileManager) RemoveRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("empty run id")
	}
	if err := os.RemoveAll(fm.RunDir(runID)); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}
	return nil
}

// Writable checks that the data directory accepts writes by creating and
// removing a probe file.
func (fm *FileManager) Writable() error {
	if err := os.MkdirAll(fm.DataDir, 0755); err != nil {
		return fmt.Errorf("data directory not available: %w", err)
	}
	probe, err := os.CreateTemp(fm.DataDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("data directory not writable: %w", err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates an output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {kind}      - Output kind (import, change_report, exceptions)
//               {category}  - Report category
//               {year}      - Tax year
//   - params: A map of placeholder values.
//
// RETURNS:
//   - The generated file name, always ending in .xlsx.
//
// EXAMPLE:
//   format: "{kind}_{category}_{year}_{timestamp}.xlsx"
//   params: {"kind": "import", "category": "financial", "year": "2024"}
//   output: "import_financial_2024_20250115_143022.xlsx"
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), ".xlsx") {
		result += ".xlsx"
	}
	return result
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// RunSummary contains summary information about one reconciliation run.
type RunSummary struct {
	StartTime   time.Time
	EndTime     time.Time
	Category    string
	TaxYear     int
	SourceAFile string
	SourceBFile string
	Counts      []SummaryLine
	Warnings    []string
	OutputFiles []string
}

// SummaryLine is one labelled count in a summary.
type SummaryLine struct {
	Label string
	Value int
}

// WriteSummaryLog writes a run summary to a text file.
//
// PARAMETERS:
//   - summary: The run summary.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary RunSummary, outputDir string) (string, error) {
	timestamp := summary.EndTime.Format("20060102_150405")
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("run_summary_%s.txt", timestamp))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	rule := strings.Repeat("=", 80) + "\n"
	fmt.Fprintf(writer, "filingsync - Run Summary\n%s\n", rule)
	fmt.Fprintf(writer, "Run Information:\n"+
		"  Category:       %s\n"+
		"  Tax Year:       %d\n"+
		"  Source A:       %s\n"+
		"  Source B:       %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n",
		summary.Category,
		summary.TaxYear,
		summary.SourceAFile,
		summary.SourceBFile,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String())

	writer.WriteString("Statistics:\n")
	for _, line := range summary.Counts {
		fmt.Fprintf(writer, "  %-20s %d\n", line.Label+":", line.Value)
	}
	writer.WriteString("\n")

	if len(summary.Warnings) > 0 {
		writer.WriteString("Warnings:\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(writer, "  - %s\n", w)
		}
		writer.WriteString("\n")
	}

	if len(summary.OutputFiles) > 0 {
		writer.WriteString("Output Files:\n")
		for _, f := range summary.OutputFiles {
			fmt.Fprintf(writer, "  %s\n", f)
		}
		writer.WriteString("\n")
	}

	writer.WriteString(rule + "End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetFileSize returns the size of a file in bytes.
func GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
