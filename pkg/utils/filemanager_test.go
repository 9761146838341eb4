package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveUpload(t *testing.T) {
	fm := NewFileManager(t.TempDir())

	path, size, err := fm.SaveUpload("run-1", "source_a_upload", "../../IDOM.XLSX", strings.NewReader("abc"), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
	assert.Equal(t, filepath.Join(fm.UploadDir("run-1"), "source_a_upload.xlsx"), path)

	// Same role replaces the earlier file even with another extension.
	path2, _, err := fm.SaveUpload("run-1", "source_a_upload", "idom.csv", strings.NewReader("x,y"), 10)
	require.NoError(t, err)
	assert.False(t, FileExists(path))
	assert.True(t, FileExists(path2))
	assert.DirExists(t, fm.OutputDir("run-1"))
}

func TestSaveUploadTooLarge(t *testing.T) {
	fm := NewFileManager(t.TempDir())

	_, _, err := fm.SaveUpload("run-1", "source_b_upload", "b.xlsx", strings.NewReader("0123456789"), 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUploadTooLarge))

	entries, err := os.ReadDir(fm.UploadDir("run-1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveUploadRejectedReplacementKeepsAccepted(t *testing.T) {
	fm := NewFileManager(t.TempDir())

	first, _, err := fm.SaveUpload("run-1", "source_a", "a.xlsx", strings.NewReader("ok"), 10)
	require.NoError(t, err)

	_, _, err = fm.SaveUpload("run-1", "source_a", "a.csv", strings.NewReader(strings.Repeat("x", 50)), 10)
	require.ErrorIs(t, err, ErrUploadTooLarge)

	assert.True(t, FileExists(first))
	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))

	entries, err := os.ReadDir(fm.UploadDir("run-1"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp file is left behind")
	assert.Equal(t, "source_a.xlsx", entries[0].Name())
}

func TestSaveUploadSameNameOverwrites(t *testing.T) {
	fm := NewFileManager(t.TempDir())

	_, _, err := fm.SaveUpload("run-1", "source_b", "b.xlsx", strings.NewReader("one"), 0)
	require.NoError(t, err)
	path, size, err := fm.SaveUpload("run-1", "source_b", "B.XLSX", strings.NewReader("second"), 0)
	require.NoError(t, err)

	assert.Equal(t, int64(6), size)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestRemoveRunAndWritable(t *testing.T) {
	fm := NewFileManager(filepath.Join(t.TempDir(), "volume"))
	require.NoError(t, fm.Writable())

	require.NoError(t, fm.EnsureRunDirs("run-2"))
	require.NoError(t, fm.RemoveRun("run-2"))
	assert.NoDirExists(t, fm.RunDir("run-2"))
	assert.Error(t, fm.RemoveRun(""))
}

func TestGenerateOutputFileName(t *testing.T) {
	name := GenerateOutputFileName("{kind}_{category}_{year}", map[string]string{
		"kind": "import", "category": "financial", "year": "2024",
	})
	assert.Equal(t, "import_financial_2024.xlsx", name)

	a := GenerateOutputFileName("{kind}_{uuid}.xlsx", map[string]string{"kind": "exceptions"})
	b := GenerateOutputFileName("{kind}_{uuid}.xlsx", map[string]string{"kind": "exceptions"})
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "exceptions_"))
}

func TestWriteSummaryLog(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	path, err := WriteSummaryLog(RunSummary{
		StartTime:   start,
		EndTime:     start.Add(2 * time.Second),
		Category:    "annual",
		TaxYear:     2024,
		Counts:      []SummaryLine{{"Matched", 7}},
		Warnings:    []string{"low match rate"},
		OutputFiles: []string{"import.xlsx"},
	}, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Tax Year:       2024")
	assert.Contains(t, text, "Matched:")
	assert.Contains(t, text, "- low match rate")
	assert.Contains(t, text, "Duration:       2s")

	size, err := GetFileSize(path)
	require.NoError(t, err)
	assert.Positive(t, size)
}
