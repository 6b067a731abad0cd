package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC)

func newTestManager(t *testing.T) *FileManager {
	t.Helper()
	root := t.TempDir()
	fm := NewFileManager(
		filepath.Join(root, "input"),
		filepath.Join(root, "output"),
		filepath.Join(root, "input_archive"),
		true,
	)
	fm.Now = func() time.Time { return fixedNow }
	require.NoError(t, fm.EnsureDirectories())
	return fm
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestDiscoverInputFiles(t *testing.T) {
	fm := newTestManager(t)
	for _, name := range []string{"b.xlsx", "a.csv", "C.XLS", "notes.txt", "d.csv.bak"} {
		touch(t, filepath.Join(fm.InputDir, name))
	}
	require.NoError(t, os.Mkdir(filepath.Join(fm.InputDir, "dir.csv"), 0755))

	files, err := fm.DiscoverInputFiles([]string{".csv", ".xlsx", ".xls"})
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"C.XLS", "a.csv", "b.xlsx"}, names)
}

func TestDiscoverInputFilesMissingDir(t *testing.T) {
	fm := &FileManager{InputDir: filepath.Join(t.TempDir(), "missing")}
	_, err := fm.DiscoverInputFiles([]string{".csv"})
	assert.ErrorContains(t, err, "failed to scan input directory")
}

func TestArchiveInputFile(t *testing.T) {
	fm := newTestManager(t)
	src := filepath.Join(fm.InputDir, "a.csv")
	touch(t, src)

	dst, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "a.csv"), dst)
	assert.NoFileExists(t, src)
	assert.FileExists(t, dst)
}

func TestArchiveInputFileTimestampSubdirs(t *testing.T) {
	fm := newTestManager(t)
	fm.UseTimestampSubdirs = true
	src := filepath.Join(fm.InputDir, "a.csv")
	touch(t, src)

	dst, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "2024", "01", "15", "a.csv"), dst)
}

func TestArchiveDisabled(t *testing.T) {
	fm := newTestManager(t)
	fm.ArchiveOnSuccess = false
	src := filepath.Join(fm.InputDir, "a.csv")
	touch(t, src)

	dst, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.Equal(t, src, dst)
	assert.FileExists(t, src)
}

func TestGenerateOutputFileName(t *testing.T) {
	tests := []struct {
		name   string
		format string
		params map[string]string
		want   string
	}{
		{"default", "combined_invoices.{ext}", map[string]string{"ext": "csv"}, "combined_invoices.csv"},
		{"schema and timestamp", "{schema}_{timestamp}.{ext}", map[string]string{"schema": "evse", "ext": "xml"}, "evse_20240115_143022.xml"},
		{"extension appended", "combined_{date}", map[string]string{"ext": "xlsx"}, "combined_20240115.xlsx"},
		{"no params", "out.csv", nil, "out.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateOutputFileName(tt.format, tt.params, fixedNow))
		})
	}
}

func TestGenerateOutputFileNameUUID(t *testing.T) {
	name := GenerateOutputFileName("{uuid}.{ext}", map[string]string{"ext": "csv"}, fixedNow)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.csv$`), name)
}

func TestOutputPath(t *testing.T) {
	fm := newTestManager(t)
	got := fm.OutputPath("{schema}.{ext}", map[string]string{"schema": "company", "ext": "csv"})
	assert.Equal(t, filepath.Join(fm.OutputDir, "company.csv"), got)
}

func TestWriteErrorLog(t *testing.T) {
	fm := newTestManager(t)

	path, err := fm.WriteErrorLog(nil)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = fm.WriteErrorLog([]ErrorLogEntry{{
		Timestamp:    fixedNow,
		FileName:     "broken.csv",
		ErrorType:    "DecodeFailure",
		ErrorMessage: "Error processing broken.csv: could not decode",
		Stage:        "received",
	}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.OutputDir, "error_log_20240115_143022.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, "Failed Files: 1")
	assert.Contains(t, s, "  File:       broken.csv\n")
	assert.Contains(t, s, "  Error Type: DecodeFailure\n")
	assert.Contains(t, s, "  Stage:      received\n")
}
