package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionsCSV = "EVSE ID,Session ID,Currency,Net Price,Energy kWh,Duration Min\n" +
	"DE*ABC*E0001,sess-abc-123-xyz,EUR,12.50,22.4,95\n" +
	"DE*ABC*E0002,sess-abc-124-xyz,EUR,8.10,14.0,60\n"

type workspace struct {
	root, input, output, archive, config, metrics string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("COMBINER_SCHEMA", "")
	t.Setenv("LOG_LEVEL", "")

	root := t.TempDir()
	ws := workspace{
		root:    root,
		input:   filepath.Join(root, "input"),
		output:  filepath.Join(root, "output"),
		archive: filepath.Join(root, "archive"),
		config:  filepath.Join(root, "config.yaml"),
		metrics: filepath.Join(root, "combiner.prom"),
	}
	cfg := fmt.Sprintf(`input_dir: %q
output_dir: %q
input_archive_dir: %q
archive_on_success: true
output_file_format: "combined.{ext}"
metrics_file: %q
log_level: error
`, ws.input, ws.output, ws.archive, ws.metrics)
	require.NoError(t, os.WriteFile(ws.config, []byte(cfg), 0644))
	require.NoError(t, os.MkdirAll(ws.input, 0755))
	return ws
}

// execute runs the root command with fresh flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	schemaName, dryRun, outputFormat, outputPath = "", false, "", ""
	queryAll, queryFrom, queryTo, queryKey, queryIdentifier = false, "", "", "", ""
	verbose = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestProcessCommand(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.input, "a_sessions.csv"), []byte(sessionsCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.input, "b_broken.csv"), []byte("a,b\n\x81,c\n"), 0644))

	out, err := execute(t, "--config", ws.config, "process")
	require.NoError(t, err)

	assert.Contains(t, out, "[1/2] ✓ a_sessions.csv: 2 row(s), 2 inserted, 0 skipped")
	assert.Contains(t, out, "[2/2] ✗ Error processing b_broken.csv:")
	assert.Contains(t, out, "Errors:          1")

	data, err := os.ReadFile(filepath.Join(ws.output, "combined.csv"))
	require.NoError(t, err)
	assert.Equal(t,
		"evse_id,session_id,currency,price\n"+
			"DE*ABC*E0001,sess-abc-123-xyz,EUR,12.5\n"+
			"DE*ABC*E0002,sess-abc-124-xyz,EUR,8.1\n",
		string(data))

	assert.FileExists(t, filepath.Join(ws.archive, "a_sessions.csv"))
	assert.NoFileExists(t, filepath.Join(ws.input, "a_sessions.csv"))
	assert.FileExists(t, filepath.Join(ws.input, "b_broken.csv"))

	logs, err := filepath.Glob(filepath.Join(ws.output, "error_log_*.txt"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	metrics, err := os.ReadFile(ws.metrics)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `combiner_rows_total{result="exported"} 2`)
	assert.Contains(t, string(metrics), `combiner_files_total{outcome="failed"} 1`)
}

func TestProcessCommandUnreadableInput(t *testing.T) {
	ws := newWorkspace(t)
	good := filepath.Join(ws.input, "a_sessions.csv")
	require.NoError(t, os.WriteFile(good, []byte(sessionsCSV), 0644))
	missing := filepath.Join(ws.input, "b_removed.csv")

	out, err := execute(t, "--config", ws.config, "process", missing, good)
	require.NoError(t, err)

	assert.Contains(t, out, "[1/2] ✗ Error processing b_removed.csv:")
	assert.Contains(t, out, "[2/2] ✓ a_sessions.csv: 2 row(s), 2 inserted, 0 skipped")
	assert.Contains(t, out, "Errors:          1")
	assert.FileExists(t, filepath.Join(ws.output, "combined.csv"))
	assert.FileExists(t, filepath.Join(ws.archive, "a_sessions.csv"))

	logs, err := filepath.Glob(filepath.Join(ws.output, "error_log_*.txt"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	data, err := os.ReadFile(logs[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "ReadFailure")
}

func TestProcessCommandDryRunAndFlags(t *testing.T) {
	ws := newWorkspace(t)
	src := filepath.Join(ws.root, "suppliers.csv")
	require.NoError(t, os.WriteFile(src, []byte("Company,Currency,Price\n\"Acme Corporation, Inc\",USD,99\n"), 0644))
	target := filepath.Join(ws.root, "out.xml")

	out, err := execute(t, "--config", ws.config, "process", src,
		"--schema", "company", "--format", "XML", "--output", target, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<company_short_name>Acme</company_short_name>")
	assert.FileExists(t, filepath.Join(ws.root, "out.xsd"))
	assert.FileExists(t, src)
}

func TestProcessCommandEmptyInput(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "--config", ws.config, "process")
	require.NoError(t, err)
	assert.Contains(t, out, "No .csv, .xlsx or .xls files found")
}

func TestProcessCommandRejectsFormat(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.input, "a.csv"), []byte(sessionsCSV), 0644))

	_, err := execute(t, "--config", ws.config, "process", "--format", "pdf")
	assert.ErrorContains(t, err, `unknown output format "pdf"`)
}

func TestDetectCommand(t *testing.T) {
	ws := newWorkspace(t)
	path := filepath.Join(ws.root, "numbers.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c,d\n1,2,3,4\n5,6,7,8\n"), 0644))

	out, err := execute(t, "--config", ws.config, "detect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "File:      numbers.csv")
	assert.Contains(t, out, "Detection: failed")

	path = filepath.Join(ws.root, "sessions.csv")
	require.NoError(t, os.WriteFile(path, []byte(sessionsCSV), 0644))

	out, err = execute(t, "--config", ws.config, "detect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Detection: ok (0 of 4 roles undetected, at most 2 allowed)")
}

func TestDetectCommandRejectsUnsupported(t *testing.T) {
	ws := newWorkspace(t)

	_, err := execute(t, "--config", ws.config, "detect", filepath.Join(ws.root, "notes.txt"))
	assert.ErrorContains(t, err, `unsupported file type ".txt"`)
}

func TestQueryCommandRequiresSelection(t *testing.T) {
	ws := newWorkspace(t)

	_, err := execute(t, "--config", ws.config, "query")
	assert.Error(t, err)
}

func TestQueryCommandMemoryStore(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "--config", ws.config, "query", "--all")
	require.NoError(t, err)
	assert.Equal(t, "id,evse_id,session_id,currency,price,file_name,processed_date\n", out)
}

func TestParseRange(t *testing.T) {
	start, end, err := parseRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local), start)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.Local), end)

	start, end, err = parseRange("2024-01-01T10:00:00Z", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), start.UTC())
	assert.Equal(t, maxDate, end)

	start, _, err = parseRange("", "2024-02-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, minDate, start)

	_, _, err = parseRange("yesterday", "")
	assert.ErrorContains(t, err, "invalid --from")

	_, _, err = parseRange("2024-02-01", "2024-01-01")
	assert.ErrorContains(t, err, "--to is before --from")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Invoice Combiner")
	assert.Contains(t, out, "Version:    "+Version)
}
