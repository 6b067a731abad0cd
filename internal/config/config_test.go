package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return dir, path
}

func clearEnv(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvSchema, "")
}

func TestLoadMainConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	_, path := writeConfig(t, `
input_dir: `+filepath.Join(dir, "in")+`
output_dir: `+filepath.Join(dir, "out")+`
input_archive_dir: `+filepath.Join(dir, "archive")+`
output_format: XLSX
schema: company
max_missing_roles: 1
transformation_rules:
  - field: currency
    actions:
      - type: uppercase
      - type: lookup
        lookup_table: {"€": "EUR"}
`)

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "xlsx", cfg.OutputFormat)
	assert.Equal(t, "company", cfg.Schema)
	assert.Equal(t, "combined_invoices.{ext}", cfg.OutputFileFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	require.Len(t, cfg.TransformationRules, 1)
	assert.Equal(t, "EUR", cfg.TransformationRules[0].Actions[1].LookupTable["€"])

	for _, d := range []string{"in", "out", "archive"} {
		assert.DirExists(t, filepath.Join(dir, d))
	}

	s, err := cfg.ResolveSchema()
	require.NoError(t, err)
	assert.Equal(t, "company", s.Name)
	assert.Equal(t, 1, s.MaxMissing)
}

func TestLoadMainConfigMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := LoadMainConfig("does-not-exist.yaml")
	require.NoError(t, err)

	assert.Equal(t, "./input", cfg.InputDir)
	assert.Equal(t, "csv", cfg.OutputFormat)
	assert.Equal(t, "evse", cfg.Schema)
	assert.Nil(t, cfg.MaxMissingRoles)
	assert.Empty(t, cfg.DatabaseURL)

	s, err := cfg.ResolveSchema()
	require.NoError(t, err)
	assert.Equal(t, 2, s.MaxMissing)
}

func TestLoadMainConfigEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvDatabaseURL, "postgres://localhost/invoices")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvSchema, "company")

	_, path := writeConfig(t, "schema: evse\nlog_level: error\n")

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/invoices", cfg.DatabaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "company", cfg.Schema)
}

func TestLoadMainConfigDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv(EnvSchema)
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("COMBINER_SCHEMA=company\n"), 0644))

	cfg, err := LoadMainConfig("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "company", cfg.Schema)
}

func TestLoadMainConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"schema", "schema: payroll\n", "unknown schema"},
		{"output format", "output_format: pdf\n", "unknown output_format"},
		{"max missing", "max_missing_roles: -1\n", "must not be negative"},
		{"log level", "log_level: loud\n", "unknown log_level"},
		{"log format", "log_format: xml\n", "unknown log_format"},
		{"rule field", "transformation_rules:\n  - actions: [{type: trim}]\n", "without field"},
		{"yaml", "schema: [\n", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			dir, path := writeConfig(t, tt.body)
			t.Chdir(dir)

			_, err := LoadMainConfig(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
