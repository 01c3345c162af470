package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/kano/cmd/cli/commands"
	"github.com/inferloop/kano/internal/privacy"
)

const peopleCSV = `Name,Age,Income
Ann,25,40000
Bob,30,45000
Cid,35,50000
Dee,40,55000
Eve,45,60000
Fay,50,65000
Gus,55,70000
Hal,60,75000
`

// Integration tests for CLI commands
// These tests run the actual CLI commands against temporary files

func writeInput(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeConfig points the CLI at an empty config so the user's own file is
// never read.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: error\n"), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	rootCmd := createRootCommand()
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIIntegrationAnonymize(t *testing.T) {
	tempDir := t.TempDir()
	input := writeInput(t, tempDir, peopleCSV)
	cfg := writeConfig(t, tempDir)

	tests := []struct {
		name     string
		args     []string
		wantErr  bool
		validate func(t *testing.T, stdout, stderr string)
	}{
		{
			name: "Generalized table to file",
			args: []string{
				"anonymize", "--config", cfg,
				"--input", input,
				"--columns", "Age,Income",
				"--k", "2",
				"--output", filepath.Join(tempDir, "generalized.csv"),
			},
			validate: func(t *testing.T, stdout, stderr string) {
				assert.Contains(t, stdout, "satisfied=true")
				assert.Contains(t, stdout, "Loss: 4.0000")

				data, err := os.ReadFile(filepath.Join(tempDir, "generalized.csv"))
				require.NoError(t, err)
				lines := strings.Split(strings.TrimSpace(string(data)), "\n")
				require.Len(t, lines, 9)
				assert.Equal(t, `"Name","Age","Income"`, lines[0])
				assert.Equal(t, `"Ann","25-33","40000-48750"`, lines[1])
			},
		},
		{
			name: "Grouped output as JSON",
			args: []string{
				"anonymize", "--config", cfg,
				"-i", input,
				"-c", "Age", "-c", "Income",
				"--format", "json",
				"--output", filepath.Join(tempDir, "generalized.json"),
				"--grouped-output", filepath.Join(tempDir, "grouped.json"),
				"--suppress",
			},
			validate: func(t *testing.T, stdout, stderr string) {
				data, err := os.ReadFile(filepath.Join(tempDir, "grouped.json"))
				require.NoError(t, err)

				var records []map[string]string
				require.NoError(t, json.Unmarshal(data, &records))
				require.Len(t, records, 4)
				assert.Equal(t, "25-33", records[0]["Age"])
				assert.Equal(t, "2", records[0]["count"])
			},
		},
		{
			name: "Table to stdout keeps the summary on stderr",
			args: []string{
				"anonymize", "--config", cfg,
				"--input", input,
				"--columns", "Age",
			},
			validate: func(t *testing.T, stdout, stderr string) {
				assert.True(t, strings.HasPrefix(stdout, `"Name","Age","Income"`))
				assert.NotContains(t, stdout, "Loss:")
				assert.Contains(t, stderr, "Loss:")
			},
		},
		{
			name: "Unknown column",
			args: []string{
				"anonymize", "--config", cfg,
				"--input", input,
				"--columns", "Height",
			},
			wantErr: true,
		},
		{
			name: "Non-numeric column",
			args: []string{
				"anonymize", "--config", cfg,
				"--input", input,
				"--columns", "Name",
			},
			wantErr: true,
		},
		{
			name: "Invalid k",
			args: []string{
				"anonymize", "--config", cfg,
				"--input", input,
				"--columns", "Age",
				"--k", "0",
			},
			wantErr: true,
		},
		{
			name: "Zero max steps",
			args: []string{
				"anonymize", "--config", cfg,
				"--input", input,
				"--columns", "Age",
				"--max-steps", "0",
			},
			wantErr: true,
		},
		{
			name: "Strict fails when k cannot be met",
			args: []string{
				"anonymize", "--config", cfg,
				"--input", input,
				"--columns", "Age",
				"--k", "9",
				"--output", filepath.Join(tempDir, "strict.csv"),
				"--strict",
			},
			wantErr: true,
		},
		{
			name: "Missing input flag",
			args: []string{
				"anonymize", "--config", cfg,
				"--columns", "Age",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, err := execute(t, tt.args...)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			if tt.validate != nil {
				tt.validate(t, stdout, stderr)
			}
		})
	}
}

func TestCLIIntegrationInspect(t *testing.T) {
	tempDir := t.TempDir()
	input := writeInput(t, tempDir, peopleCSV)
	cfg := writeConfig(t, tempDir)

	t.Run("table", func(t *testing.T) {
		stdout, _, err := execute(t, "inspect", "--config", cfg, "--input", input)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Rows: 8")
		assert.Contains(t, stdout, "categorical")
		assert.Contains(t, stdout, "40000")
	})

	t.Run("json", func(t *testing.T) {
		stdout, _, err := execute(t, "inspect", "--config", cfg, "--input", input, "--format", "json")
		require.NoError(t, err)

		var report commands.InspectReport
		require.NoError(t, json.Unmarshal([]byte(stdout), &report))
		assert.Equal(t, 8, report.Rows)
		assert.Equal(t, []string{"Age", "Income"}, report.NumericColumns)
		require.Len(t, report.Columns, 3)
		require.NotNil(t, report.Columns[1].Min)
		assert.Equal(t, 25.0, *report.Columns[1].Min)
		assert.Equal(t, 60.0, *report.Columns[1].Max)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := execute(t, "inspect", "--config", cfg, "--input", filepath.Join(tempDir, "absent.csv"))
		assert.Error(t, err)
	})
}

func TestCLIIntegrationProfile(t *testing.T) {
	tempDir := t.TempDir()
	input := writeInput(t, tempDir, peopleCSV)
	cfg := writeConfig(t, tempDir)

	stdout, _, err := execute(t, "profile", "--config", cfg, "--input", input, "--max-steps", "3", "--format", "json")
	require.NoError(t, err)

	var steps []privacy.SweepStep
	require.NoError(t, json.Unmarshal([]byte(stdout), &steps))
	require.Len(t, steps, 3)
	assert.Equal(t, 1, steps[0].NumBins)
	assert.Equal(t, 2, steps[1].NumBins)
	assert.Equal(t, 4, steps[2].NumBins)
	assert.True(t, steps[0].SatisfiesK)
	assert.Equal(t, 8, steps[0].MinGroupSize)

	stdout, _, err = execute(t, "profile", "--config", cfg, "--input", input, "--columns", "Age", "--max-steps", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2-ANONYMOUS")
}

func TestCLIVersion(t *testing.T) {
	stdout, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "0.1.0")
}
