package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/aescanero/sparkcopilot/internal/pipeline"
)

// executeCommand runs a fresh command tree with the given args and captures
// stdout/stderr.
func executeCommand(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	root := NewRootCmd("1.2.3", "today")
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// writeTestFile creates a temporary file with the given content and returns its path.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected ExitError, got %T: %v", err, err)
	assert.Equal(t, code, exitErr.Code, exitErr.Message)
}

const jobYAML = `job_id: job-1
job_name: nightly
source_type: delta
table_name: events
partition_count: 5
execution_time_ms: 120000
cpu_utilization: 0.8
memory_used_mb: 4096
`

func TestAnalyze_YAMLOutput(t *testing.T) {
	path := writeTestFile(t, "job.yaml", jobYAML)

	out, _, err := executeCommand(t, "", "analyze", "-f", path)
	require.NoError(t, err)

	assert.Contains(t, out, "job_id: job-1")
	assert.Contains(t, out, "partition_strategy: under-partitioned")
	assert.Contains(t, out, "- Increase partition count for better parallelism")
	assert.Contains(t, out, "source_type: delta")
}

func TestAnalyze_JSONFromStdin(t *testing.T) {
	in := `{"job_id": "job-2", "partition_count": 50, "partition_sizes": [900, 10, 10, 10, 10]}`

	out, _, err := executeCommand(t, in, "analyze", "-f", "-", "-o", "json", "--skew-routing")
	require.NoError(t, err)

	var got report
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "job-2", got.JobID)
	assert.Greater(t, got.SkewRatio, 0.5)
	assert.Contains(t, got.Recommendations, "Repartition data with even distribution")
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		code int
	}{
		{"invalid spec", "job_id: job-1\ncpu_utilization: 2\n", exitValidation},
		{"unknown field", "job_id: job-1\npartitions: 5\n", exitInputParse},
		{"malformed document", "job_id: [job-1\n", exitInputParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestFile(t, "job.yaml", tt.file)
			_, _, err := executeCommand(t, "", "analyze", "-f", path)
			requireExitCode(t, err, tt.code)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, _, err := executeCommand(t, "", "analyze", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
		requireExitCode(t, err, exitFileNotFound)
	})

	t.Run("unknown output format", func(t *testing.T) {
		path := writeTestFile(t, "job.yaml", jobYAML)
		_, _, err := executeCommand(t, "", "analyze", "-f", path, "-o", "xml")
		requireExitCode(t, err, exitValidation)
	})

	t.Run("file flag is required", func(t *testing.T) {
		_, _, err := executeCommand(t, "", "analyze")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "file")
	})
}

func TestGraph_Text(t *testing.T) {
	out, _, err := executeCommand(t, "", "graph", "--skew-routing")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "graph spark_optimization (entry: metadata_agent)\n"))
	assert.Contains(t, out, "skew_agent --[skewed]--> mitigation_agent")

	out, _, err = executeCommand(t, "", "graph")
	require.NoError(t, err)
	assert.NotContains(t, out, "mitigation_agent -->")
}

func TestGraph_JSON(t *testing.T) {
	out, _, err := executeCommand(t, "", "graph", "--format", "json")
	require.NoError(t, err)

	var got struct {
		Name        string           `json:"name"`
		Entry       string           `json:"entry"`
		Transitions []map[string]any `json:"transitions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, pipeline.Name, got.Name)
	assert.Len(t, got.Transitions, 6)

	_, _, err = executeCommand(t, "", "graph", "--format", "dot")
	requireExitCode(t, err, exitValidation)
}

func TestVersion(t *testing.T) {
	out, _, err := executeCommand(t, "", "--version")
	require.NoError(t, err)
	assert.Equal(t, "sparkcopilot version 1.2.3 (built today)\n", out)
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		level   string
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{"debug", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"info", zapcore.InfoLevel, zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"error", zapcore.ErrorLevel, zapcore.WarnLevel},
		{"verbose", zapcore.InfoLevel, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := initLogger(tt.level)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.muted))
		})
	}
}
