package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/datavet/datavet/config"
	"github.com/datavet/datavet/validate/result"
)

func sampleSummary() *result.RunSummary {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return result.Summarize("run-42", []*result.Result{
		{
			Name:        "orders count",
			Kind:        config.KindRowCount,
			Status:      result.Passed,
			SourceCount: result.Int64(100),
			TargetCount: result.Int64(100),
			StartedAt:   start,
			FinishedAt:  start.Add(time.Second),
		},
		{
			Name:         "users count",
			Kind:         config.KindRowCount,
			Status:       result.Error,
			ErrorKind:    "timeout",
			ErrorMessage: "context deadline exceeded",
			StartedAt:    start,
			FinishedAt:   start.Add(2 * time.Second),
		},
	}, start, start.Add(3*time.Second))
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf).Report(sampleSummary()))

	var decoded result.RunSummary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "run-42", decoded.RunID)
	require.Len(t, decoded.Results, 2)
	require.Equal(t, result.Error, decoded.Results[1].Status)
	require.Equal(t, "timeout", decoded.Results[1].ErrorKind)
}

func TestJSONReporterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "out.json")
	rep, err := NewJSON(path)
	require.NoError(t, err)
	require.NoError(t, rep.Report(sampleSummary()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "run-42")
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsoleWriter(&buf).Report(sampleSummary()))

	out := buf.String()
	require.Contains(t, out, "run-42")
	require.Contains(t, out, "orders count")
	require.Contains(t, out, "PASSED")
	require.Contains(t, out, "ERROR")
	// Failure detail section includes the error.
	require.Contains(t, out, "context deadline exceeded")
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	require.NoError(t, NewLog(logger).Report(sampleSummary()))

	out := buf.String()
	require.Contains(t, out, `"run_id":"run-42"`)
	require.Contains(t, out, `"validation":"orders count"`)
	require.Contains(t, out, "run complete")
}

type failingReporter struct{}

func (failingReporter) Report(*result.RunSummary) error {
	return errors.New("sink unavailable")
}

func TestGenerateIsolatesFailures(t *testing.T) {
	var buf bytes.Buffer
	ok := NewJSONWriter(&buf)

	// A broken reporter does not stop the others.
	Generate(zerolog.Nop(), []Reporter{failingReporter{}, ok}, sampleSummary())
	require.NotZero(t, buf.Len())
}

func TestFromConfig(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("defaults to console", func(t *testing.T) {
		reporters, err := FromConfig(nil, logger)
		require.NoError(t, err)
		require.Len(t, reporters, 1)
		require.IsType(t, &ConsoleReporter{}, reporters[0])
	})

	t.Run("builds configured kinds", func(t *testing.T) {
		disabled := false
		reporters, err := FromConfig([]config.ReporterSpec{
			{Kind: "console"},
			{Kind: "json", OutputPath: filepath.Join(t.TempDir(), "r.json")},
			{Kind: "log"},
			{Kind: "console", Enabled: &disabled},
		}, logger)
		require.NoError(t, err)
		require.Len(t, reporters, 3)
	})

	t.Run("unknown kind errors", func(t *testing.T) {
		_, err := FromConfig([]config.ReporterSpec{{Kind: "carrier-pigeon"}}, logger)
		require.ErrorContains(t, err, `unknown reporter kind "carrier-pigeon"`)
	})

	t.Run("cannot override built-ins", func(t *testing.T) {
		err := Register("json", func(config.ReporterSpec, zerolog.Logger) (Reporter, error) {
			return nil, nil
		})
		require.Error(t, err)
	})
}
