// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/searchbench/internal/config"
	"github.com/AleutianAI/searchbench/internal/report"
)

// execute runs the CLI and returns stdout.
func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := executeBoth(t, ctx, args...)
	return stdout, err
}

// executeBoth runs the CLI and returns stdout and stderr.
func executeBoth(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(append([]string{"--quiet"}, args...))
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// smallRun returns run arguments for a sub-second sweep writing into dir.
func smallRun(dir string, extra ...string) []string {
	args := []string{
		"run",
		"--sizes", "100,200",
		"--searches", "5",
		"--executions", "1",
		"--worst-case", "1",
		"--seed", "42",
		"--memory=false",
		"--color", "never",
		"--out", filepath.Join(dir, "trials.csv"),
		"--history-dir", filepath.Join(dir, "history"),
	}
	return append(args, extra...)
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestStrategiesCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, context.Background(), "strategies")
	require.NoError(t, err)
	for _, name := range []string{"binary-array", "bst", "linear-array", "linear-list"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "binary search over a sorted array")
}

func TestRunCommand_AllOutputs(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := execute(t, context.Background(), smallRun(dir,
		"--summary-out", filepath.Join(dir, "summary.csv"),
		"--json", filepath.Join(dir, "report.json"),
		"--metrics-file", filepath.Join(dir, "searchbench.prom"),
	)...)
	require.NoError(t, err)

	assert.Contains(t, out, "linear-array size=100")
	assert.Contains(t, out, "bst size=200")
	assert.Contains(t, out, "worst case:")
	assert.Contains(t, out, "Results saved to "+filepath.Join(dir, "trials.csv"))

	// 4 strategies x 2 sizes x (5 random + 1 worst-case) lookups plus header.
	rows := readRows(t, filepath.Join(dir, "trials.csv"))
	assert.Equal(t, report.TrialHeader, rows[0])
	assert.Len(t, rows, 1+4*2*6)

	summary := readRows(t, filepath.Join(dir, "summary.csv"))
	assert.Len(t, summary, 1+4*2)

	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var rep map[string]any
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.NotEmpty(t, rep["run_id"])

	prom, err := os.ReadFile(filepath.Join(dir, "searchbench.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "searchbench_search_comparisons_mean")
	assert.Contains(t, string(prom), "searchbench_comparison_speedup_ratio")
}

func TestRunCommand_SelectedStrategies(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := execute(t, context.Background(), smallRun(dir, "bst", "--no-history")...)
	require.NoError(t, err)
	assert.Contains(t, out, "bst size=100")
	assert.NotContains(t, out, "linear-list")

	rows := readRows(t, filepath.Join(dir, "trials.csv"))
	assert.Len(t, rows, 1+2*6)

	_, err = os.Stat(filepath.Join(dir, "history"))
	assert.True(t, os.IsNotExist(err), "--no-history must not create the store")
}

func TestRunCommand_UnknownStrategy(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := execute(t, context.Background(), smallRun(dir, "hash-table", "--no-history")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash-table")
}

func TestRunCommand_BadOutputPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := execute(t, context.Background(), smallRun(dir,
		"--out", filepath.Join(dir, "missing", "trials.csv"),
		"--no-history",
	)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening trial CSV")
}

func TestRunCommand_InvalidFlag(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := execute(t, context.Background(), smallRun(dir, "--searches", "0", "--no-history")...)
	require.ErrorIs(t, err, config.ErrInvalid)
	assert.Contains(t, err.Error(), "benchmark.searches")
}

func TestRunCommand_Cancelled(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := execute(t, ctx, smallRun(dir)...)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(dir, "trials.csv"))
	assert.NoError(t, statErr, "the trial CSV is created before the run starts")
}

func TestRunCommand_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	doc := `strategies: [binary-array]
benchmark:
  sizes: [64]
  searches: 3
  executions: 2
  worst_case_runs: 0
  seed: 9
  collect_memory: false
output:
  trial_csv: from-config.csv
  color: never
history:
  enabled: false
`
	require.NoError(t, os.WriteFile(config.DefaultFileName, []byte(doc), 0644))

	out, err := execute(t, context.Background(), "run")
	require.NoError(t, err)
	assert.Contains(t, out, "binary-array size=64")
	assert.NotContains(t, out, "worst case:")

	rows := readRows(t, filepath.Join(dir, "from-config.csv"))
	assert.Len(t, rows, 1+2*3)

	// Flags override the file.
	_, err = execute(t, context.Background(), "run", "--searches", "4", "--out", "flag.csv")
	require.NoError(t, err)
	assert.Len(t, readRows(t, filepath.Join(dir, "flag.csv")), 1+2*4)
}

func TestRunCommand_Trace(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	dir := t.TempDir()
	t.Chdir(dir)

	tracePath := filepath.Join(dir, "spans.json")
	_, err := execute(t, context.Background(), smallRun(dir, "bst", "--no-history", "--trace", tracePath)...)
	require.NoError(t, err)

	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "benchmark.Runner.Run")
	assert.Contains(t, string(data), "benchmark.Runner.runSize")
}

func TestRunCommand_TraceFromEnvironment(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")

	dir := t.TempDir()
	t.Chdir(dir)

	_, stderr, err := executeBoth(t, context.Background(), smallRun(dir, "bst", "--no-history")...)
	require.NoError(t, err)
	assert.Contains(t, stderr, "benchmark.Runner.Run")
}

func TestRunCommand_UnsupportedTraceEnvironment(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "otlp")

	dir := t.TempDir()
	t.Chdir(dir)

	_, stderr, err := executeBoth(t, context.Background(), smallRun(dir, "bst", "--no-history")...)
	require.NoError(t, err)
	assert.NotContains(t, stderr, "benchmark.Runner.Run")
}

var runIDPattern = regexp.MustCompile(`run ([0-9a-f-]{36})`)

func TestHistoryCommands(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	historyDir := filepath.Join(dir, "history")

	out, err := execute(t, context.Background(), "history", "list", "--history-dir", historyDir)
	require.NoError(t, err)
	assert.Contains(t, out, "No archived runs.")

	out, err = execute(t, context.Background(), smallRun(dir, "linear-array")...)
	require.NoError(t, err)
	m := runIDPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	runID := m[1]

	out, err = execute(t, context.Background(), "history", "list", "--history-dir", historyDir)
	require.NoError(t, err)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "100-200")

	out, err = execute(t, context.Background(), "history", "show", runID[:8], "--history-dir", historyDir, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"run_id": "`+runID+`"`)

	out, err = execute(t, context.Background(), "history", "show", runID, "--history-dir", historyDir)
	require.NoError(t, err)
	assert.Contains(t, out, "linear-array size=200")
	assert.Contains(t, out, "(seed 42)")

	out, err = execute(t, context.Background(), "history", "delete", runID, "--history-dir", historyDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+runID)

	_, err = execute(t, context.Background(), "history", "show", runID, "--history-dir", historyDir)
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := execute(t, context.Background(), "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+config.DefaultFileName)

	_, err = execute(t, context.Background(), "config", "init")
	assert.ErrorContains(t, err, "already exists")

	out, err = execute(t, context.Background(), "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# loaded from "+config.DefaultFileName)
	assert.Contains(t, out, "trial_csv: search_results.csv")
	assert.True(t, strings.Contains(out, "searches: 100"))
}

func TestConfigShow_RedactsToken(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	doc := "telemetry:\n  influx:\n    url: http://influx:8086\n    token: s3cret-token\n"
	require.NoError(t, os.WriteFile(config.DefaultFileName, []byte(doc), 0644))

	out, err := execute(t, context.Background(), "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "s3cret-token")
	assert.Contains(t, out, config.RedactedValue)
	assert.Contains(t, out, "url: http://influx:8086")
}

func TestRootCommand_BadConfigPath(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execute(t, context.Background(), "--config", "nope.yaml", "strategies")
	assert.Error(t, err)
}
