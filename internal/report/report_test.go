// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/searchbench/internal/benchmark"
)

func sampleTrial() benchmark.Trial {
	return benchmark.Trial{
		Strategy:    "bst",
		Size:        1000,
		Execution:   2,
		Search:      7,
		Key:         512,
		Position:    9,
		Found:       true,
		Comparisons: 10,
		Elapsed:     1500 * time.Nanosecond,
		MemoryBytes: 24000,
	}
}

func sampleSummary() *benchmark.SizeSummary {
	return &benchmark.SizeSummary{
		RunID:       "run-1",
		Strategy:    "linear-array",
		Size:        1000,
		Trials:      300,
		Found:       150,
		FoundRate:   0.5,
		Comparisons: benchmark.Moments{Mean: 750.5, StdDev: 250.25},
		Seconds:     benchmark.Moments{Mean: 0.000002, StdDev: 0.000001},
		Memory:      benchmark.Moments{Mean: 4000},
		Latency:     benchmark.LatencyStats{P50: 1800, P99: 4000},
		WorstCase: &benchmark.WorstCaseSummary{
			Key:         1001,
			Runs:        3,
			Comparisons: benchmark.Moments{Mean: 1000, StdDev: 0.5},
			Seconds:     benchmark.Moments{Mean: 0.000004, StdDev: 0.000002},
		},
	}
}

func readCSV(t *testing.T, data string) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVRecorder(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewCSVRecorder(&buf)
	require.NoError(t, err)

	require.NoError(t, rec.RecordTrial(sampleTrial()))
	worst := sampleTrial()
	worst.WorstCase, worst.Execution, worst.Found, worst.Position = true, 0, false, -1
	require.NoError(t, rec.RecordTrial(worst))
	require.NoError(t, rec.RecordSummary(sampleSummary()))
	require.NoError(t, rec.Close())

	rows := readCSV(t, buf.String())
	require.Len(t, rows, 3)
	assert.Equal(t, TrialHeader, rows[0])
	assert.Equal(t, []string{"bst", "1000", "2", "7", "false", "512", "9", "true", "10", "1500", "24000"}, rows[1])
	assert.Equal(t, []string{"bst", "1000", "0", "7", "true", "512", "-1", "false", "10", "1500", "24000"}, rows[2])
	assert.Equal(t, 2, rec.Rows())
}

func TestCSVRecorder_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewCSVRecorder(&buf)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(TrialHeader, ",")+"\n", buf.String())
}

func TestCSVRecorder_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewCSVRecorder(&buf)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				assert.NoError(t, rec.RecordTrial(sampleTrial()))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, rec.Flush())

	rows := readCSV(t, buf.String())
	assert.Len(t, rows, 1+8*200)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCSVRecorder_WriteError(t *testing.T) {
	_, err := NewCSVRecorder(failingWriter{})
	assert.ErrorContains(t, err, "disk full")
}

func TestCreateCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search_results.csv")

	rec, err := CreateCSV(path)
	require.NoError(t, err)
	require.NoError(t, rec.RecordTrial(sampleTrial()))
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close(), "Close must be idempotent")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, string(data)), 2)
}

func TestCreateCSV_BadPath(t *testing.T) {
	_, err := CreateCSV(filepath.Join(t.TempDir(), "missing", "out.csv"))
	assert.Error(t, err)
}

func TestWriteSummaries(t *testing.T) {
	noWorst := sampleSummary()
	noWorst.Strategy = "bst"
	noWorst.WorstCase = nil

	var buf bytes.Buffer
	require.NoError(t, WriteSummaries(&buf, []*benchmark.SizeSummary{sampleSummary(), noWorst}))

	rows := readCSV(t, buf.String())
	require.Len(t, rows, 3)
	assert.Equal(t, SummaryHeader, rows[0])

	assert.Equal(t, "linear-array", rows[1][0])
	assert.Equal(t, "750.5", rows[1][5])
	assert.Equal(t, "250.25", rows[1][6])
	assert.Equal(t, "1800", rows[1][11])
	assert.Equal(t, "1001", rows[1][13])
	assert.Equal(t, "1000", rows[1][14])

	assert.Equal(t, "bst", rows[2][0])
	assert.Equal(t, []string{"", "", ""}, rows[2][13:])
}

func TestWriteSummariesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	require.NoError(t, WriteSummariesFile(path, []*benchmark.SizeSummary{sampleSummary()}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, string(data)), 2)
}

func TestWriteJSON(t *testing.T) {
	rep := &benchmark.Report{
		RunID:      "abc",
		Strategies: []string{"linear-array"},
		Config:     *benchmark.DefaultConfig(),
		Summaries:  []*benchmark.SizeSummary{sampleSummary()},
		Comparisons: []benchmark.ComparisonResult{{
			Size:               1000,
			Ranking:            []string{"bst", "linear-array"},
			EffectSizeCategory: benchmark.EffectLarge,
		}},
	}
	rep.Summaries[0].Samples = []time.Duration{1, 2, 3}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, rep))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "abc", decoded["run_id"])
	assert.NotContains(t, buf.String(), "Samples")
	assert.Contains(t, buf.String(), `"effect_size_category": "large"`)
	assert.Contains(t, buf.String(), "\n  ")
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, WriteJSONFile(path, &benchmark.Report{RunID: "xyz"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id": "xyz"`)
}

func TestConsoleReporter_RecordSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleReporterStyled(&buf, false)

	require.NoError(t, c.RecordTrial(sampleTrial()))
	assert.Empty(t, buf.String())

	require.NoError(t, c.RecordSummary(sampleSummary()))
	out := buf.String()
	assert.Contains(t, out, "linear-array size=1000")
	assert.Contains(t, out, "mean 750.50  stddev 250.25")
	assert.Contains(t, out, "150/300 (50.0%)")
	assert.NotContains(t, out, "\x1b[")
}

func TestConsoleReporter_WorstCaseStdDev(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleReporterStyled(&buf, false)

	require.NoError(t, c.RecordSummary(sampleSummary()))
	_, block, ok := strings.Cut(buf.String(), "worst case:")
	require.True(t, ok, buf.String())

	assert.Contains(t, block, "key=1001 runs=3")
	assert.Contains(t, block, "mean 1000.00  stddev 0.50")
	assert.Contains(t, block, "mean 0.000004000  stddev 0.000002000")
	assert.Contains(t, block, "mean 4000  stddev 0")
}

func TestConsoleReporter_NoWorstCase(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleReporterStyled(&buf, false)

	s := sampleSummary()
	s.WorstCase = nil
	require.NoError(t, c.RecordSummary(s))
	assert.NotContains(t, buf.String(), "worst case")
}

func TestConsoleReporter_PrintComparisons(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleReporterStyled(&buf, false)

	require.NoError(t, c.PrintComparisons(nil))
	assert.Empty(t, buf.String())

	require.NoError(t, c.PrintComparisons([]benchmark.ComparisonResult{{
		Size:               1000,
		Ranking:            []string{"binary-array", "bst", "linear-array"},
		Winner:             "binary-array",
		Speedup:            120,
		PValue:             0.0001,
		EffectSizeCategory: benchmark.EffectLarge,
	}}))
	out := buf.String()
	assert.Contains(t, out, "binary-array < bst < linear-array")
	assert.Contains(t, out, "120.0x p=0.0001 d=large")
}

func TestConsoleReporter_Done(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleReporter(&buf)

	require.NoError(t, c.Done(&benchmark.Report{RunID: "r1", Duration: 1500 * time.Millisecond}, "out.csv"))
	assert.Contains(t, buf.String(), "Results saved to out.csv")
	assert.Contains(t, buf.String(), "run r1, 1.5s")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
}
