// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders benchmark results as CSV, console text and JSON.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/AleutianAI/searchbench/internal/benchmark"
)

// TrialHeader is the header row of the per-trial CSV.
var TrialHeader = []string{
	"strategy", "size", "execution", "search", "worst_case", "key",
	"position", "found", "comparisons", "elapsed_ns", "memory_bytes",
}

// SummaryHeader is the header row of the per-size summary CSV.
var SummaryHeader = []string{
	"strategy", "size", "trials", "found", "found_rate",
	"comparisons_mean", "comparisons_stddev",
	"seconds_mean", "seconds_stddev",
	"memory_mean", "memory_stddev",
	"p50_ns", "p99_ns",
	"worst_case_key", "worst_case_comparisons_mean", "worst_case_seconds_mean",
}

// flushEvery bounds how many trial rows are buffered between flushes.
const flushEvery = 512

// CSVRecorder streams one CSV row per trial.
//
// Description:
//
//	CSVRecorder implements benchmark.Recorder. The header is written on
//	creation; rows are buffered and flushed periodically, on Flush and on
//	Close. Summaries are ignored; see WriteSummaries.
//
// Thread Safety: Safe for concurrent use.
type CSVRecorder struct {
	mu      sync.Mutex
	w       *csv.Writer
	closer  io.Closer
	pending int
	rows    int
}

// NewCSVRecorder writes the header to w and returns a recorder over it.
//
// Outputs:
//   - *CSVRecorder: The recorder. The caller still owns w.
//   - error: Non-nil if the header could not be written.
func NewCSVRecorder(w io.Writer) (*CSVRecorder, error) {
	r := &CSVRecorder{w: csv.NewWriter(w)}
	if err := r.w.Write(TrialHeader); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	return r, nil
}

// CreateCSV creates (or truncates) path and returns a recorder that owns
// the file. Close must be called to release it.
//
// Example:
//
//	rec, err := report.CreateCSV("search_results.csv")
//	if err != nil {
//	    return err
//	}
//	defer rec.Close()
func CreateCSV(path string) (*CSVRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	r, err := NewCSVRecorder(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// RecordTrial implements benchmark.Recorder.
func (r *CSVRecorder) RecordTrial(t benchmark.Trial) error {
	row := []string{
		t.Strategy,
		strconv.Itoa(t.Size),
		strconv.Itoa(t.Execution),
		strconv.Itoa(t.Search),
		strconv.FormatBool(t.WorstCase),
		strconv.FormatUint(uint64(t.Key), 10),
		strconv.Itoa(t.Position),
		strconv.FormatBool(t.Found),
		strconv.Itoa(t.Comparisons),
		strconv.FormatInt(t.Elapsed.Nanoseconds(), 10),
		strconv.FormatUint(t.MemoryBytes, 10),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.w.Write(row); err != nil {
		return fmt.Errorf("writing trial row: %w", err)
	}
	r.rows++
	r.pending++
	if r.pending >= flushEvery {
		return r.flushLocked()
	}
	return nil
}

// RecordSummary implements benchmark.Recorder and does nothing.
func (r *CSVRecorder) RecordSummary(*benchmark.SizeSummary) error { return nil }

// Rows returns the number of trial rows written so far.
func (r *CSVRecorder) Rows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// Flush writes buffered rows to the underlying writer.
func (r *CSVRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *CSVRecorder) flushLocked() error {
	r.pending = 0
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// Close flushes and, for recorders from CreateCSV, closes the file.
// Close is idempotent.
func (r *CSVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	flushErr := r.flushLocked()
	var closeErr error
	if r.closer != nil {
		closeErr = r.closer.Close()
		r.closer = nil
	}
	return errors.Join(flushErr, closeErr)
}

// WriteSummaries writes one CSV row per size summary.
//
// Description:
//
//	Mean and standard deviation columns are population statistics over
//	every random-key trial. Worst-case columns are empty when the phase
//	was disabled.
func WriteSummaries(w io.Writer, summaries []*benchmark.SizeSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return fmt.Errorf("writing summary header: %w", err)
	}

	for _, s := range summaries {
		row := []string{
			s.Strategy,
			strconv.Itoa(s.Size),
			strconv.Itoa(s.Trials),
			strconv.Itoa(s.Found),
			formatFloat(s.FoundRate),
			formatFloat(s.Comparisons.Mean),
			formatFloat(s.Comparisons.StdDev),
			formatFloat(s.Seconds.Mean),
			formatFloat(s.Seconds.StdDev),
			formatFloat(s.Memory.Mean),
			formatFloat(s.Memory.StdDev),
			strconv.FormatInt(s.Latency.P50.Nanoseconds(), 10),
			strconv.FormatInt(s.Latency.P99.Nanoseconds(), 10),
			"", "", "",
		}
		if wc := s.WorstCase; wc != nil {
			row[13] = strconv.FormatUint(uint64(wc.Key), 10)
			row[14] = formatFloat(wc.Comparisons.Mean)
			row[15] = formatFloat(wc.Seconds.Mean)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing summary row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteSummariesFile writes summaries to path.
func WriteSummariesFile(path string, summaries []*benchmark.SizeSummary) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return WriteSummaries(f, summaries)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
