// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package benchmark

import (
	"errors"
	"time"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNoSamples indicates that no samples were collected.
	ErrNoSamples = errors.New("no samples collected")

	// ErrInvalidConfig indicates an invalid benchmark configuration.
	ErrInvalidConfig = errors.New("invalid benchmark configuration")

	// ErrUnknownStrategy indicates a strategy name missing from the registry.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrNoStrategies indicates a run with nothing to benchmark.
	ErrNoStrategies = errors.New("no strategies to benchmark")
)

// -----------------------------------------------------------------------------
// Trials
// -----------------------------------------------------------------------------

// Trial is one timed lookup.
//
// Description:
//
//	Execution and Search are 1-based. Worst-case trials run after every
//	execution of a size has finished; their Execution is 0.
type Trial struct {
	Strategy    string        `json:"strategy"`
	Size        int           `json:"size"`
	Execution   int           `json:"execution"`
	Search      int           `json:"search"`
	WorstCase   bool          `json:"worst_case"`
	Key         uint32        `json:"key"`
	Position    int           `json:"position"`
	Found       bool          `json:"found"`
	Comparisons int           `json:"comparisons"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	MemoryBytes uint64        `json:"memory_bytes"`
}

// -----------------------------------------------------------------------------
// Summaries
// -----------------------------------------------------------------------------

// MemoryStats captures heap changes and GC activity across one size.
//
// Description:
//
//	Sampled with runtime.ReadMemStats after a forced GC before the first
//	build and again after the last lookup. Parallel runs share one heap,
//	so the figures include other strategies' allocations.
type MemoryStats struct {
	HeapAllocBefore uint64        `json:"heap_alloc_before"`
	HeapAllocAfter  uint64        `json:"heap_alloc_after"`
	HeapAllocDelta  int64         `json:"heap_alloc_delta"`
	TotalAlloc      uint64        `json:"total_alloc"`
	Mallocs         uint64        `json:"mallocs"`
	GCPauses        uint32        `json:"gc_pauses"`
	GCPauseTotal    time.Duration `json:"gc_pause_total"`
}

// WorstCaseSummary aggregates the absent-key lookups of one size.
type WorstCaseSummary struct {
	Key         uint32  `json:"key"`
	Runs        int     `json:"runs"`
	Comparisons Moments `json:"comparisons"`
	Seconds     Moments `json:"seconds"`
}

// SizeSummary aggregates every random-key trial of one strategy at one
// dataset size.
//
// Description:
//
//	Comparisons, Seconds and Memory are population moments over all
//	trials. Latency is the percentile view, optionally with outliers
//	removed. Samples holds every raw latency for significance testing and
//	is not serialized.
//
// Thread Safety: Safe for concurrent read access after creation.
type SizeSummary struct {
	RunID       string            `json:"run_id"`
	Strategy    string            `json:"strategy"`
	Size        int               `json:"size"`
	Trials      int               `json:"trials"`
	Found       int               `json:"found"`
	FoundRate   float64           `json:"found_rate"`
	Comparisons Moments           `json:"comparisons"`
	Seconds     Moments           `json:"seconds"`
	Memory      Moments           `json:"memory_bytes"`
	Latency     LatencyStats      `json:"latency"`
	Heap        *MemoryStats      `json:"heap,omitempty"`
	WorstCase   *WorstCaseSummary `json:"worst_case,omitempty"`
	Samples     []time.Duration   `json:"-"`
}

// ComparisonResult ranks the strategies measured at one size.
//
// Description:
//
//	Strategies are ranked by mean lookup time. The fastest and slowest are
//	tested with Welch's t-test; Winner is set only when the difference is
//	significant at ConfidenceLevel. Speedup is slowest mean / fastest mean.
type ComparisonResult struct {
	Size               int                `json:"size"`
	Ranking            []string           `json:"ranking"`
	MeanSeconds        map[string]float64 `json:"mean_seconds"`
	MeanComparisons    map[string]float64 `json:"mean_comparisons"`
	Winner             string             `json:"winner,omitempty"`
	Speedup            float64            `json:"speedup"`
	Significant        bool               `json:"significant"`
	PValue             float64            `json:"p_value"`
	ConfidenceLevel    float64            `json:"confidence_level"`
	EffectSize         float64            `json:"effect_size"`
	EffectSizeCategory EffectSizeCategory `json:"effect_size_category"`
}

// Report is the outcome of one Runner.Run.
type Report struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	Duration    time.Duration      `json:"duration"`
	Strategies  []string           `json:"strategies"`
	Config      Config             `json:"config"`
	Summaries   []*SizeSummary     `json:"summaries"`
	Comparisons []ComparisonResult `json:"comparisons,omitempty"`
}

// Summary returns the summary for strategy at size, or nil.
func (r *Report) Summary(strategy string, size int) *SizeSummary {
	for _, s := range r.Summaries {
		if s.Strategy == strategy && s.Size == size {
			return s
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Recording
// -----------------------------------------------------------------------------

// Recorder receives results as they are produced.
//
// Description:
//
//	RecordTrial is called once per timed lookup and RecordSummary once per
//	(strategy, size) after its trials. With Parallelism > 1 the runner
//	calls a Recorder from several goroutines, so implementations must be
//	safe for concurrent use. A returned error aborts the run.
type Recorder interface {
	RecordTrial(trial Trial) error
	RecordSummary(summary *SizeSummary) error
}

// NopRecorder discards everything.
type NopRecorder struct{}

// RecordTrial implements Recorder.
func (NopRecorder) RecordTrial(Trial) error { return nil }

// RecordSummary implements Recorder.
func (NopRecorder) RecordSummary(*SizeSummary) error { return nil }

// MultiRecorder fans results out to several recorders in order, stopping
// at the first error.
type MultiRecorder []Recorder

// RecordTrial implements Recorder.
func (m MultiRecorder) RecordTrial(trial Trial) error {
	for _, r := range m {
		if err := r.RecordTrial(trial); err != nil {
			return err
		}
	}
	return nil
}

// RecordSummary implements Recorder.
func (m MultiRecorder) RecordSummary(summary *SizeSummary) error {
	for _, r := range m {
		if err := r.RecordSummary(summary); err != nil {
			return err
		}
	}
	return nil
}
