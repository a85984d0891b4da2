// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/searchbench/internal/benchmark"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const (
	metricsNamespace = "searchbench"
	searchSubsystem  = "search"
)

// ErrRegistrationFailed is returned when a sink metric cannot be registered.
var ErrRegistrationFailed = errors.New("telemetry: metric registration failed")

// Lookup latencies span tens of nanoseconds (binary search on a small
// array) to milliseconds (linear scans of a million elements).
var lookupBuckets = prometheus.ExponentialBuckets(25e-9, 4, 12)

// PrometheusSink records benchmark results as Prometheus metrics.
//
// Description:
//
//	A sink built with a nil registry owns a private one, so several sinks
//	in one process never collide on metric names. Gauges hold the latest value per
//	(strategy, size); they are overwritten when a size is re-run.
//
// Thread Safety: Safe for concurrent use.
type PrometheusSink struct {
	registry *prometheus.Registry

	// TrialsTotal counts recorded lookups.
	// Labels: strategy, kind (random, worst_case), result (hit, miss)
	TrialsTotal *prometheus.CounterVec

	// LookupSeconds is the distribution of single-lookup wall time.
	// Labels: strategy
	LookupSeconds *prometheus.HistogramVec

	// Comparisons is the mean comparison count per lookup.
	// Labels: strategy, size
	Comparisons *prometheus.GaugeVec

	// Seconds is the mean lookup time.
	// Labels: strategy, size
	Seconds *prometheus.GaugeVec

	// SecondsStdDev is the population standard deviation of lookup time.
	// Labels: strategy, size
	SecondsStdDev *prometheus.GaugeVec

	// MemoryBytes is the estimated structure size.
	// Labels: strategy, size
	MemoryBytes *prometheus.GaugeVec

	// Speedup is slowest mean over fastest mean for one size.
	// Labels: size, winner
	Speedup *prometheus.GaugeVec

	// PValue is the Welch's t-test p-value between the fastest and slowest strategy.
	// Labels: size
	PValue *prometheus.GaugeVec
}

// NewPrometheusSink creates a sink registered on reg.
//
// Inputs:
//   - reg: Target registry. Nil creates a private one.
//
// Outputs:
//   - *PrometheusSink: Ready to record.
//   - error: Wraps ErrRegistrationFailed if reg already holds a
//     searchbench_* metric.
func NewPrometheusSink(reg *prometheus.Registry) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	sizeLabels := []string{"strategy", "size"}

	sink := &PrometheusSink{
		registry: reg,
		TrialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: searchSubsystem,
			Name:      "trials_total",
			Help:      "Total lookups recorded by strategy, kind and result",
		}, []string{"strategy", "kind", "result"}),
		LookupSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: searchSubsystem,
			Name:      "lookup_seconds",
			Help:      "Wall time of a single lookup",
			Buckets:   lookupBuckets,
		}, []string{"strategy"}),
		Comparisons: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: searchSubsystem,
			Name:      "comparisons_mean",
			Help:      "Mean key comparisons per lookup",
		}, sizeLabels),
		Seconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: searchSubsystem,
			Name:      "seconds_mean",
			Help:      "Mean lookup time in seconds",
		}, sizeLabels),
		SecondsStdDev: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: searchSubsystem,
			Name:      "seconds_stddev",
			Help:      "Standard deviation of lookup time in seconds",
		}, sizeLabels),
		MemoryBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: searchSubsystem,
			Name:      "memory_bytes",
			Help:      "Estimated memory held by the search structure",
		}, sizeLabels),
		Speedup: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "comparison",
			Name:      "speedup_ratio",
			Help:      "Slowest over fastest mean lookup time",
		}, []string{"size", "winner"}),
		PValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "comparison",
			Name:      "p_value",
			Help:      "Welch's t-test p-value between the fastest and slowest strategy",
		}, []string{"size"}),
	}

	collectors := []prometheus.Collector{
		sink.TrialsTotal,
		sink.LookupSeconds,
		sink.Comparisons,
		sink.Seconds,
		sink.SecondsStdDev,
		sink.MemoryBytes,
		sink.Speedup,
		sink.PValue,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, errors.Join(ErrRegistrationFailed, err)
		}
	}
	return sink, nil
}

// Registry returns the registry the sink's metrics live on.
func (p *PrometheusSink) Registry() *prometheus.Registry {
	return p.registry
}

// RecordTrial implements benchmark.Recorder.
func (p *PrometheusSink) RecordTrial(t benchmark.Trial) error {
	kind := "random"
	if t.WorstCase {
		kind = "worst_case"
	}
	result := "miss"
	if t.Found {
		result = "hit"
	}
	p.TrialsTotal.WithLabelValues(t.Strategy, kind, result).Inc()
	p.LookupSeconds.WithLabelValues(t.Strategy).Observe(t.Elapsed.Seconds())
	return nil
}

// RecordSummary implements benchmark.Recorder.
func (p *PrometheusSink) RecordSummary(s *benchmark.SizeSummary) error {
	if s == nil {
		return nil
	}
	size := strconv.Itoa(s.Size)
	p.Comparisons.WithLabelValues(s.Strategy, size).Set(s.Comparisons.Mean)
	p.Seconds.WithLabelValues(s.Strategy, size).Set(s.Seconds.Mean)
	p.SecondsStdDev.WithLabelValues(s.Strategy, size).Set(s.Seconds.StdDev)
	p.MemoryBytes.WithLabelValues(s.Strategy, size).Set(s.Memory.Mean)
	return nil
}

// RecordComparisons stores the per-size ranking results.
func (p *PrometheusSink) RecordComparisons(results []benchmark.ComparisonResult) {
	for _, r := range results {
		size := strconv.Itoa(r.Size)
		p.Speedup.WithLabelValues(size, r.Winner).Set(r.Speedup)
		p.PValue.WithLabelValues(size).Set(r.PValue)
	}
}

// WriteTextfile writes every metric on the sink's registry to path in the
// Prometheus text exposition format. The file is written atomically.
func (p *PrometheusSink) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
