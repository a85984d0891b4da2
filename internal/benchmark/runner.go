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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/searchbench/internal/dataset"
	"github.com/AleutianAI/searchbench/internal/search"
)

const tracerName = "searchbench.benchmark"

// significanceLevel is the confidence level used by Compare.
const significanceLevel = 0.95

// -----------------------------------------------------------------------------
// Runner
// -----------------------------------------------------------------------------

// Runner executes the size sweep for registered search strategies.
//
// Description:
//
//	For every strategy and every size, Runner repeatedly generates a
//	shuffled dataset, builds the strategy's index and times random-key
//	lookups, then runs the absent-key worst case. Each trial and each size
//	summary is handed to the Recorder as soon as it exists, so long sweeps
//	stream their output.
//
// Thread Safety: Configure with SetLogger/SetRecorder before calling Run.
// Run itself is safe for concurrent use.
type Runner struct {
	registry *search.Registry
	recorder Recorder
	logger   *slog.Logger
}

// NewRunner creates a runner over the given registry.
//
// Inputs:
//   - registry: Strategy registry. Must not be nil.
//
// Outputs:
//   - *Runner: Logs to slog.Default() and records nothing until
//     SetRecorder is called.
//
// Example:
//
//	runner := benchmark.NewRunner(search.DefaultRegistry())
//	runner.SetRecorder(csvRecorder)
//	report, err := runner.Run(ctx, []string{"bst"}, benchmark.WithSeed(42))
func NewRunner(registry *search.Registry) *Runner {
	return &Runner{
		registry: registry,
		recorder: NopRecorder{},
		logger:   slog.Default(),
	}
}

// SetLogger sets the logger for the runner. Nil values are ignored.
func (r *Runner) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetRecorder sets where trials and summaries are streamed. Nil resets
// to NopRecorder.
func (r *Runner) SetRecorder(recorder Recorder) {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	r.recorder = recorder
}

// Run benchmarks the named strategies across the configured sizes.
//
// Description:
//
//	Strategies are resolved in the order given (duplicates dropped); an
//	empty list means every registered strategy. Each strategy draws from
//	its own random source seeded with the same seed, so all strategies
//	see identical datasets and keys. Sizes are processed in ascending
//	order. With Parallelism > 1 strategies run concurrently.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - names: Strategy names. Empty means all registered strategies.
//   - opts: Configuration options applied over DefaultConfig().
//
// Outputs:
//   - *Report: The run report. On cancellation or a recorder failure the
//     report holds the summaries completed so far and is returned together
//     with the error. Nil for configuration errors.
//   - error: ErrInvalidConfig, ErrUnknownStrategy or ErrNoStrategies for
//     bad input; the context error on cancellation; otherwise the
//     recorder's error. All wrapped.
//
// Example:
//
//	report, err := runner.Run(ctx, []string{"linear-array", "bst"},
//	    benchmark.WithSizes(1_000, 10_000),
//	    benchmark.WithSeed(7),
//	)
//	if err != nil {
//	    return fmt.Errorf("running benchmark: %w", err)
//	}
//
// Limitations:
//   - Heap statistics force a GC before each size, which also pauses any
//     strategy running in parallel.
func (r *Runner) Run(ctx context.Context, names []string, opts ...RunOption) (*Report, error) {
	if ctx == nil {
		return nil, errors.New("context must not be nil")
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "benchmark.Runner.Run")
	defer span.End()

	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if err := config.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid config")
		return nil, fmt.Errorf("validating config: %w", err)
	}

	strategies, err := r.resolve(names)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolving strategies")
		return nil, err
	}

	if config.Seed == 0 {
		config.Seed = dataset.NewSource(0).Seed()
	}

	report := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		Strategies: make([]string, len(strategies)),
		Config:     *config,
	}
	for i, s := range strategies {
		report.Strategies[i] = s.Name()
	}

	span.SetAttributes(
		attribute.String("benchmark.run_id", report.RunID),
		attribute.StringSlice("benchmark.strategies", report.Strategies),
		attribute.IntSlice("benchmark.sizes", config.SizeList()),
		attribute.Int("benchmark.searches", config.Searches),
		attribute.Int("benchmark.executions", config.Executions),
		attribute.Int64("benchmark.seed", int64(config.Seed)),
	)

	r.logger.Info("benchmark run started",
		slog.String("run_id", report.RunID),
		slog.Any("strategies", report.Strategies),
		slog.Int("sizes", len(config.SizeList())),
		slog.Uint64("seed", config.Seed),
	)

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	results := make([][]*SizeSummary, len(strategies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Parallelism)
	for i, strategy := range strategies {
		g.Go(func() error {
			summaries, err := r.runStrategy(gctx, report.RunID, strategy, config)
			results[i] = summaries
			if err != nil {
				return fmt.Errorf("benchmarking %s: %w", strategy.Name(), err)
			}
			return nil
		})
	}
	runErr := g.Wait()

	for _, summaries := range results {
		report.Summaries = append(report.Summaries, summaries...)
	}
	report.Comparisons = r.Compare(ctx, report.Summaries)
	report.Duration = time.Since(report.StartedAt)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "benchmark interrupted")
		r.logger.Warn("benchmark run interrupted",
			slog.String("run_id", report.RunID),
			slog.Int("completed_summaries", len(report.Summaries)),
			slog.String("error", runErr.Error()),
		)
		return report, runErr
	}

	span.SetAttributes(attribute.Int("benchmark.result.summaries", len(report.Summaries)))
	span.SetStatus(codes.Ok, "benchmark completed")
	r.logger.Info("benchmark run finished",
		slog.String("run_id", report.RunID),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

// resolve maps names to strategies, defaulting to the whole registry.
func (r *Runner) resolve(names []string) ([]search.Strategy, error) {
	if len(names) == 0 {
		names = r.registry.List()
	}
	var unique []string
	for _, name := range names {
		if !slices.Contains(unique, name) {
			unique = append(unique, name)
		}
	}
	if len(unique) == 0 {
		return nil, ErrNoStrategies
	}

	strategies := make([]search.Strategy, 0, len(unique))
	for _, name := range unique {
		s, ok := r.registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}

// runStrategy sweeps every size for one strategy.
func (r *Runner) runStrategy(ctx context.Context, runID string, strategy search.Strategy, config *Config) ([]*SizeSummary, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "benchmark.Runner.runStrategy",
		trace.WithAttributes(attribute.String("benchmark.strategy", strategy.Name())),
	)
	defer span.End()

	src := dataset.NewSource(config.Seed)
	sizes := config.SizeList()
	summaries := make([]*SizeSummary, 0, len(sizes))

	for _, size := range sizes {
		summary, err := r.runSize(ctx, runID, strategy, size, src, config)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "size failed")
			return summaries, fmt.Errorf("size %d: %w", size, err)
		}
		if err := r.recorder.RecordSummary(summary); err != nil {
			span.RecordError(err)
			return summaries, fmt.Errorf("recording summary for size %d: %w", size, err)
		}
		summaries = append(summaries, summary)

		r.logger.Debug("size finished",
			slog.String("strategy", strategy.Name()),
			slog.Int("size", size),
			slog.Float64("mean_comparisons", summary.Comparisons.Mean),
			slog.Float64("mean_seconds", summary.Seconds.Mean),
		)
	}

	span.SetStatus(codes.Ok, "strategy completed")
	return summaries, nil
}

// runSize measures one (strategy, size) cell.
func (r *Runner) runSize(ctx context.Context, runID string, strategy search.Strategy, size int, src *dataset.Source, config *Config) (*SizeSummary, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "benchmark.Runner.runSize",
		trace.WithAttributes(
			attribute.String("benchmark.strategy", strategy.Name()),
			attribute.Int("benchmark.size", size),
		),
	)
	defer span.End()

	var memBefore runtime.MemStats
	if config.CollectMemory {
		runtime.GC()
		runtime.ReadMemStats(&memBefore)
	}

	var comparisons, seconds, memory Accumulator
	samples := make([]time.Duration, 0, config.Executions*config.Searches)
	found := 0
	maxKey := config.keyBound(size)

	var index search.Index
	for exec := 1; exec <= config.Executions; exec++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		index = strategy.Build(dataset.Generate(src, size))
		memBytes := index.MemoryBytes()

		for i := 0; i < config.Warmup; i++ {
			index.Lookup(dataset.RandomKey(src, maxKey))
		}

		for q := 1; q <= config.Searches; q++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			key := dataset.RandomKey(src, maxKey)
			start := time.Now()
			hit := index.Lookup(key)
			elapsed := time.Since(start)

			trial := Trial{
				Strategy:    strategy.Name(),
				Size:        size,
				Execution:   exec,
				Search:      q,
				Key:         key,
				Position:    hit.Position,
				Found:       hit.Found,
				Comparisons: hit.Comparisons,
				Elapsed:     elapsed,
				MemoryBytes: memBytes,
			}
			if err := r.recorder.RecordTrial(trial); err != nil {
				return nil, fmt.Errorf("recording trial: %w", err)
			}

			comparisons.Add(float64(hit.Comparisons))
			seconds.Add(elapsed.Seconds())
			memory.Add(float64(memBytes))
			samples = append(samples, elapsed)
			if hit.Found {
				found++
			}
		}
	}

	summary := &SizeSummary{
		RunID:       runID,
		Strategy:    strategy.Name(),
		Size:        size,
		Trials:      comparisons.Count(),
		Found:       found,
		Comparisons: comparisons.Moments(),
		Seconds:     seconds.Moments(),
		Memory:      memory.Moments(),
		Samples:     samples,
	}
	if summary.Trials > 0 {
		summary.FoundRate = float64(found) / float64(summary.Trials)
	}

	if config.WorstCaseRuns > 0 && index != nil {
		worst, err := r.runWorstCase(ctx, strategy, size, index, config.WorstCaseRuns)
		if err != nil {
			return nil, err
		}
		summary.WorstCase = worst
	}

	if config.CollectMemory {
		var memAfter runtime.MemStats
		runtime.ReadMemStats(&memAfter)
		summary.Heap = heapDelta(&memBefore, &memAfter)
	}

	latencySamples := samples
	if config.RemoveOutliers {
		latencySamples = RemoveOutliers(samples, config.OutlierThreshold)
		if removed := len(samples) - len(latencySamples); removed > 0 {
			r.logger.Debug("outliers removed from latency view",
				slog.String("strategy", strategy.Name()),
				slog.Int("size", size),
				slog.Int("removed_count", removed),
			)
		}
	}
	latency, err := CalculateLatencyStats(latencySamples)
	if err != nil {
		return nil, fmt.Errorf("latency stats: %w", err)
	}
	summary.Latency = latency

	span.SetAttributes(
		attribute.Int("benchmark.result.trials", summary.Trials),
		attribute.Float64("benchmark.result.mean_comparisons", summary.Comparisons.Mean),
		attribute.Int64("benchmark.result.p99_ns", int64(latency.P99)),
	)
	return summary, nil
}

// runWorstCase times lookups of size+1, which is never in the dataset.
func (r *Runner) runWorstCase(ctx context.Context, strategy search.Strategy, size int, index search.Index, runs int) (*WorstCaseSummary, error) {
	key := uint32(size) + 1
	memBytes := index.MemoryBytes()
	var comparisons, seconds Accumulator

	for q := 1; q <= runs; q++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		hit := index.Lookup(key)
		elapsed := time.Since(start)

		trial := Trial{
			Strategy:    strategy.Name(),
			Size:        size,
			Search:      q,
			WorstCase:   true,
			Key:         key,
			Position:    hit.Position,
			Found:       hit.Found,
			Comparisons: hit.Comparisons,
			Elapsed:     elapsed,
			MemoryBytes: memBytes,
		}
		if err := r.recorder.RecordTrial(trial); err != nil {
			return nil, fmt.Errorf("recording worst-case trial: %w", err)
		}

		comparisons.Add(float64(hit.Comparisons))
		seconds.Add(elapsed.Seconds())
	}

	return &WorstCaseSummary{
		Key:         key,
		Runs:        runs,
		Comparisons: comparisons.Moments(),
		Seconds:     seconds.Moments(),
	}, nil
}

func heapDelta(before, after *runtime.MemStats) *MemoryStats {
	stats := &MemoryStats{
		HeapAllocBefore: before.HeapAlloc,
		HeapAllocAfter:  after.HeapAlloc,
		HeapAllocDelta:  int64(after.HeapAlloc) - int64(before.HeapAlloc),
		TotalAlloc:      after.TotalAlloc - before.TotalAlloc,
		Mallocs:         after.Mallocs - before.Mallocs,
		GCPauses:        after.NumGC - before.NumGC,
	}
	if after.PauseTotalNs > before.PauseTotalNs {
		stats.GCPauseTotal = time.Duration(after.PauseTotalNs - before.PauseTotalNs)
	}
	return stats
}

// -----------------------------------------------------------------------------
// Comparison
// -----------------------------------------------------------------------------

// Compare ranks strategies at every size that has at least two of them.
//
// Description:
//
//	Groups summaries by size, ranks strategies by mean lookup time
//	(ties broken by name), and compares the fastest against the slowest
//	with Welch's t-test and Cohen's d on their raw samples.
//
// Inputs:
//   - ctx: Used only for tracing.
//   - summaries: Summaries from one or more runs.
//
// Outputs:
//   - []ComparisonResult: One per size, ascending. Nil with fewer than two
//     strategies at every size.
func (r *Runner) Compare(ctx context.Context, summaries []*SizeSummary) []ComparisonResult {
	_, span := otel.Tracer(tracerName).Start(ctx, "benchmark.Runner.Compare")
	defer span.End()

	bySize := make(map[int][]*SizeSummary)
	for _, s := range summaries {
		bySize[s.Size] = append(bySize[s.Size], s)
	}
	sizes := make([]int, 0, len(bySize))
	for size := range bySize {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)

	var out []ComparisonResult
	for _, size := range sizes {
		group := bySize[size]
		if len(group) < 2 {
			continue
		}
		out = append(out, compareGroup(size, group))
	}

	span.SetAttributes(attribute.Int("benchmark.comparisons", len(out)))
	return out
}

func compareGroup(size int, group []*SizeSummary) ComparisonResult {
	ranked := slices.Clone(group)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Seconds.Mean != ranked[j].Seconds.Mean {
			return ranked[i].Seconds.Mean < ranked[j].Seconds.Mean
		}
		return ranked[i].Strategy < ranked[j].Strategy
	})

	result := ComparisonResult{
		Size:            size,
		Ranking:         make([]string, len(ranked)),
		MeanSeconds:     make(map[string]float64, len(ranked)),
		MeanComparisons: make(map[string]float64, len(ranked)),
		ConfidenceLevel: significanceLevel,
	}
	for i, s := range ranked {
		result.Ranking[i] = s.Strategy
		result.MeanSeconds[s.Strategy] = s.Seconds.Mean
		result.MeanComparisons[s.Strategy] = s.Comparisons.Mean
	}

	fastest, slowest := ranked[0], ranked[len(ranked)-1]

	_, pValue := WelchTTest(fastest.Samples, slowest.Samples)
	result.PValue = pValue
	result.Significant = pValue < 1-result.ConfidenceLevel

	result.EffectSize = CalculateCohensD(fastest.Samples, slowest.Samples)
	result.EffectSizeCategory = CategorizeEffectSize(result.EffectSize)

	if fastest.Seconds.Mean > 0 {
		result.Speedup = slowest.Seconds.Mean / fastest.Seconds.Mean
	}
	if result.Significant {
		result.Winner = fastest.Strategy
	}
	return result
}
