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
	"fmt"
	"slices"
	"time"
)

// MaxDatasetSize bounds a single dataset. Every value and the worst-case
// key (size+1) must fit in a uint32.
const MaxDatasetSize = 1 << 30

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config holds benchmark configuration.
//
// Description:
//
//	Config controls the size sweep, the number of executions and lookups
//	per size, the random key range and seed, and how latency samples are
//	summarized. Use DefaultConfig() to get the stock sweep, then override
//	specific fields via RunOption.
//
// Thread Safety: Safe for concurrent read access after initialization.
type Config struct {
	// MinSize is the first dataset size of the sweep.
	// Default: 100000
	MinSize int `json:"min_size"`

	// MaxSize is the last dataset size of the sweep (inclusive).
	// Default: 1000000
	MaxSize int `json:"max_size"`

	// SizeStep is the increment between sizes.
	// Default: 100000
	SizeStep int `json:"size_step"`

	// Sizes, when non-empty, replaces the MinSize..MaxSize range.
	Sizes []int `json:"sizes,omitempty"`

	// Searches is the number of random-key lookups per execution.
	// Default: 100
	Searches int `json:"searches"`

	// Executions is the number of independent dataset rebuilds per size.
	// Default: 3
	Executions int `json:"executions"`

	// WorstCaseRuns is the number of absent-key lookups (key = size+1)
	// per size. Zero disables the worst-case phase.
	// Default: 3
	WorstCaseRuns int `json:"worst_case_runs"`

	// MaxKey is the inclusive upper bound for random keys. Zero means
	// the dataset size.
	// Default: 100000
	MaxKey uint32 `json:"max_key"`

	// Seed seeds dataset generation and key selection. Zero picks a
	// time-based seed; the chosen seed is recorded in the Report.
	Seed uint64 `json:"seed"`

	// Warmup is the number of untimed lookups before measurement.
	// Default: 0
	Warmup int `json:"warmup"`

	// CollectMemory enables heap statistics around each size.
	// Default: true
	CollectMemory bool `json:"collect_memory"`

	// RemoveOutliers applies IQR filtering to the latency percentile
	// view. Mean and standard deviation always cover every trial.
	// Default: false
	RemoveOutliers bool `json:"remove_outliers"`

	// OutlierThreshold is the IQR multiplier for outlier detection.
	// Default: 1.5
	OutlierThreshold float64 `json:"outlier_threshold"`

	// Parallelism is the number of strategies benchmarked concurrently.
	// Default: 1 (sequential)
	Parallelism int `json:"parallelism"`

	// Timeout bounds the whole run. Zero means no timeout.
	// Default: 0
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns a configuration with default values.
//
// Description:
//
//	The defaults reproduce the classic sweep: sizes 100k to 1M in steps of
//	100k, 3 executions of 100 lookups each, keys drawn from [0, 100000]
//	and 3 worst-case lookups per size.
//
// Outputs:
//   - *Config: Configuration with default values. Never nil.
//
// Example:
//
//	config := DefaultConfig()
//	config.Searches = 1000
func DefaultConfig() *Config {
	return &Config{
		MinSize:          100_000,
		MaxSize:          1_000_000,
		SizeStep:         100_000,
		Searches:         100,
		Executions:       3,
		WorstCaseRuns:    3,
		MaxKey:           100_000,
		CollectMemory:    true,
		OutlierThreshold: 1.5,
		Parallelism:      1,
	}
}

// Validate checks that the configuration is valid.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig with the failing field, nil if valid.
func (c *Config) Validate() error {
	if len(c.Sizes) > 0 {
		for _, n := range c.Sizes {
			if n <= 0 || n > MaxDatasetSize {
				return fmt.Errorf("%w: size %d out of range", ErrInvalidConfig, n)
			}
		}
	} else {
		if c.MinSize <= 0 {
			return fmt.Errorf("%w: min size must be positive", ErrInvalidConfig)
		}
		if c.MaxSize < c.MinSize {
			return fmt.Errorf("%w: max size %d below min size %d", ErrInvalidConfig, c.MaxSize, c.MinSize)
		}
		if c.MaxSize > MaxDatasetSize {
			return fmt.Errorf("%w: max size %d out of range", ErrInvalidConfig, c.MaxSize)
		}
		if c.SizeStep <= 0 {
			return fmt.Errorf("%w: size step must be positive", ErrInvalidConfig)
		}
	}
	if c.Searches <= 0 {
		return fmt.Errorf("%w: searches must be positive", ErrInvalidConfig)
	}
	if c.Executions <= 0 {
		return fmt.Errorf("%w: executions must be positive", ErrInvalidConfig)
	}
	if c.WorstCaseRuns < 0 {
		return fmt.Errorf("%w: worst-case runs must be non-negative", ErrInvalidConfig)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("%w: warmup must be non-negative", ErrInvalidConfig)
	}
	if c.OutlierThreshold <= 0 {
		return fmt.Errorf("%w: outlier threshold must be positive", ErrInvalidConfig)
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("%w: parallelism must be positive", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// SizeList returns the dataset sizes in ascending order without
// duplicates.
func (c *Config) SizeList() []int {
	if len(c.Sizes) > 0 {
		sizes := slices.Clone(c.Sizes)
		slices.Sort(sizes)
		return slices.Compact(sizes)
	}
	var sizes []int
	if c.SizeStep <= 0 {
		return sizes
	}
	for n := c.MinSize; n <= c.MaxSize; n += c.SizeStep {
		sizes = append(sizes, n)
	}
	return sizes
}

// keyBound returns the inclusive upper bound for random keys at size n.
func (c *Config) keyBound(n int) uint32 {
	if c.MaxKey == 0 {
		return uint32(n)
	}
	return c.MaxKey
}

// -----------------------------------------------------------------------------
// Run Options
// -----------------------------------------------------------------------------

// RunOption configures a benchmark run.
//
// Description:
//
//	RunOption functions modify the benchmark Config. They are applied in
//	order, so later options override earlier ones. Out-of-range values are
//	ignored and the previous setting is kept.
type RunOption func(*Config)

// WithConfig replaces the whole configuration with a copy of cfg.
//
// Example:
//
//	runner.Run(ctx, nil, benchmark.WithConfig(fileConfig), benchmark.WithSeed(7))
func WithConfig(cfg Config) RunOption {
	return func(c *Config) {
		*c = cfg
		c.Sizes = slices.Clone(cfg.Sizes)
	}
}

// WithSizeRange sets the MinSize..MaxSize sweep and clears explicit sizes.
//
// Inputs:
//   - minSize, maxSize, step: Must all be positive with minSize <= maxSize.
func WithSizeRange(minSize, maxSize, step int) RunOption {
	return func(c *Config) {
		if minSize > 0 && maxSize >= minSize && step > 0 {
			c.MinSize, c.MaxSize, c.SizeStep = minSize, maxSize, step
			c.Sizes = nil
		}
	}
}

// WithSizes sets an explicit list of dataset sizes.
//
// Example:
//
//	runner.Run(ctx, nil, benchmark.WithSizes(1_000, 10_000, 100_000))
func WithSizes(sizes ...int) RunOption {
	return func(c *Config) {
		if len(sizes) > 0 {
			c.Sizes = slices.Clone(sizes)
		}
	}
}

// WithSearches sets the number of timed lookups per execution.
func WithSearches(n int) RunOption {
	return func(c *Config) {
		if n > 0 {
			c.Searches = n
		}
	}
}

// WithExecutions sets the number of dataset rebuilds per size.
func WithExecutions(n int) RunOption {
	return func(c *Config) {
		if n > 0 {
			c.Executions = n
		}
	}
}

// WithWorstCaseRuns sets the number of absent-key lookups per size.
// Zero disables the worst-case phase.
func WithWorstCaseRuns(n int) RunOption {
	return func(c *Config) {
		if n >= 0 {
			c.WorstCaseRuns = n
		}
	}
}

// WithMaxKey sets the inclusive upper bound for random keys. Zero means
// "use the dataset size".
func WithMaxKey(maxKey uint32) RunOption {
	return func(c *Config) {
		c.MaxKey = maxKey
	}
}

// WithSeed fixes the random seed. Zero requests a time-based seed.
func WithSeed(seed uint64) RunOption {
	return func(c *Config) {
		c.Seed = seed
	}
}

// WithWarmup sets the number of untimed lookups before measurement.
func WithWarmup(n int) RunOption {
	return func(c *Config) {
		if n >= 0 {
			c.Warmup = n
		}
	}
}

// WithMemoryCollection enables or disables heap statistics collection.
func WithMemoryCollection(enabled bool) RunOption {
	return func(c *Config) {
		c.CollectMemory = enabled
	}
}

// WithOutlierRemoval enables or disables IQR filtering of the latency
// percentile view.
func WithOutlierRemoval(enabled bool) RunOption {
	return func(c *Config) {
		c.RemoveOutliers = enabled
	}
}

// WithOutlierThreshold sets the IQR multiplier for outlier detection.
//
// Inputs:
//   - threshold: Common values are 1.5 (mild) and 3.0 (extreme).
func WithOutlierThreshold(threshold float64) RunOption {
	return func(c *Config) {
		if threshold > 0 {
			c.OutlierThreshold = threshold
		}
	}
}

// WithParallelism sets how many strategies are benchmarked concurrently.
//
// Description:
//
//	Strategies run on separate goroutines; lookups within a strategy stay
//	sequential so per-lookup timings are not skewed by contention inside
//	one structure. Parallel runs still share CPU and memory bandwidth, so
//	expect higher variance than a sequential run.
func WithParallelism(n int) RunOption {
	return func(c *Config) {
		if n > 0 {
			c.Parallelism = n
		}
	}
}

// WithTimeout bounds the whole run.
func WithTimeout(d time.Duration) RunOption {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}
