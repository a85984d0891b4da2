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
	"slices"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.MinSize != 100000 {
		t.Errorf("MinSize = %d, want 100000", config.MinSize)
	}
	if config.MaxSize != 1000000 {
		t.Errorf("MaxSize = %d, want 1000000", config.MaxSize)
	}
	if config.SizeStep != 100000 {
		t.Errorf("SizeStep = %d, want 100000", config.SizeStep)
	}
	if config.Searches != 100 {
		t.Errorf("Searches = %d, want 100", config.Searches)
	}
	if config.Executions != 3 {
		t.Errorf("Executions = %d, want 3", config.Executions)
	}
	if config.WorstCaseRuns != 3 {
		t.Errorf("WorstCaseRuns = %d, want 3", config.WorstCaseRuns)
	}
	if config.MaxKey != 100000 {
		t.Errorf("MaxKey = %d, want 100000", config.MaxKey)
	}
	if !config.CollectMemory {
		t.Error("CollectMemory = false, want true")
	}
	if config.RemoveOutliers {
		t.Error("RemoveOutliers = true, want false")
	}
	if config.Parallelism != 1 {
		t.Errorf("Parallelism = %d, want 1", config.Parallelism)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestConfig_SizeList(t *testing.T) {
	t.Run("default sweep", func(t *testing.T) {
		sizes := DefaultConfig().SizeList()
		if len(sizes) != 10 {
			t.Fatalf("len(SizeList()) = %d, want 10", len(sizes))
		}
		if sizes[0] != 100000 || sizes[9] != 1000000 {
			t.Errorf("SizeList() = %v, want 100000..1000000", sizes)
		}
	})

	t.Run("explicit sizes sorted and deduplicated", func(t *testing.T) {
		config := DefaultConfig()
		config.Sizes = []int{300, 100, 200, 100}
		want := []int{100, 200, 300}
		if got := config.SizeList(); !slices.Equal(got, want) {
			t.Errorf("SizeList() = %v, want %v", got, want)
		}
		if config.Sizes[0] != 300 {
			t.Error("SizeList() must not reorder Config.Sizes")
		}
	})

	t.Run("step past max", func(t *testing.T) {
		config := DefaultConfig()
		config.MinSize, config.MaxSize, config.SizeStep = 10, 25, 10
		want := []int{10, 20}
		if got := config.SizeList(); !slices.Equal(got, want) {
			t.Errorf("SizeList() = %v, want %v", got, want)
		}
	})
}

func TestConfig_KeyBound(t *testing.T) {
	config := DefaultConfig()
	if got := config.keyBound(500); got != 100000 {
		t.Errorf("keyBound(500) = %d, want 100000", got)
	}
	config.MaxKey = 0
	if got := config.keyBound(500); got != 500 {
		t.Errorf("keyBound(500) with MaxKey 0 = %d, want 500", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero min size", func(c *Config) { c.MinSize = 0 }},
		{"max below min", func(c *Config) { c.MaxSize = c.MinSize - 1 }},
		{"max too large", func(c *Config) { c.MaxSize = MaxDatasetSize + 1 }},
		{"zero step", func(c *Config) { c.SizeStep = 0 }},
		{"non-positive explicit size", func(c *Config) { c.Sizes = []int{10, 0} }},
		{"zero searches", func(c *Config) { c.Searches = 0 }},
		{"zero executions", func(c *Config) { c.Executions = 0 }},
		{"negative worst case", func(c *Config) { c.WorstCaseRuns = -1 }},
		{"negative warmup", func(c *Config) { c.Warmup = -1 }},
		{"zero outlier threshold", func(c *Config) { c.OutlierThreshold = 0 }},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}

	t.Run("explicit sizes bypass range checks", func(t *testing.T) {
		config := DefaultConfig()
		config.MinSize = 0
		config.Sizes = []int{5}
		if err := config.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})
}

func TestRunOptions(t *testing.T) {
	t.Run("WithSizeRange", func(t *testing.T) {
		config := DefaultConfig()
		config.Sizes = []int{1}
		WithSizeRange(10, 100, 10)(config)
		if config.MinSize != 10 || config.MaxSize != 100 || config.SizeStep != 10 {
			t.Errorf("range = %d..%d/%d, want 10..100/10", config.MinSize, config.MaxSize, config.SizeStep)
		}
		if config.Sizes != nil {
			t.Errorf("Sizes = %v, want nil", config.Sizes)
		}
	})

	t.Run("WithSizeRange ignores invalid", func(t *testing.T) {
		config := DefaultConfig()
		WithSizeRange(100, 10, 10)(config)
		if config.MinSize != 100000 {
			t.Errorf("MinSize = %d, want 100000", config.MinSize)
		}
	})

	t.Run("WithSizes", func(t *testing.T) {
		config := DefaultConfig()
		sizes := []int{5, 10}
		WithSizes(sizes...)(config)
		sizes[0] = 99
		if !slices.Equal(config.Sizes, []int{5, 10}) {
			t.Errorf("Sizes = %v, want [5 10]", config.Sizes)
		}
	})

	t.Run("WithSearches ignores non-positive", func(t *testing.T) {
		config := DefaultConfig()
		WithSearches(0)(config)
		if config.Searches != 100 {
			t.Errorf("Searches = %d, want 100", config.Searches)
		}
		WithSearches(7)(config)
		if config.Searches != 7 {
			t.Errorf("Searches = %d, want 7", config.Searches)
		}
	})

	t.Run("WithExecutions", func(t *testing.T) {
		config := DefaultConfig()
		WithExecutions(5)(config)
		if config.Executions != 5 {
			t.Errorf("Executions = %d, want 5", config.Executions)
		}
	})

	t.Run("WithWorstCaseRuns allows zero", func(t *testing.T) {
		config := DefaultConfig()
		WithWorstCaseRuns(0)(config)
		if config.WorstCaseRuns != 0 {
			t.Errorf("WorstCaseRuns = %d, want 0", config.WorstCaseRuns)
		}
	})

	t.Run("WithMaxKey and WithSeed", func(t *testing.T) {
		config := DefaultConfig()
		WithMaxKey(0)(config)
		WithSeed(42)(config)
		if config.MaxKey != 0 {
			t.Errorf("MaxKey = %d, want 0", config.MaxKey)
		}
		if config.Seed != 42 {
			t.Errorf("Seed = %d, want 42", config.Seed)
		}
	})

	t.Run("WithWarmup", func(t *testing.T) {
		config := DefaultConfig()
		WithWarmup(10)(config)
		if config.Warmup != 10 {
			t.Errorf("Warmup = %d, want 10", config.Warmup)
		}
	})

	t.Run("WithMemoryCollection", func(t *testing.T) {
		config := DefaultConfig()
		WithMemoryCollection(false)(config)
		if config.CollectMemory {
			t.Error("CollectMemory = true, want false")
		}
	})

	t.Run("WithOutlierRemoval and threshold", func(t *testing.T) {
		config := DefaultConfig()
		WithOutlierRemoval(true)(config)
		WithOutlierThreshold(3.0)(config)
		if !config.RemoveOutliers || config.OutlierThreshold != 3.0 {
			t.Errorf("outliers = %v/%v, want true/3.0", config.RemoveOutliers, config.OutlierThreshold)
		}
	})

	t.Run("WithParallelism", func(t *testing.T) {
		config := DefaultConfig()
		WithParallelism(4)(config)
		if config.Parallelism != 4 {
			t.Errorf("Parallelism = %d, want 4", config.Parallelism)
		}
	})

	t.Run("WithTimeout", func(t *testing.T) {
		config := DefaultConfig()
		WithTimeout(time.Minute)(config)
		if config.Timeout != time.Minute {
			t.Errorf("Timeout = %v, want 1m", config.Timeout)
		}
	})

	t.Run("WithConfig copies sizes", func(t *testing.T) {
		src := Config{Sizes: []int{1, 2}, Searches: 9}
		config := DefaultConfig()
		WithConfig(src)(config)
		src.Sizes[0] = 50
		if config.Searches != 9 || config.Sizes[0] != 1 {
			t.Errorf("WithConfig result = %+v", config)
		}
	})
}
