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
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulator(t *testing.T) {
	var acc Accumulator
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		acc.Add(x)
	}

	assert.Equal(t, 8, acc.Count())
	assert.InDelta(t, 5.0, acc.Mean(), 1e-9)
	assert.InDelta(t, 4.0, acc.Variance(), 1e-9)
	assert.InDelta(t, 2.0, acc.StdDev(), 1e-9)
	assert.InDelta(t, 32.0/7.0, acc.SampleVariance(), 1e-9)
	assert.Equal(t, 2.0, acc.Min())
	assert.Equal(t, 9.0, acc.Max())

	m := acc.Moments()
	assert.InDelta(t, 5.0, m.Mean, 1e-9)
	assert.InDelta(t, 2.0, m.StdDev, 1e-9)
}

func TestAccumulator_Empty(t *testing.T) {
	var acc Accumulator
	assert.Equal(t, 0, acc.Count())
	assert.Equal(t, 0.0, acc.Mean())
	assert.Equal(t, 0.0, acc.StdDev())
	assert.Equal(t, 0.0, acc.SampleVariance())
	assert.Equal(t, Moments{}, acc.Moments())
}

func TestAccumulator_NegativeMinimum(t *testing.T) {
	var acc Accumulator
	acc.Add(-3)
	acc.Add(1)
	assert.Equal(t, -3.0, acc.Min())
	assert.Equal(t, 1.0, acc.Max())
}

func TestAccumulator_VarianceNeverNegative(t *testing.T) {
	var acc Accumulator
	for i := 0; i < 1000; i++ {
		acc.Add(1e8 + 0.1)
	}
	assert.GreaterOrEqual(t, acc.Variance(), 0.0)
	assert.False(t, math.IsNaN(acc.StdDev()))
}

func TestCalculateLatencyStats(t *testing.T) {
	samples := make([]time.Duration, 10)
	for i := range samples {
		samples[i] = time.Duration(10-i) * time.Millisecond
	}

	stats, err := CalculateLatencyStats(samples)
	require.NoError(t, err)

	assert.Equal(t, time.Millisecond, stats.Min)
	assert.Equal(t, 10*time.Millisecond, stats.Max)
	assert.Equal(t, 5500*time.Microsecond, stats.Mean)
	assert.Equal(t, 5500*time.Microsecond, stats.P50)
	assert.True(t, stats.P90 > stats.P50)
	assert.True(t, stats.P99 <= stats.Max)
	assert.True(t, stats.CI95Lower < stats.Mean && stats.Mean < stats.CI95Upper)
	assert.Equal(t, time.Duration(10), samples[0]/time.Millisecond, "input must not be reordered")
}

func TestCalculateLatencyStats_Empty(t *testing.T) {
	_, err := CalculateLatencyStats(nil)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{10, 20, 30, 40}

	assert.Equal(t, time.Duration(10), percentile(sorted, 0))
	assert.Equal(t, time.Duration(40), percentile(sorted, 1))
	assert.Equal(t, time.Duration(25), percentile(sorted, 0.5))
	assert.Equal(t, time.Duration(0), percentile(nil, 0.5))
	assert.Equal(t, time.Duration(7), percentile([]time.Duration{7}, 0.9))
}

func TestRemoveOutliers(t *testing.T) {
	ms := time.Millisecond

	t.Run("drops extreme value", func(t *testing.T) {
		samples := []time.Duration{10 * ms, 11 * ms, 12 * ms, 13 * ms, 1000 * ms}
		filtered := RemoveOutliers(samples, 1.5)
		assert.Equal(t, []time.Duration{10 * ms, 11 * ms, 12 * ms, 13 * ms}, filtered)
	})

	t.Run("small input unchanged", func(t *testing.T) {
		samples := []time.Duration{1 * ms, 1000 * ms, 5 * ms}
		assert.Equal(t, samples, RemoveOutliers(samples, 1.5))
	})

	t.Run("no outliers", func(t *testing.T) {
		samples := []time.Duration{10 * ms, 11 * ms, 12 * ms, 13 * ms}
		assert.Len(t, RemoveOutliers(samples, 1.5), 4)
	})
}

func TestCategorizeEffectSize(t *testing.T) {
	tests := []struct {
		d    float64
		want EffectSizeCategory
	}{
		{0, EffectNegligible},
		{0.1, EffectNegligible},
		{0.3, EffectSmall},
		{-0.6, EffectMedium},
		{0.8, EffectLarge},
		{-2.5, EffectLarge},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategorizeEffectSize(tt.d), "d=%v", tt.d)
	}
}

func TestEffectSizeCategory_String(t *testing.T) {
	assert.Equal(t, "negligible", EffectNegligible.String())
	assert.Equal(t, "small", EffectSmall.String())
	assert.Equal(t, "medium", EffectMedium.String())
	assert.Equal(t, "large", EffectLarge.String())
	assert.Equal(t, "unknown", EffectSizeCategory(99).String())

	data, err := json.Marshal(struct {
		C EffectSizeCategory `json:"c"`
	}{EffectMedium})
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":"medium"}`, string(data))

	var decoded struct {
		C EffectSizeCategory `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"c":"large"}`), &decoded))
	assert.Equal(t, EffectLarge, decoded.C)
	assert.Error(t, json.Unmarshal([]byte(`{"c":"huge"}`), &decoded))
}

func spread(center time.Duration, n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = center + time.Duration(i%5)
	}
	return out
}

func TestCalculateCohensD(t *testing.T) {
	fast := spread(100, 50)
	slow := spread(1000, 50)

	d := CalculateCohensD(fast, slow)
	assert.Less(t, d, -0.8)
	assert.Equal(t, EffectLarge, CategorizeEffectSize(d))

	assert.Greater(t, CalculateCohensD(slow, fast), 0.8)
	assert.Equal(t, 0.0, CalculateCohensD(fast[:1], slow))

	constant := []time.Duration{5, 5, 5}
	assert.Equal(t, 0.0, CalculateCohensD(constant, constant))
}

func TestWelchTTest(t *testing.T) {
	t.Run("clearly different", func(t *testing.T) {
		tStat, p := WelchTTest(spread(100, 50), spread(1000, 50))
		assert.Less(t, tStat, 0.0)
		assert.Less(t, p, 0.05)
	})

	t.Run("identical", func(t *testing.T) {
		samples := spread(100, 20)
		tStat, p := WelchTTest(samples, samples)
		assert.Equal(t, 0.0, tStat)
		assert.InDelta(t, 1.0, p, 1e-9)
	})

	t.Run("zero variance", func(t *testing.T) {
		_, p := WelchTTest([]time.Duration{5, 5}, []time.Duration{5, 5})
		assert.Equal(t, 1.0, p)
	})

	t.Run("too few samples", func(t *testing.T) {
		tStat, p := WelchTTest([]time.Duration{1}, spread(10, 5))
		assert.Equal(t, 0.0, tStat)
		assert.Equal(t, 1.0, p)
	})

	t.Run("small df stays finite", func(t *testing.T) {
		_, p := WelchTTest([]time.Duration{1, 3}, []time.Duration{10, 14})
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	})
}

func TestConfidenceInterval(t *testing.T) {
	lower, upper := ConfidenceInterval(nil, 0.95)
	assert.Equal(t, time.Duration(0), lower)
	assert.Equal(t, time.Duration(0), upper)

	lower, upper = ConfidenceInterval([]time.Duration{42}, 0.95)
	assert.Equal(t, time.Duration(42), lower)
	assert.Equal(t, time.Duration(42), upper)

	// 1ms plus 0..4µs, twice over: mean 1.002ms, standard error ~0.47µs.
	samples := make([]time.Duration, 10)
	for i := range samples {
		samples[i] = time.Millisecond + time.Duration(i%5)*time.Microsecond
	}
	mean := time.Millisecond + 2*time.Microsecond
	l95, u95 := ConfidenceInterval(samples, 0.95)
	l99, u99 := ConfidenceInterval(samples, 0.99)
	assert.True(t, l95 < mean && u95 > mean, "95%% interval [%v, %v] must contain %v", l95, u95, mean)
	assert.Greater(t, u99-l99, u95-l95, "99%% interval must be wider")
	assert.InDelta(t, float64(2*1066), float64(u95-l95), 4)
	assert.InDelta(t, float64(2*1532), float64(u99-l99), 4)
}

func TestConfidenceInterval_RoundsBounds(t *testing.T) {
	// mean 1.5ns, margin 12.706*0.5 = 6.353ns.
	lower, upper := ConfidenceInterval([]time.Duration{1, 2}, 0.95)
	assert.Equal(t, time.Duration(-5), lower)
	assert.Equal(t, time.Duration(8), upper)
}

func TestTCriticalValue(t *testing.T) {
	assert.Equal(t, 2.571, tCriticalValue(5, 0.95))
	assert.Equal(t, 6.314, tCriticalValue(0, 0.90))
	assert.Equal(t, 2.750, tCriticalValue(30, 0.99))
	assert.Equal(t, 2.576, tCriticalValue(40, 0.99))
	assert.Equal(t, 1.96, tCriticalValue(100, 0.95))
	assert.Equal(t, 1.645, tCriticalValue(100, 0.5))
}
