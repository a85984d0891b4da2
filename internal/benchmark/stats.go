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
	"math"
	"slices"
	"time"
)

// -----------------------------------------------------------------------------
// Running moments
// -----------------------------------------------------------------------------

// Accumulator keeps running sums for mean and standard deviation.
//
// Description:
//
//	Accumulator stores count, sum, sum of squares, min and max so that
//	summaries can be produced without retaining samples. Variance is the
//	population variance E[x²] − E[x]²; rounding can push it slightly below
//	zero, in which case it is clamped to 0.
//
// Thread Safety: Not safe for concurrent use.
//
// Example:
//
//	var acc Accumulator
//	for _, c := range comparisons {
//	    acc.Add(float64(c))
//	}
//	fmt.Printf("%.2f ± %.2f\n", acc.Mean(), acc.StdDev())
type Accumulator struct {
	n     int
	sum   float64
	sumSq float64
	min   float64
	max   float64
}

// Add records one observation.
func (a *Accumulator) Add(x float64) {
	if a.n == 0 || x < a.min {
		a.min = x
	}
	if a.n == 0 || x > a.max {
		a.max = x
	}
	a.n++
	a.sum += x
	a.sumSq += x * x
}

// Count returns the number of observations.
func (a *Accumulator) Count() int { return a.n }

// Mean returns the arithmetic mean, or 0 with no observations.
func (a *Accumulator) Mean() float64 {
	if a.n == 0 {
		return 0
	}
	return a.sum / float64(a.n)
}

// Variance returns the population variance, never negative.
func (a *Accumulator) Variance() float64 {
	if a.n == 0 {
		return 0
	}
	mean := a.Mean()
	v := a.sumSq/float64(a.n) - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

// SampleVariance returns the Bessel-corrected variance, or 0 below two
// observations.
func (a *Accumulator) SampleVariance() float64 {
	if a.n < 2 {
		return 0
	}
	return a.Variance() * float64(a.n) / float64(a.n-1)
}

// StdDev returns the population standard deviation.
func (a *Accumulator) StdDev() float64 {
	return math.Sqrt(a.Variance())
}

// Min returns the smallest observation, or 0 with none.
func (a *Accumulator) Min() float64 { return a.min }

// Max returns the largest observation, or 0 with none.
func (a *Accumulator) Max() float64 { return a.max }

// Moments snapshots the accumulator.
func (a *Accumulator) Moments() Moments {
	return Moments{
		Mean:   a.Mean(),
		StdDev: a.StdDev(),
		Min:    a.Min(),
		Max:    a.Max(),
	}
}

// Moments is a mean / standard deviation / range summary.
type Moments struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func accumulate(samples []time.Duration) Accumulator {
	var acc Accumulator
	for _, s := range samples {
		acc.Add(float64(s))
	}
	return acc
}

// -----------------------------------------------------------------------------
// Latency distribution
// -----------------------------------------------------------------------------

// LatencyStats holds latency percentile statistics.
//
// Description:
//
//	Percentiles use linear interpolation between closest ranks. CI95Lower
//	and CI95Upper bound the mean at 95% confidence.
//
// Thread Safety: Safe for concurrent read access after creation.
type LatencyStats struct {
	Min       time.Duration `json:"min"`
	Max       time.Duration `json:"max"`
	Mean      time.Duration `json:"mean"`
	StdDev    time.Duration `json:"stddev"`
	P50       time.Duration `json:"p50"`
	P90       time.Duration `json:"p90"`
	P95       time.Duration `json:"p95"`
	P99       time.Duration `json:"p99"`
	P999      time.Duration `json:"p999"`
	CI95Lower time.Duration `json:"ci95_lower"`
	CI95Upper time.Duration `json:"ci95_upper"`
}

// CalculateLatencyStats computes latency statistics from samples.
//
// Inputs:
//   - samples: Duration samples. Not modified.
//
// Outputs:
//   - LatencyStats: Computed statistics.
//   - error: ErrNoSamples if samples is empty.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func CalculateLatencyStats(samples []time.Duration) (LatencyStats, error) {
	if len(samples) == 0 {
		return LatencyStats{}, ErrNoSamples
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	acc := accumulate(samples)
	lower, upper := ConfidenceInterval(samples, 0.95)

	return LatencyStats{
		Min:       sorted[0],
		Max:       sorted[len(sorted)-1],
		Mean:      time.Duration(acc.Mean()),
		StdDev:    time.Duration(acc.StdDev()),
		P50:       percentile(sorted, 0.5),
		P90:       percentile(sorted, 0.9),
		P95:       percentile(sorted, 0.95),
		P99:       percentile(sorted, 0.99),
		P999:      percentile(sorted, 0.999),
		CI95Lower: lower,
		CI95Upper: upper,
	}, nil
}

// percentile interpolates the p-th percentile of ascending samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}

	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return time.Duration(float64(sorted[lo])*(1-frac) + float64(sorted[hi])*frac)
}

// RemoveOutliers drops samples outside the IQR fences.
//
// Description:
//
//	Keeps values in [Q1 − threshold·IQR, Q3 + threshold·IQR]. Fewer than
//	four samples are returned unchanged, as is the input when filtering
//	would discard more than half of it.
//
// Inputs:
//   - samples: Duration samples. Not modified.
//   - threshold: IQR multiplier (1.5 mild, 3.0 extreme).
//
// Outputs:
//   - []time.Duration: The retained samples in input order.
func RemoveOutliers(samples []time.Duration, threshold float64) []time.Duration {
	if len(samples) < 4 {
		return samples
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)
	fence := time.Duration(threshold * float64(q3-q1))
	lowerBound, upperBound := q1-fence, q3+fence

	filtered := make([]time.Duration, 0, len(samples))
	for _, s := range samples {
		if s >= lowerBound && s <= upperBound {
			filtered = append(filtered, s)
		}
	}

	if len(filtered) < len(samples)/2 {
		return samples
	}
	return filtered
}

// -----------------------------------------------------------------------------
// Significance
// -----------------------------------------------------------------------------

// EffectSizeCategory categorizes effect sizes using Cohen's conventions:
// negligible (<0.2), small (<0.5), medium (<0.8), large (≥0.8).
type EffectSizeCategory int

const (
	EffectNegligible EffectSizeCategory = iota
	EffectSmall
	EffectMedium
	EffectLarge
)

// String returns the category name.
func (e EffectSizeCategory) String() string {
	switch e {
	case EffectNegligible:
		return "negligible"
	case EffectSmall:
		return "small"
	case EffectMedium:
		return "medium"
	case EffectLarge:
		return "large"
	default:
		return "unknown"
	}
}

// MarshalText encodes the category by name.
func (e EffectSizeCategory) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes a category name written by MarshalText.
func (e *EffectSizeCategory) UnmarshalText(text []byte) error {
	for c := EffectNegligible; c <= EffectLarge; c++ {
		if c.String() == string(text) {
			*e = c
			return nil
		}
	}
	return fmt.Errorf("unknown effect size category %q", text)
}

// CategorizeEffectSize returns the category of |d|.
//
// Example:
//
//	CategorizeEffectSize(0.3)  // EffectSmall
//	CategorizeEffectSize(-0.9) // EffectLarge
func CategorizeEffectSize(d float64) EffectSizeCategory {
	switch abs := math.Abs(d); {
	case abs < 0.2:
		return EffectNegligible
	case abs < 0.5:
		return EffectSmall
	case abs < 0.8:
		return EffectMedium
	default:
		return EffectLarge
	}
}

// CalculateCohensD returns the standardized mean difference of two
// sample sets using the pooled sample standard deviation.
//
// Description:
//
//	Positive d means samples1 is slower (larger) than samples2. Returns 0
//	when either set has fewer than two samples or the pooled deviation is
//	zero.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func CalculateCohensD(samples1, samples2 []time.Duration) float64 {
	if len(samples1) < 2 || len(samples2) < 2 {
		return 0
	}

	a, b := accumulate(samples1), accumulate(samples2)
	n1, n2 := float64(a.Count()), float64(b.Count())

	pooled := math.Sqrt(((n1-1)*a.SampleVariance() + (n2-1)*b.SampleVariance()) / (n1 + n2 - 2))
	if pooled == 0 {
		return 0
	}
	return (a.Mean() - b.Mean()) / pooled
}

// WelchTTest performs Welch's unequal-variance t-test.
//
// Description:
//
//	Computes the t statistic and the Welch–Satterthwaite degrees of
//	freedom, then approximates the two-tailed p-value with the normal
//	distribution, inflating |t| for small df.
//
// Inputs:
//   - samples1, samples2: At least two samples each.
//
// Outputs:
//   - tStatistic: Negative if samples1 is faster than samples2.
//   - pValue: Approximate two-tailed p-value; 1 when the test cannot be
//     computed (too few samples or zero variance).
//
// Limitations:
//   - The p-value is an approximation and drifts for df < 30.
func WelchTTest(samples1, samples2 []time.Duration) (tStatistic float64, pValue float64) {
	if len(samples1) < 2 || len(samples2) < 2 {
		return 0, 1
	}

	a, b := accumulate(samples1), accumulate(samples2)
	va := a.SampleVariance() / float64(a.Count())
	vb := b.SampleVariance() / float64(b.Count())

	se := math.Sqrt(va + vb)
	if se == 0 {
		return 0, 1
	}
	tStatistic = (a.Mean() - b.Mean()) / se

	denom := va*va/float64(a.Count()-1) + vb*vb/float64(b.Count()-1)
	if denom == 0 {
		return tStatistic, 1
	}
	df := (va + vb) * (va + vb) / denom

	z := math.Abs(tStatistic)
	if df < 30 && df > 2 {
		z *= math.Sqrt((df - 2) / df)
	}
	return tStatistic, 2 * normalCDF(-z)
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// ConfidenceInterval returns a symmetric interval around the sample mean.
//
// Description:
//
//	Uses Student t critical values below 30 samples and z-scores above.
//	Supported levels are 0.90, 0.95 and 0.99; anything else falls back to
//	the nearest lower supported level (minimum 0.90).
//
// Outputs:
//   - lower, upper: Interval bounds rounded to the nearest nanosecond. A
//     single sample yields a zero-width interval; no samples yields (0, 0).
func ConfidenceInterval(samples []time.Duration, confidenceLevel float64) (lower, upper time.Duration) {
	switch len(samples) {
	case 0:
		return 0, 0
	case 1:
		return samples[0], samples[0]
	}

	acc := accumulate(samples)
	n := acc.Count()
	stdErr := math.Sqrt(acc.SampleVariance() / float64(n))
	margin := tCriticalValue(n-1, confidenceLevel) * stdErr

	mean := acc.Mean()
	return time.Duration(math.Round(mean - margin)), time.Duration(math.Round(mean + margin))
}

// Two-tailed Student t critical values for df 1..30.
var (
	t90 = [30]float64{6.314, 2.920, 2.353, 2.132, 2.015, 1.943, 1.895, 1.860, 1.833, 1.812,
		1.796, 1.782, 1.771, 1.761, 1.753, 1.746, 1.740, 1.734, 1.729, 1.725,
		1.721, 1.717, 1.714, 1.711, 1.708, 1.706, 1.703, 1.701, 1.699, 1.697}
	t95 = [30]float64{12.706, 4.303, 3.182, 2.776, 2.571, 2.447, 2.365, 2.306, 2.262, 2.228,
		2.201, 2.179, 2.160, 2.145, 2.131, 2.120, 2.110, 2.101, 2.093, 2.086,
		2.080, 2.074, 2.069, 2.064, 2.060, 2.056, 2.052, 2.048, 2.045, 2.042}
	t99 = [30]float64{63.657, 9.925, 5.841, 4.604, 4.032, 3.707, 3.499, 3.355, 3.250, 3.169,
		3.106, 3.055, 3.012, 2.977, 2.947, 2.921, 2.898, 2.878, 2.861, 2.845,
		2.831, 2.819, 2.807, 2.797, 2.787, 2.779, 2.771, 2.763, 2.756, 2.750}
)

// tCriticalValue returns the two-tailed critical value for df degrees of
// freedom, switching to z-scores past df 30.
func tCriticalValue(df int, confidenceLevel float64) float64 {
	if df < 1 {
		df = 1
	}
	switch {
	case confidenceLevel >= 0.99:
		if df > 30 {
			return 2.576
		}
		return t99[df-1]
	case confidenceLevel >= 0.95:
		if df > 30 {
			return 1.96
		}
		return t95[df-1]
	default:
		if df > 30 {
			return 1.645
		}
		return t90[df-1]
	}
}
