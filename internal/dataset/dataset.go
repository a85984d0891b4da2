// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset generates the randomized inputs searched by the benchmarks.
package dataset

import (
	"math/rand/v2"
	"time"
)

// Source is a seedable pseudo-random source.
//
// Thread Safety: NOT safe for concurrent use. Each benchmark goroutine
// owns its own Source.
type Source struct {
	seed uint64
	rng  *rand.Rand
}

// NewSource creates a Source.
//
// Inputs:
//   - seed: PCG seed. Zero seeds from the wall clock, so two runs differ.
//
// Outputs:
//   - *Source: Never nil.
func NewSource(seed uint64) *Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Source{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Seed returns the effective seed, including one derived from the clock.
func (s *Source) Seed() uint64 {
	return s.seed
}

// Intn returns a value in [0, max], inclusive on both ends.
func (s *Source) Intn(max uint32) uint32 {
	return uint32(s.rng.Uint64N(uint64(max) + 1))
}

// Generate returns a permutation of 0..n-1.
//
// Description:
//
//	Fills the slice with unique values in ascending order and then
//	permutes it with Shuffle.
//
// Inputs:
//   - src: Random source. Must not be nil.
//   - n: Number of values. Non-positive yields an empty slice.
//
// Outputs:
//   - []uint32: A permutation of 0..n-1. Never nil.
func Generate(src *Source, n int) []uint32 {
	if n <= 0 {
		return []uint32{}
	}
	values := make([]uint32, n)
	for i := range values {
		values[i] = uint32(i)
	}
	Shuffle(src, values)
	return values
}

// Shuffle permutes values in place.
//
// Every position i, in order, is swapped with a position drawn uniformly
// from the whole slice. This is the bounded-index swap the benchmarks have
// always used; it is not the unbiased Fisher–Yates variant, which draws
// from [i, n-1].
func Shuffle(src *Source, values []uint32) {
	if len(values) < 2 {
		return
	}
	last := uint32(len(values) - 1)
	for i := range values {
		j := src.Intn(last)
		values[i], values[j] = values[j], values[i]
	}
}

// RandomKey returns a lookup key in [0, maxKey].
func RandomKey(src *Source, maxKey uint32) uint32 {
	return src.Intn(maxKey)
}
