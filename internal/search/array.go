// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"slices"
	"unsafe"
)

const elemSize = uint64(unsafe.Sizeof(uint32(0)))

// -----------------------------------------------------------------------------
// Linear scan over an array
// -----------------------------------------------------------------------------

// LinearArray scans an unsorted slice from the front.
type LinearArray struct{}

// Name implements Strategy.
func (LinearArray) Name() string { return "linear-array" }

// Description implements Strategy.
func (LinearArray) Description() string { return "sequential scan over an unsorted array" }

// Build copies values into a new slice.
func (LinearArray) Build(values []uint32) Index {
	return &linearArrayIndex{values: slices.Clone(values)}
}

type linearArrayIndex struct {
	values []uint32
}

func (x *linearArrayIndex) Lookup(key uint32) Hit {
	return LinearSearch(x.values, key)
}

func (x *linearArrayIndex) Len() int { return len(x.values) }

func (x *linearArrayIndex) MemoryBytes() uint64 {
	return uint64(len(x.values)) * elemSize
}

// LinearSearch returns the first index of key in values.
//
// Comparisons is position+1 on a hit and len(values) on a miss.
func LinearSearch(values []uint32, key uint32) Hit {
	for i, v := range values {
		if v == key {
			return Hit{Position: i, Found: true, Comparisons: i + 1}
		}
	}
	return miss(len(values))
}

// -----------------------------------------------------------------------------
// Binary search over a sorted array
// -----------------------------------------------------------------------------

// BinaryArray sorts the dataset once and binary-searches it.
type BinaryArray struct{}

// Name implements Strategy.
func (BinaryArray) Name() string { return "binary-array" }

// Description implements Strategy.
func (BinaryArray) Description() string { return "binary search over a sorted array" }

// Build copies and sorts values ascending.
func (BinaryArray) Build(values []uint32) Index {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return &binaryArrayIndex{values: sorted}
}

type binaryArrayIndex struct {
	values []uint32
}

func (x *binaryArrayIndex) Lookup(key uint32) Hit {
	return BinarySearch(x.values, key)
}

func (x *binaryArrayIndex) Len() int { return len(x.values) }

func (x *binaryArrayIndex) MemoryBytes() uint64 {
	return uint64(len(x.values)) * elemSize
}

// BinarySearch finds key in an ascending slice.
//
// Description:
//
//	Classic iterative binary search. Each midpoint examined counts as one
//	comparison, whichever of the three outcomes it produces.
//
// Inputs:
//   - sorted: Ascending values. Unsorted input gives undefined results.
//   - key: The value to find.
//
// Outputs:
//   - Hit: Index of key, or NotFound. Comparisons is at most
//     floor(log2(n))+1.
func BinarySearch(sorted []uint32, key uint32) Hit {
	lo, hi := 0, len(sorted)-1
	comparisons := 0
	for lo <= hi {
		mid := lo + (hi-lo)/2
		comparisons++
		switch v := sorted[mid]; {
		case v == key:
			return Hit{Position: mid, Found: true, Comparisons: comparisons}
		case v < key:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return miss(comparisons)
}
