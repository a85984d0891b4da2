// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search implements the benchmarked search strategies.
//
// # Overview
//
// Each Strategy builds an Index from a dataset and answers lookups on it,
// reporting where the key was found and how many key comparisons it took:
//
//	┌───────────────┬──────────────────────┬───────────────────────────┐
//	│ Strategy      │ Structure            │ Comparisons per lookup    │
//	├───────────────┼──────────────────────┼───────────────────────────┤
//	│ linear-array  │ slice                │ position+1, or n on miss  │
//	│ linear-list   │ singly linked list   │ position+1, or n on miss  │
//	│ binary-array  │ sorted slice         │ midpoints probed          │
//	│ bst           │ unbalanced BST       │ nodes visited             │
//	└───────────────┴──────────────────────┴───────────────────────────┘
//
// # Thread Safety
//
// Built indexes are read-only and safe for concurrent lookups. Strategies
// are stateless.
package search

import "errors"

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound indicates that no strategy is registered under a name.
	ErrNotFound = errors.New("strategy not found")

	// ErrAlreadyRegistered indicates a duplicate strategy name.
	ErrAlreadyRegistered = errors.New("strategy already registered")

	// ErrNilStrategy indicates that a nil strategy was registered.
	ErrNilStrategy = errors.New("strategy must not be nil")
)

// NotFound is the Position reported when a key is absent.
const NotFound = -1

// -----------------------------------------------------------------------------
// Interfaces
// -----------------------------------------------------------------------------

// Hit is the outcome of a single lookup.
type Hit struct {
	// Position is the 0-based index of the key (array index, list
	// position, or tree depth). NotFound when the key is absent.
	Position int

	// Found reports whether the key was present.
	Found bool

	// Comparisons is the number of key comparisons performed.
	Comparisons int
}

// miss builds the not-found Hit.
func miss(comparisons int) Hit {
	return Hit{Position: NotFound, Comparisons: comparisons}
}

// Index is a built, searchable structure.
type Index interface {
	// Lookup searches for key.
	Lookup(key uint32) Hit

	// Len returns the number of stored keys.
	Len() int

	// MemoryBytes estimates the memory held by the structure.
	MemoryBytes() uint64
}

// Strategy builds an Index from a dataset.
//
// Description:
//
//	Build must not retain values; the caller may reuse the slice.
type Strategy interface {
	// Name is the stable identifier used on the CLI, in CSV rows and
	// as a metric label.
	Name() string

	// Description is a one-line human-readable summary.
	Description() string

	// Build constructs the searchable structure.
	Build(values []uint32) Index
}
