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
	"fmt"
	"sort"
	"sync"
)

// Registry maps strategy names to strategies.
//
// Description:
//
//	The Registry is the single place the runner and the CLI resolve
//	strategy names. Use DefaultRegistry for the built-in strategies.
//
// Thread Safety: Safe for concurrent use via read-write mutex.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates a new empty registry.
//
// Example:
//
//	registry := search.NewRegistry()
//	registry.MustRegister(search.BST{})
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// DefaultRegistry returns a registry holding the built-in strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(LinearArray{})
	r.MustRegister(LinkedList{})
	r.MustRegister(BinaryArray{})
	r.MustRegister(BST{})
	return r
}

// Register adds a strategy under its Name().
//
// Outputs:
//   - error: ErrNilStrategy if strategy is nil, ErrAlreadyRegistered if
//     the name is taken.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Register(strategy Strategy) error {
	if strategy == nil {
		return ErrNilStrategy
	}

	name := strategy.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.strategies[name] = strategy
	return nil
}

// MustRegister registers a strategy and panics on error.
//
// Should only be used during startup.
func (r *Registry) MustRegister(strategy Strategy) {
	if err := r.Register(strategy); err != nil {
		panic(fmt.Sprintf("search: failed to register strategy: %v", err))
	}
}

// Get returns the strategy registered under name.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// Resolve looks up every name, failing on the first unknown one.
//
// Outputs:
//   - []Strategy: Strategies in the order of names.
//   - error: Wraps ErrNotFound with the offending name.
func (r *Registry) Resolve(names []string) ([]Strategy, error) {
	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		s, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		out = append(out, s)
	}
	return out, nil
}

// List returns all registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered strategies.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}
