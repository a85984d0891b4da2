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

import "unsafe"

type treeNode struct {
	value       uint32
	left, right *treeNode
}

var treeNodeSize = uint64(unsafe.Sizeof(treeNode{}))

// BST looks keys up in an unbalanced binary search tree.
type BST struct{}

// Name implements Strategy.
func (BST) Name() string { return "bst" }

// Description implements Strategy.
func (BST) Description() string { return "lookup in an unbalanced binary search tree" }

// Build inserts values in input order. A shuffled dataset gives an
// expected depth of O(log n); sorted input degenerates into a list.
func (BST) Build(values []uint32) Index {
	tree := &Tree{}
	for _, v := range values {
		tree.Insert(v)
	}
	return tree
}

// Tree is an unbalanced binary search tree of unique keys.
//
// Thread Safety: Insert is not safe for concurrent use; Lookup is safe
// once building has finished.
type Tree struct {
	root *treeNode
	size int
}

// Insert adds value to the tree. Duplicates are ignored.
//
// Outputs:
//   - bool: true if the value was inserted, false if already present.
func (t *Tree) Insert(value uint32) bool {
	link := &t.root
	for *link != nil {
		n := *link
		switch {
		case value < n.value:
			link = &n.left
		case value > n.value:
			link = &n.right
		default:
			return false
		}
	}
	*link = &treeNode{value: value}
	t.size++
	return true
}

// Lookup descends from the root, one comparison per visited node.
// Position is the depth of the matching node (root = 0).
func (t *Tree) Lookup(key uint32) Hit {
	comparisons := 0
	depth := 0
	for n := t.root; n != nil; depth++ {
		comparisons++
		switch {
		case key == n.value:
			return Hit{Position: depth, Found: true, Comparisons: comparisons}
		case key < n.value:
			n = n.left
		default:
			n = n.right
		}
	}
	return miss(comparisons)
}

// Height returns the number of nodes on the longest root-to-leaf path.
func (t *Tree) Height() int {
	if t.root == nil {
		return 0
	}
	type frame struct {
		node  *treeNode
		depth int
	}
	height := 0
	stack := []frame{{t.root, 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > height {
			height = f.depth
		}
		if f.node.left != nil {
			stack = append(stack, frame{f.node.left, f.depth + 1})
		}
		if f.node.right != nil {
			stack = append(stack, frame{f.node.right, f.depth + 1})
		}
	}
	return height
}

// InOrder returns the keys in ascending order.
func (t *Tree) InOrder() []uint32 {
	out := make([]uint32, 0, t.size)
	var stack []*treeNode
	n := t.root
	for n != nil || len(stack) > 0 {
		for n != nil {
			stack = append(stack, n)
			n = n.left
		}
		n = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n.value)
		n = n.right
	}
	return out
}

// Len implements Index.
func (t *Tree) Len() int { return t.size }

// MemoryBytes implements Index.
func (t *Tree) MemoryBytes() uint64 {
	return uint64(t.size) * treeNodeSize
}
