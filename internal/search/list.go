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

// listNode is a singly linked list cell.
type listNode struct {
	value uint32
	next  *listNode
}

var listNodeSize = uint64(unsafe.Sizeof(listNode{}))

// LinkedList scans a singly linked list from the head.
type LinkedList struct{}

// Name implements Strategy.
func (LinkedList) Name() string { return "linear-list" }

// Description implements Strategy.
func (LinkedList) Description() string { return "sequential scan over a singly linked list" }

// Build inserts values at the head, walking them backwards so that list
// order matches input order.
func (LinkedList) Build(values []uint32) Index {
	list := &List{}
	for i := len(values) - 1; i >= 0; i-- {
		list.PushFront(values[i])
	}
	return list
}

// List is a singly linked list of keys.
//
// Thread Safety: PushFront is not safe for concurrent use; Lookup is safe
// once building has finished.
type List struct {
	head *listNode
	len  int
}

// PushFront inserts value at the head of the list.
func (l *List) PushFront(value uint32) {
	l.head = &listNode{value: value, next: l.head}
	l.len++
}

// Values returns the list contents in order.
func (l *List) Values() []uint32 {
	out := make([]uint32, 0, l.len)
	for n := l.head; n != nil; n = n.next {
		out = append(out, n.value)
	}
	return out
}

// Lookup walks from the head, one comparison per visited node.
func (l *List) Lookup(key uint32) Hit {
	comparisons := 0
	position := 0
	for n := l.head; n != nil; n = n.next {
		comparisons++
		if n.value == key {
			return Hit{Position: position, Found: true, Comparisons: comparisons}
		}
		position++
	}
	return miss(comparisons)
}

// Len implements Index.
func (l *List) Len() int { return l.len }

// MemoryBytes implements Index.
func (l *List) MemoryBytes() uint64 {
	return uint64(l.len) * listNodeSize
}
