// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sets implement set types on top of `map[T]struct{}`, with better ergonomics.
//
// Set is the plain unordered set. Ordered additionally remembers insertion order, which
// the scheduling passes need to stay deterministic.
package sets

// Set implements a Set for the key type T.
type Set[T comparable] map[T]struct{}

// Make returns an empty Set of the given type. Size is optional, and if given
// will reserve the expected size.
func Make[T comparable](size ...int) Set[T] {
	if len(size) == 0 {
		return make(Set[T])
	}
	return make(Set[T], size[0])
}

// MakeWith creates a Set[T] with the given elements inserted.
func MakeWith[T comparable](elements ...T) Set[T] {
	s := Make[T](len(elements))
	s.Insert(elements...)
	return s
}

// Has returns true if Set s has the given key.
func (s Set[T]) Has(key T) bool {
	_, found := s[key]
	return found
}

// Insert keys into set.
func (s Set[T]) Insert(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// Equal returns whether s and s2 have the exact same elements.
func (s Set[T]) Equal(s2 Set[T]) bool {
	if len(s) != len(s2) {
		return false
	}
	for k := range s {
		if !s2.Has(k) {
			return false
		}
	}
	return true
}

// Ordered is a set that preserves the order in which elements were first inserted.
//
// The zero value is ready to use.
type Ordered[T comparable] struct {
	index    map[T]int
	elements []T
}

// Insert appends the keys not yet in the set, in the given order.
// It returns the number of keys actually added.
func (o *Ordered[T]) Insert(keys ...T) (added int) {
	if o.index == nil {
		o.index = make(map[T]int, len(keys))
	}
	for _, key := range keys {
		if _, found := o.index[key]; found {
			continue
		}
		o.index[key] = len(o.elements)
		o.elements = append(o.elements, key)
		added++
	}
	return
}

// Has returns true if key was inserted.
func (o *Ordered[T]) Has(key T) bool {
	_, found := o.index[key]
	return found
}

// Len returns the number of elements.
func (o *Ordered[T]) Len() int { return len(o.elements) }

// Elements returns the elements in insertion order. The returned slice must not be modified.
func (o *Ordered[T]) Elements() []T { return o.elements }

// First returns the first inserted element. It panics if the set is empty.
func (o *Ordered[T]) First() T { return o.elements[0] }
