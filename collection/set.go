// Copyright (C) 2026  Nexedi SA and Contributors.
//                     Kirill Smelkov <kirr@nexedi.com>
//
// This program is free software: you can Use, Study, Modify and Redistribute
// it under the terms of the GNU General Public License version 3, or (at your
// option) any later version, as published by the Free Software Foundation.
//
// You can also Link and Combine this program with other software covered by
// the terms of any of the Free Software licenses or any of the Open Source
// Initiative approved licenses and Convey the resulting work. Corresponding
// source of such a combination shall include the source code for all other
// software used.
//
// This program is distributed WITHOUT ANY WARRANTY; without even the implied
// warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
//
// See COPYING file for full licensing terms.
// See https://www.nexedi.com/licensing for rationale and options.

package collection
// set

import (
	"fmt"
	"sync"

	"lab.nexedi.com/kirr/go123/xerr"

	"lab.nexedi.com/kirr/tslist/container"
)

// Set is a set of comparable values that remembers insertion order.
//
// Membership is indexed, so Contains and Remove do not walk the list.
type Set[T comparable] struct {
	mu    sync.Mutex // serializes membership changes
	l     *container.List[T]
	index map[T]*container.Element[T]
}

// NewSet creates new empty set.
//
// opt can be nil.
func NewSet[T comparable](opt *container.Options) *Set[T] {
	return &Set[T]{
		l:     container.NewList[T](opt),
		index: make(map[T]*container.Element[T]),
	}
}

// Add adds v to the set.
//
// It reports whether v was added, i.e. was not already there.
func (s *Set[T]) Add(v T) (_ bool, err error) {
	defer xerr.Contextf(&err, "set %s: add %v", s.l.Name(), v)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[v]; ok {
		return false, nil
	}
	e, err := s.l.PushBack(v)
	if err != nil {
		return false, err
	}
	s.index[v] = e
	return true, nil
}

// Remove removes v from the set.
//
// It reports whether v was there.
func (s *Set[T]) Remove(v T) (_ bool, err error) {
	defer xerr.Contextf(&err, "set %s: remove %v", s.l.Name(), v)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[v]
	if !ok {
		return false, nil
	}
	delete(s.index, v)
	ref, err := s.l.Remove(e)
	if err != nil {
		// index and list went out of sync - the list is used only by us
		panic(fmt.Sprintf("set %s: indexed value %v not in list: %s", s.l.Name(), v, err))
	}
	ref.XRelease()
	return true, nil
}

// Contains reports whether v is in the set.
func (s *Set[T]) Contains(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[v]
	return ok
}

// Len returns number of values in the set.
func (s *Set[T]) Len() int {
	return s.l.Len()
}

// Values returns set values in insertion order.
func (s *Set[T]) Values() []T {
	return s.l.Values()
}

// Clear removes all values.
func (s *Set[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.l.Clear()
	clear(s.index)
}
