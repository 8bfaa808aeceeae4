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

package container
// singly linked list

import (
	"sync/atomic"
)

// SList is a thread-safe singly linked list.
//
// Elements can be added at both ends, but only removed from the front, after
// a known element, or by reference - the latter has to find the predecessor
// by walking forward.
type SList[T any] struct {
	Base[T]

	// hint: probably the last element. Verified under locks before use.
	last atomic.Pointer[Element[T]]
}

// NewSList creates new empty singly linked list.
//
// opt can be nil.
func NewSList[T any](opt *Options) *SList[T] {
	l := &SList[T]{}
	l.init(opt, false)
	l.last.Store(l.head)
	l.onUnlink = func(prev, victim *Element[T]) {
		l.last.CompareAndSwap(victim, prev)
	}
	return l
}

// findLast returns element that looks like the last one.
func (l *SList[T]) findLast() *Element[T] {
	e := l.last.Load()
	if e == nil || !e.linked() {
		e = l.head
	}
	for n := e.next.Load(); n != nil; n = e.next.Load() {
		e = n
	}
	return e
}

// findPrev returns element that looks like e's predecessor, or nil.
//
// The search starts from the calling goroutine's position if it lies before
// e; otherwise from head.
func (l *SList[T]) findPrev(e *Element[T]) *Element[T] {
	var startv []*Element[T]
	if c := l.cursors.Current(); c != nil && !l.dirty.Load() && c.Number() < e.Number() {
		startv = append(startv, c)
	}
	startv = append(startv, l.head)

	for _, p := range startv {
		for ; p != nil; p = p.next.Load() {
			if p.next.Load() == e {
				return p
			}
		}
	}
	return nil
}

// PushBack appends v and returns the new element.
func (l *SList[T]) PushBack(v T) (*Element[T], error) {
	ref := NewRef(v, nil)
	e, err := l.PushBackRef(ref)
	if err != nil {
		ref.Release()
	}
	return e, err
}

// PushBackRef appends payload ref.
//
// The container takes over the caller's reference. On error the reference
// stays with the caller.
func (l *SList[T]) PushBackRef(ref *Ref[T]) (*Element[T], error) {
	defer l.rlock()()

	e, err := l.newElement(ref)
	if err != nil {
		return nil, l.opError("pushback", nil, err)
	}

	l.dirty.Store(true)
	for {
		last := l.findLast()
		if insertBetween(last, e, nil, l.lockElems) == spliceOK {
			l.count.Add(1)
			l.last.Store(e)
			return e, nil
		}
		l.last.CompareAndSwap(last, nil)
	}
}

// Remove removes element e and returns its payload.
//
// ErrOutOfRange is returned if e is not in the list.
func (l *SList[T]) Remove(e *Element[T]) (*Ref[T], error) {
	defer l.rlock()()

	if !l.owns(e) || e.sentinel {
		return nil, l.opError("remove", nil, ErrOutOfRange)
	}

	l.dirty.Store(true)
	for {
		prev := l.findPrev(e)
		if prev == nil {
			return nil, l.opError("remove", nil, ErrOutOfRange)
		}
		switch unlinkAfter(prev, e, l.lockElems, l.unlinked) {
		case spliceOK:
			return l.finishRemove(e), nil
		case spliceGone:
			return nil, l.opError("remove", nil, ErrOutOfRange)
		}
	}
}
