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
// doubly linked list

// List is a thread-safe doubly linked list.
//
// In addition to SList operations it can remove elements from the back and
// by reference in O(1), and walk backwards.
type List[T any] struct {
	Base[T]
}

// NewList creates new empty doubly linked list.
//
// opt can be nil.
func NewList[T any](opt *Options) *List[T] {
	l := &List[T]{}
	l.init(opt, true)
	return l
}

// insertBefore links n right before at.
func (l *List[T]) insertBefore(at, n *Element[T]) bool {
	l.dirty.Store(true)
	for {
		prev := at.prev.Load()
		if prev == nil || !at.linked() {
			return false
		}
		if insertBetween(prev, n, at, l.lockElems) == spliceOK {
			l.count.Add(1)
			return true
		}
	}
}

// PushBack appends v and returns the new element.
func (l *List[T]) PushBack(v T) (*Element[T], error) {
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
func (l *List[T]) PushBackRef(ref *Ref[T]) (*Element[T], error) {
	defer l.rlock()()

	e, err := l.newElement(ref)
	if err != nil {
		return nil, l.opError("pushback", nil, err)
	}
	l.insertBefore(l.tail, e) // tail is always linked
	return e, nil
}

// InsertBefore inserts v right before element at.
func (l *List[T]) InsertBefore(at *Element[T], v T) (*Element[T], error) {
	ref := NewRef(v, nil)
	e, err := l.InsertBeforeRef(at, ref)
	if err != nil {
		ref.Release()
	}
	return e, err
}

// InsertBeforeRef inserts payload ref right before element at.
//
// ErrOutOfRange is returned if at is not in the list.
func (l *List[T]) InsertBeforeRef(at *Element[T], ref *Ref[T]) (*Element[T], error) {
	defer l.rlock()()

	if !l.owns(at) {
		return nil, l.opError("insertbefore", nil, ErrOutOfRange)
	}
	e, err := l.newElement(ref)
	if err != nil {
		return nil, l.opError("insertbefore", nil, err)
	}
	if !l.insertBefore(at, e) {
		l.dropElement(e)
		return nil, l.opError("insertbefore", nil, ErrOutOfRange)
	}
	return e, nil
}

// Back returns the last element, or nil if the list is empty.
func (l *List[T]) Back() *Element[T] {
	e := l.tail.prev.Load()
	if e == nil || e.sentinel {
		return nil
	}
	return e
}

// PopBack removes the last element and returns its payload.
//
// The caller must Release the returned reference.
// ErrOutOfRange is returned if the list is empty.
func (l *List[T]) PopBack() (*Ref[T], error) {
	defer l.rlock()()

	l.dirty.Store(true)
	for {
		victim := l.tail.prev.Load()
		if victim == nil || victim.sentinel {
			return nil, l.opError("popback", nil, ErrOutOfRange)
		}
		prev := victim.prev.Load()
		if prev == nil {
			continue // victim is being removed
		}
		if unlinkAfter(prev, victim, l.lockElems, l.unlinked) == spliceOK {
			return l.finishRemove(victim), nil
		}
	}
}

// Remove removes element e and returns its payload.
//
// ErrOutOfRange is returned if e is not in the list.
func (l *List[T]) Remove(e *Element[T]) (*Ref[T], error) {
	defer l.rlock()()

	if !l.owns(e) || e.sentinel {
		return nil, l.opError("remove", nil, ErrOutOfRange)
	}

	l.dirty.Store(true)
	for {
		prev := e.prev.Load()
		if prev == nil || !e.linked() {
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

// EachReverse calls f for every element from back to front until f returns
// false.
//
// f runs with the element locked and must not modify the list. If the
// element EachReverse stands on is removed concurrently the walk stops.
func (l *List[T]) EachReverse(f func(e *Element[T]) bool) {
	e := l.tail
	l.lock1(e)
	for {
		p, ok := l.stepPrev(e)
		if p == nil || !ok {
			return
		}
		e = p
		if !f(e) {
			l.unlock1(e)
			return
		}
	}
}
