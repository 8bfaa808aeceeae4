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
// linked elements

import (
	"sync/atomic"

	"lab.nexedi.com/kirr/tslist/xcommon/xsync"
)

// Element is a node of a linked container.
//
// An element holds 1 reference to its payload and non-owning links to its
// neighbours - the topology is owned by the container, not by elements.
//
// Element states:
//
//	fresh     -> removed=y  not yet inserted anywhere
//	inserted  -> removed=n  reachable from container head
//	removed   -> removed=y  unlinked; as good as fresh
//	destroyed -> removed=y destroyed=y  payload reference dropped
//
// Every element is a Lockable. Links of an element and its state flags
// change only while the element is locked, so holding an element lock pins
// its links. Reading links and flags does not need the lock.
type Element[T any] struct {
	xsync.Lockable

	next, prev atomic.Pointer[Element[T]]

	removed   atomic.Bool
	destroyed atomic.Bool
	sentinel  bool

	// position index; valid while owning container does not need renumbering
	number atomic.Int64

	owner atomic.Pointer[Base[T]] // container e was inserted into; nil for bare chains

	payload atomic.Pointer[Ref[T]]
}

// NewElement creates new fresh element which takes over a reference to ref.
//
// ref can be nil - then Value reports ErrNullPayload.
func NewElement[T any](ref *Ref[T]) *Element[T] {
	e := &Element[T]{}
	e.removed.Store(true)
	if ref != nil {
		e.payload.Store(ref)
	}
	return e
}

// NewHead creates a sentinel element.
//
// A sentinel is always linked and can never be removed. It can be used to
// build element chains without a container:
//
//	head := NewHead[int]()
//	head.InsertAfter(NewElement(NewRef(1, nil)))
func NewHead[T any]() *Element[T] {
	e := &Element[T]{sentinel: true}
	e.number.Store(-1)
	return e
}

// Next returns element following e, or nil.
func (e *Element[T]) Next() *Element[T] { return e.next.Load() }

// Prev returns element preceding e, or nil.
func (e *Element[T]) Prev() *Element[T] { return e.prev.Load() }

// SetNext sets e's next link.
//
// It only stores the pointer: keeping the topology consistent is the
// caller's business.
func (e *Element[T]) SetNext(n *Element[T]) { e.next.Store(n) }

// SetPrev sets e's prev link.
func (e *Element[T]) SetPrev(p *Element[T]) { e.prev.Store(p) }

// IsRemoved reports whether e is not part of any container.
func (e *Element[T]) IsRemoved() bool { return e.removed.Load() }

// IsDestroyed reports whether e's destruction has started.
func (e *Element[T]) IsDestroyed() bool { return e.destroyed.Load() }

// Number returns e's position as of last renumbering of its container.
func (e *Element[T]) Number() int { return int(e.number.Load()) }

// Value returns payload value of e.
//
// ErrNullPayload is returned if e has no payload, e.g. because e was
// already destroyed.
func (e *Element[T]) Value() (T, error) {
	e.Lock()
	defer e.Unlock()

	ref := e.payload.Load()
	if ref == nil {
		var zero T
		return zero, ErrNullPayload
	}
	return ref.Value(), nil
}

// Ref returns new reference to e's payload, or nil if e has no payload.
//
// The caller must Release the returned reference.
func (e *Element[T]) Ref() *Ref[T] {
	e.Lock()
	defer e.Unlock()

	ref := e.payload.Load()
	ref.XIncref()
	return ref
}

// InsertAfter links fresh element n right after e.
//
// It is no-op returning false if e or n is destroyed, e is not linked or n
// is already linked somewhere.
//
// NOTE InsertAfter and RemoveNext work on bare element chains. Containers
// do their own bookkeeping on top and their elements must be changed only
// via container methods.
func (e *Element[T]) InsertAfter(n *Element[T]) bool {
	for {
		switch insertBetween(e, n, e.next.Load(), xsync.LockAll) {
		case spliceOK:
			return true
		case spliceGone:
			return false
		}
	}
}

// RemoveNext unlinks the element following e and returns it.
//
// nil is returned if there is nothing to remove after e.
func (e *Element[T]) RemoveNext() *Element[T] {
	for {
		victim := e.next.Load()
		if victim == nil || victim.sentinel {
			return nil
		}
		switch unlinkAfter(e, victim, xsync.LockAll, nil) {
		case spliceOK:
			return victim
		case spliceGone:
			return nil
		}
	}
}

// locker returns lock of e; nil e has nil lock.
func (e *Element[T]) locker() *xsync.Lockable {
	if e == nil {
		return nil
	}
	return &e.Lockable
}

// linked reports whether e is part of a chain.
func (e *Element[T]) linked() bool {
	return e.sentinel || !e.removed.Load()
}

// destroy drops e's payload reference.
//
// destroyed is set first so that operations racing with us back off. The
// payload is released under e's lock - a goroutine in the middle of Value
// either finishes before or sees null payload after. The second lock cycle
// lets goroutines blocked on e observe the final state.
func (e *Element[T]) destroy() {
	if !e.destroyed.CompareAndSwap(false, true) {
		return
	}

	e.Lock()
	ref := e.payload.Swap(nil)
	ref.XRelease()
	e.Unlock()

	e.Lock()
	e.Unlock()
}

// ---- splicing ----

// lockFunc acquires a set of element locks in list order.
type lockFunc func(lockv ...*xsync.Lockable) (unlock func())

type spliceStatus int

const (
	spliceOK    spliceStatus = iota
	spliceStale                      // neighbours changed while we were locking; retry
	spliceGone                       // anchor or subject is not in a state to splice
)

// insertBetween links n in between prev and next.
//
// prev, n and next are locked in list order and the neighbourhood is
// re-validated under the locks before anything is changed.
func insertBetween[T any](prev, n, next *Element[T], lock lockFunc) spliceStatus {
	if prev.destroyed.Load() || n.destroyed.Load() {
		return spliceGone
	}

	unlock := lock(prev.locker(), n.locker(), next.locker())
	defer unlock()

	switch {
	case prev.destroyed.Load() || n.destroyed.Load():
		return spliceGone
	case !n.removed.Load() || n.sentinel:
		return spliceGone // n is already linked
	case !prev.linked():
		return spliceGone
	case prev.next.Load() != next:
		return spliceStale
	}

	n.prev.Store(prev)
	n.next.Store(next)
	if next != nil {
		next.prev.Store(n)
	}
	n.owner.Store(prev.owner.Load())
	n.removed.Store(false)
	prev.next.Store(n) // publish
	return spliceOK
}

// unlinkAfter unlinks victim which must be right after prev.
//
// unlinked, if !nil, is called with all locks still held after victim is
// off the chain.
func unlinkAfter[T any](prev, victim *Element[T], lock lockFunc, unlinked func(prev, victim *Element[T])) spliceStatus {
	if victim.sentinel {
		return spliceGone
	}
	next := victim.next.Load()

	unlock := lock(prev.locker(), victim.locker(), next.locker())
	defer unlock()

	switch {
	case victim.removed.Load():
		return spliceGone
	case !prev.linked() || prev.next.Load() != victim || victim.next.Load() != next:
		return spliceStale
	}

	victim.removed.Store(true)
	prev.next.Store(next)
	if next != nil {
		next.prev.Store(prev)
	}
	victim.next.Store(nil)
	victim.prev.Store(nil)

	if unlinked != nil {
		unlinked(prev, victim)
	}
	return spliceOK
}
