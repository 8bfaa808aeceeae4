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
// traversal

import (
	"runtime"

	"github.com/golang/glog"
)

// Forward traversal is hand-over-hand: the next element is locked before the
// current one is released, so a walker always stands on a linked element and
// links it follows cannot change under it. Walkers block only on elements
// further down the list, which keeps them deadlock-free against each other
// and against LockAll users.
//
// Backward steps go against list order and thus only try the lock of the
// previous element, backing off if it is busy.

// stepNext moves from locked e to e's successor.
//
// The successor is returned locked. At the end of the chain nil is returned.
// e is unlocked in either case.
func (b *Base[T]) stepNext(e *Element[T]) *Element[T] {
	n := e.next.Load()
	if n == nil || n.sentinel {
		b.unlock1(e)
		return nil
	}
	b.lock1(n)
	b.unlock1(e)
	return n
}

// stepPrev moves from locked e to e's predecessor.
//
// The predecessor is returned locked with ok=true. At head nil, true is
// returned. If e was removed while we were backing off, nil, false is
// returned. e is unlocked in all cases.
func (b *Base[T]) stepPrev(e *Element[T]) (p *Element[T], ok bool) {
	for {
		p = e.prev.Load()
		if p == nil || p.sentinel {
			b.unlock1(e)
			return nil, true
		}
		if b.tryLock1(p) {
			b.unlock1(e)
			return p, true
		}

		b.unlock1(e)
		runtime.Gosched()
		b.lock1(e)
		if !e.linked() {
			b.unlock1(e)
			return nil, false
		}
	}
}

// renumberIfNeeded assigns sequential numbers to all elements if structure
// changed since last time.
//
// It must not be called with structMu held.
func (b *Base[T]) renumberIfNeeded() {
	if !b.dirty.Load() {
		return
	}

	defer b.wlock()()

	// somebody else might have renumbered while we were waiting.
	// clear the flag before walking: mutations that come after us set it again.
	if !b.dirty.CompareAndSwap(true, false) {
		return
	}

	n := int64(0)
	for e := b.head.next.Load(); e != nil && !e.sentinel; e = e.next.Load() {
		e.number.Store(n)
		n++
	}
	if b.tail != nil {
		b.tail.number.Store(n)
	}

	b.renumbers.Add(1)
	renumberWalks.Inc()
	glog.V(2).Infof("%s: renumbered %d elements", b.name, n)
}

// seek returns element number i locked, or nil if there is no such element.
//
// The walk starts from the calling goroutine's position when it is usable,
// otherwise from the closer end of the list.
func (b *Base[T]) seek(i int) *Element[T] {
	var start *Element[T]
	k := -1

	// cursor is usable only while numbering is clean
	if c := b.cursors.Current(); c != nil && !b.dirty.Load() {
		kc := c.Number()
		switch {
		case kc <= i:
			start, k = c, kc
		case b.tail != nil && kc-i <= i:
			start, k = c, kc
		}
	}

	if start != nil {
		cursorLookups.WithLabelValues("hit").Inc()
		b.lock1(start)
		if !start.linked() {
			b.unlock1(start)
			start = nil
		}
	} else {
		cursorLookups.WithLabelValues("miss").Inc()
	}

	if start == nil {
		n := b.Len()
		// tail is not an element: walk from it only when there is an element to step back to
		if b.tail != nil && i >= n/2 && i < n && !b.dirty.Load() {
			start, k = b.tail, n
		} else {
			start, k = b.head, -1
		}
		b.lock1(start)
	}

	e := start
	for k < i {
		e = b.stepNext(e)
		if e == nil {
			return nil
		}
		k++
	}
	for k > i {
		p, ok := b.stepPrev(e)
		if !ok {
			// lost our position - walk from head instead
			e = b.head
			b.lock1(e)
			for k = -1; k < i; k++ {
				e = b.stepNext(e)
				if e == nil {
					return nil
				}
			}
			return e
		}
		if p == nil {
			return nil
		}
		e = p
		k--
	}
	if e.sentinel {
		b.unlock1(e)
		return nil
	}
	return e
}

// lockBefore returns locked element after which position i starts.
//
// For i=0 it is the head sentinel.
func (b *Base[T]) lockBefore(i int) *Element[T] {
	if i == 0 {
		b.lock1(b.head)
		return b.head
	}
	return b.seek(i - 1)
}

// At returns element number i.
//
// The element becomes the calling goroutine's current position.
// ErrOutOfRange is returned if there is no element i.
func (b *Base[T]) At(i int) (*Element[T], error) {
	if i < 0 {
		return nil, b.opError("at", i, ErrOutOfRange)
	}
	b.renumberIfNeeded()

	e := b.seek(i)
	if e == nil {
		return nil, b.opError("at", i, ErrOutOfRange)
	}
	b.cursors.SetCurrent(e)
	b.unlock1(e)
	return e, nil
}

// Advance moves the calling goroutine's position one element forward and
// returns the new current element.
//
// Without position Advance starts from the front. At the end of the
// container the position is cleared and ErrOutOfRange is returned.
func (b *Base[T]) Advance() (*Element[T], error) {
	e := b.cursors.Current()
	if e != nil {
		b.lock1(e)
		if !e.linked() {
			b.unlock1(e)
			e = nil
		}
	}
	if e == nil {
		e = b.head
		b.lock1(e)
	}

	e = b.stepNext(e)
	if e == nil {
		b.cursors.SetCurrent(nil)
		return nil, b.opError("advance", nil, ErrOutOfRange)
	}
	b.cursors.SetCurrent(e)
	b.unlock1(e)
	return e, nil
}

// Each calls f for every element from front to back until f returns false.
//
// f runs with the element locked: the element cannot be removed and its
// payload cannot be destroyed while f runs. f must not modify the
// container.
func (b *Base[T]) Each(f func(e *Element[T]) bool) {
	e := b.head
	b.lock1(e)
	for {
		e = b.stepNext(e)
		if e == nil {
			return
		}
		if !f(e) {
			b.unlock1(e)
			return
		}
	}
}

// Values returns payload values of all elements from front to back.
//
// Elements with null payload are skipped.
func (b *Base[T]) Values() []T {
	var v []T
	b.Each(func(e *Element[T]) bool {
		if x, err := e.Value(); err == nil {
			v = append(v, x)
		}
		return true
	})
	return v
}
