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
// container base

import (
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"lab.nexedi.com/kirr/tslist/xcommon/xsync"
)

// Options configure a container.
type Options struct {
	Name         string `yaml:"name"`          // used in errors and logs
	MaxLen       int    `yaml:"maxlen"`        // element creation fails beyond this; 0 = unbounded
	CursorShards int    `yaml:"cursor-shards"` // shards in per-goroutine position table
	ThreadUnsafe bool   `yaml:"thread-unsafe"` // start with thread safety disabled
}

// Base is the part common to all linked containers.
//
// It owns the head sentinel, keeps element count and renumbering state,
// per-goroutine positions, and implements the operations that work the
// same for singly and doubly linked lists.
type Base[T any] struct {
	name   string
	maxLen int64

	// structMu is held shared by element mutations and exclusive by
	// whole-structure operations (Clear, renumbering).
	//
	// NOTE structMu is not reentrant: operations never call each other
	// while holding it, and callbacks passed to Each must not modify the
	// container.
	structMu sync.RWMutex

	head *Element[T] // sentinel
	tail *Element[T] // sentinel; nil for singly linked lists

	count     atomic.Int64
	reserved  atomic.Int64 // elements created or being created; only with maxLen
	dirty     atomic.Bool  // numbering needs to be recomputed
	renumbers atomic.Int64
	safe      atomic.Bool

	cursors *Cursors[T]

	// onUnlink, if set, is called under element locks for every unlinked element
	onUnlink func(prev, victim *Element[T])
}

// lock order: Base.structMu > Element > cursorShard.mu
//             Element > Element in list order (LockAll retries otherwise)

func (b *Base[T]) init(opt *Options, doubly bool) {
	if opt == nil {
		opt = &Options{}
	}
	b.name = opt.Name
	if b.name == "" {
		b.name = "list"
	}
	b.maxLen = int64(opt.MaxLen)
	b.cursors = newCursors[T](opt.CursorShards)

	b.head = NewHead[T]()
	b.head.owner.Store(b)
	if doubly {
		b.tail = NewHead[T]()
		b.tail.owner.Store(b)
		b.head.next.Store(b.tail)
		b.tail.prev.Store(b.head)
	}

	b.safe.Store(true)
	if opt.ThreadUnsafe {
		b.DisableThreadSafety()
	}
}

// Name returns container name.
func (b *Base[T]) Name() string { return b.name }

// Len returns number of elements in the container.
func (b *Base[T]) Len() int { return int(b.count.Load()) }

// Empty reports whether the container has no elements.
func (b *Base[T]) Empty() bool { return b.Len() == 0 }

// NeedsRenumber reports whether element numbers are stale.
func (b *Base[T]) NeedsRenumber() bool { return b.dirty.Load() }

// Renumbers returns how many renumbering walks the container performed.
func (b *Base[T]) Renumbers() int { return int(b.renumbers.Load()) }

// Cursors returns per-goroutine positions of the container.
func (b *Base[T]) Cursors() *Cursors[T] { return b.cursors }

// Current returns element the calling goroutine stands on, or nil.
func (b *Base[T]) Current() *Element[T] { return b.cursors.Current() }

// ThreadSafe reports whether internal locking is enabled.
func (b *Base[T]) ThreadSafe() bool { return b.safe.Load() }

// EnableThreadSafety turns internal locking and per-goroutine positions on.
//
// It must not be called while other operations on the container are in
// progress.
func (b *Base[T]) EnableThreadSafety() {
	b.safe.Store(true)
	b.cursors.Enable()
}

// DisableThreadSafety turns internal locking off.
//
// After this the container is no longer safe for concurrent use: the caller
// takes on that only one goroutine uses it at a time. All goroutines share
// one position. It must not be called while other operations on the
// container are in progress.
func (b *Base[T]) DisableThreadSafety() {
	b.safe.Store(false)
	b.cursors.Disable()
}

// ---- locking ----

func nop() {}

// lockElems locks elements in list order; it is no-op without thread safety.
func (b *Base[T]) lockElems(lockv ...*xsync.Lockable) (unlock func()) {
	if !b.safe.Load() {
		return nop
	}
	return xsync.LockAll(lockv...)
}

func (b *Base[T]) lock1(e *Element[T]) {
	if b.safe.Load() {
		e.Lock()
	}
}

func (b *Base[T]) tryLock1(e *Element[T]) bool {
	if b.safe.Load() {
		return e.TryLock()
	}
	return true
}

func (b *Base[T]) unlock1(e *Element[T]) {
	if b.safe.Load() {
		e.Unlock()
	}
}

// rlock takes structMu shared.
func (b *Base[T]) rlock() (unlock func()) {
	if !b.safe.Load() {
		return nop
	}
	b.structMu.RLock()
	return b.structMu.RUnlock
}

// wlock takes structMu exclusive.
func (b *Base[T]) wlock() (unlock func()) {
	if !b.safe.Load() {
		return nop
	}
	b.structMu.Lock()
	return b.structMu.Unlock
}

// ---- element bookkeeping ----

// newElement creates element for ref obeying MaxLen.
func (b *Base[T]) newElement(ref *Ref[T]) (*Element[T], error) {
	if b.maxLen > 0 && b.reserved.Add(1) > b.maxLen {
		b.reserved.Add(-1)
		return nil, ErrElementCreation
	}
	return NewElement(ref), nil
}

// dropElement undoes newElement for element that was not inserted.
//
// The payload reference stays with the caller.
func (b *Base[T]) dropElement(e *Element[T]) {
	if b.maxLen > 0 {
		b.reserved.Add(-1)
	}
	e.payload.Store(nil)
	e.destroyed.Store(true)
}

// owns reports whether e is linked into b.
func (b *Base[T]) owns(e *Element[T]) bool {
	return e != nil && e.owner.Load() == b && e.linked()
}

func (b *Base[T]) unlinked(prev, victim *Element[T]) {
	b.cursors.Invalidate(victim)
	if b.onUnlink != nil {
		b.onUnlink(prev, victim)
	}
}

// insertAfter links n after at, retrying while at's successor changes.
func (b *Base[T]) insertAfter(at, n *Element[T]) bool {
	b.dirty.Store(true)
	for {
		switch insertBetween(at, n, at.next.Load(), b.lockElems) {
		case spliceOK:
			b.count.Add(1)
			return true
		case spliceGone:
			return false
		}
	}
}

// removeAfter unlinks whatever element follows at.
//
// nil is returned if at is not linked or there is nothing after it.
func (b *Base[T]) removeAfter(at *Element[T]) *Element[T] {
	b.dirty.Store(true)
	for {
		victim := at.next.Load()
		if victim == nil || victim.sentinel || !at.linked() {
			return nil
		}
		if unlinkAfter(at, victim, b.lockElems, b.unlinked) == spliceOK {
			return victim
		}
	}
}

// finishRemove accounts for unlinked victim and destroys it.
//
// It returns a reference to victim's payload for the caller.
func (b *Base[T]) finishRemove(victim *Element[T]) *Ref[T] {
	ref := victim.Ref()
	b.count.Add(-1)
	if b.maxLen > 0 {
		b.reserved.Add(-1)
	}
	victim.destroy()
	elementsDestroyed.Inc()
	return ref
}

func (b *Base[T]) opError(op string, args interface{}, err error) *OpError {
	return &OpError{Container: b.name, Op: op, Args: args, Err: err}
}

// ---- operations common to all lists ----

// PushFront inserts v at the front and returns the new element.
func (b *Base[T]) PushFront(v T) (*Element[T], error) {
	ref := NewRef(v, nil)
	e, err := b.PushFrontRef(ref)
	if err != nil {
		ref.Release()
	}
	return e, err
}

// PushFrontRef inserts payload ref at the front.
//
// The container takes over the caller's reference. On error the reference
// stays with the caller.
func (b *Base[T]) PushFrontRef(ref *Ref[T]) (*Element[T], error) {
	defer b.rlock()()

	e, err := b.newElement(ref)
	if err != nil {
		return nil, b.opError("pushfront", nil, err)
	}
	b.insertAfter(b.head, e) // head is always linked
	return e, nil
}

// InsertAfter inserts v right after element at.
func (b *Base[T]) InsertAfter(at *Element[T], v T) (*Element[T], error) {
	ref := NewRef(v, nil)
	e, err := b.InsertAfterRef(at, ref)
	if err != nil {
		ref.Release()
	}
	return e, err
}

// InsertAfterRef inserts payload ref right after element at.
//
// ErrOutOfRange is returned if at is not in the container.
func (b *Base[T]) InsertAfterRef(at *Element[T], ref *Ref[T]) (*Element[T], error) {
	defer b.rlock()()

	if !b.owns(at) {
		return nil, b.opError("insertafter", nil, ErrOutOfRange)
	}
	e, err := b.newElement(ref)
	if err != nil {
		return nil, b.opError("insertafter", nil, err)
	}
	if !b.insertAfter(at, e) {
		b.dropElement(e)
		return nil, b.opError("insertafter", nil, ErrOutOfRange)
	}
	return e, nil
}

// InsertAt inserts v so that it becomes element number i.
//
// i can be in [0, Len()].
func (b *Base[T]) InsertAt(i int, v T) (*Element[T], error) {
	ref := NewRef(v, nil)
	e, err := b.InsertAtRef(i, ref)
	if err != nil {
		ref.Release()
	}
	return e, err
}

// InsertAtRef inserts payload ref so that it becomes element number i.
func (b *Base[T]) InsertAtRef(i int, ref *Ref[T]) (*Element[T], error) {
	if i < 0 {
		return nil, b.opError("insertat", i, ErrOutOfRange)
	}
	b.renumberIfNeeded()

	defer b.rlock()()

	at := b.lockBefore(i)
	if at == nil {
		return nil, b.opError("insertat", i, ErrOutOfRange)
	}
	defer b.unlock1(at)

	e, err := b.newElement(ref)
	if err != nil {
		return nil, b.opError("insertat", i, err)
	}
	b.insertAfter(at, e) // at is locked by us - it stays linked
	return e, nil
}

// PopFront removes the first element and returns its payload.
//
// The caller must Release the returned reference.
// ErrOutOfRange is returned if the container is empty.
func (b *Base[T]) PopFront() (*Ref[T], error) {
	defer b.rlock()()

	victim := b.removeAfter(b.head)
	if victim == nil {
		return nil, b.opError("popfront", nil, ErrOutOfRange)
	}
	return b.finishRemove(victim), nil
}

// RemoveAfter removes element following at and returns its payload.
//
// ErrOutOfRange is returned if at is not in the container or there is no
// element after it.
func (b *Base[T]) RemoveAfter(at *Element[T]) (*Ref[T], error) {
	defer b.rlock()()

	if !b.owns(at) {
		return nil, b.opError("removeafter", nil, ErrOutOfRange)
	}
	victim := b.removeAfter(at)
	if victim == nil {
		return nil, b.opError("removeafter", nil, ErrOutOfRange)
	}
	return b.finishRemove(victim), nil
}

// RemoveAt removes element number i and returns its payload.
func (b *Base[T]) RemoveAt(i int) (*Ref[T], error) {
	if i < 0 {
		return nil, b.opError("removeat", i, ErrOutOfRange)
	}
	b.renumberIfNeeded()

	defer b.rlock()()

	at := b.lockBefore(i)
	if at == nil {
		return nil, b.opError("removeat", i, ErrOutOfRange)
	}

	victim := b.removeAfter(at) // at is locked by us - its successor is element i
	b.unlock1(at)
	if victim == nil {
		return nil, b.opError("removeat", i, ErrOutOfRange)
	}
	return b.finishRemove(victim), nil
}

// Front returns the first element, or nil if the container is empty.
func (b *Base[T]) Front() *Element[T] {
	e := b.head.next.Load()
	if e == nil || e.sentinel {
		return nil
	}
	return e
}

// Clear removes and destroys all elements.
func (b *Base[T]) Clear() {
	defer b.wlock()()

	n := 0
	for {
		victim := b.removeAfter(b.head)
		if victim == nil {
			break
		}
		b.finishRemove(victim).XRelease()
		n++
	}

	b.count.Store(0)
	b.reserved.Store(0)
	b.dirty.Store(false)
	b.cursors.reset()
	glog.V(2).Infof("%s: cleared %d elements", b.name, n)
}
