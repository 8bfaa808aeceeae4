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
// per-goroutine current position

import (
	"sync"
	"sync/atomic"

	"lab.nexedi.com/kirr/tslist/internal/goid"
)

const defaultCursorShards = 16

// Cursors keeps, for every goroutine, the element that goroutine is standing
// on in one container.
//
// It lets sequential access resume from the last visited element instead of
// walking from head every time, without goroutines clobbering each other's
// position and without locking the container to remember it.
//
// The table is keyed by goroutine ID and split into shards, so lookup cost
// does not depend on how many goroutines ever touched the container.
//
// With thread safety disabled all goroutines share one slot.
type Cursors[T any] struct {
	safe   atomic.Bool
	shared atomic.Pointer[Element[T]] // used when !safe
	shardv []cursorShard[T]
}

type cursorShard[T any] struct {
	mu  sync.RWMutex
	pos map[int64]*Element[T] // goid -> element
}

// lock order: Element > cursorShard.mu

func newCursors[T any](nshard int) *Cursors[T] {
	if nshard <= 0 {
		nshard = defaultCursorShards
	}
	c := &Cursors[T]{shardv: make([]cursorShard[T], nshard)}
	for i := range c.shardv {
		c.shardv[i].pos = make(map[int64]*Element[T])
	}
	c.safe.Store(true)
	return c
}

func (c *Cursors[T]) shard(id int64) *cursorShard[T] {
	return &c.shardv[uint64(id)%uint64(len(c.shardv))]
}

// Current returns element the calling goroutine stands on, or nil.
func (c *Cursors[T]) Current() *Element[T] {
	var e *Element[T]
	if !c.safe.Load() {
		e = c.shared.Load()
	} else {
		id := goid.Get()
		s := c.shard(id)
		s.mu.RLock()
		e = s.pos[id]
		s.mu.RUnlock()
	}

	if e != nil && e.removed.Load() {
		return nil
	}
	return e
}

// SetCurrent makes e the calling goroutine's current element.
//
// nil clears the position.
func (c *Cursors[T]) SetCurrent(e *Element[T]) {
	if !c.safe.Load() {
		c.shared.Store(e)
		if e != nil && e.removed.Load() {
			c.shared.CompareAndSwap(e, nil)
		}
		return
	}

	id := goid.Get()
	s := c.shard(id)
	s.mu.Lock()
	if e == nil {
		delete(s.pos, id)
	} else {
		s.pos[id] = e
	}
	s.mu.Unlock()

	// e could be removed and invalidated after we looked it up but before
	// we stored it. Removal marks e before invalidating, so either
	// Invalidate saw our entry, or we see the mark here.
	if e != nil && e.removed.Load() {
		s.mu.Lock()
		if s.pos[id] == e {
			delete(s.pos, id)
		}
		s.mu.Unlock()
	}
}

// Forget clears the calling goroutine's position.
//
// Goroutines that are done with a container should call it so that their
// entry does not linger in the table.
func (c *Cursors[T]) Forget() {
	c.SetCurrent(nil)
}

// Invalidate clears every position that references e.
//
// Containers call it for every element they unlink, before the element locks
// are released. It returns how many positions were cleared.
func (c *Cursors[T]) Invalidate(e *Element[T]) (n int) {
	if !c.safe.Load() {
		if c.shared.CompareAndSwap(e, nil) {
			n = 1
		}
	} else {
		for i := range c.shardv {
			s := &c.shardv[i]
			s.mu.Lock()
			for id, x := range s.pos {
				if x == e {
					delete(s.pos, id)
					n++
				}
			}
			s.mu.Unlock()
		}
	}

	if n != 0 {
		cursorInvalidations.Add(float64(n))
	}
	return n
}

// Len returns number of goroutines that have a position.
func (c *Cursors[T]) Len() int {
	if !c.safe.Load() {
		if c.shared.Load() != nil {
			return 1
		}
		return 0
	}

	n := 0
	for i := range c.shardv {
		s := &c.shardv[i]
		s.mu.RLock()
		n += len(s.pos)
		s.mu.RUnlock()
	}
	return n
}

// Enable switches c to per-goroutine positions.
//
// All positions are cleared.
func (c *Cursors[T]) Enable() {
	c.safe.Store(true)
	c.reset()
}

// Disable switches c to one shared position.
//
// All positions are cleared. The caller takes on that only one goroutine
// uses the container at a time.
func (c *Cursors[T]) Disable() {
	c.safe.Store(false)
	c.reset()
}

func (c *Cursors[T]) reset() {
	c.shared.Store(nil)
	for i := range c.shardv {
		s := &c.shardv[i]
		s.mu.Lock()
		clear(s.pos)
		s.mu.Unlock()
	}
}
