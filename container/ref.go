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
// payload ownership

import (
	"sync/atomic"

	"lab.nexedi.com/kirr/go123/mem"
)

// Ref is reference-counted handle to element payload.
//
// A Ref is created holding 1 reference. Every Incref must be paired with
// Release. When the last reference is released the destroy function, if
// any, is called on the value exactly once.
//
// Elements hold 1 reference to their payload while they are alive. Pop
// operations hand a reference to the caller, who must Release it.
type Ref[T any] struct {
	value   T
	destroy func(T)

	// reference counter.
	//
	// NOTE like with mem.Buf the real number of references is .refcnt+1,
	// so that zero Ref is 1 reference to zero value.
	refcnt int32
}

// NewRef creates new Ref holding v.
//
// destroy is called on v when the last reference is released. It can be
// nil, in which case v is left to garbage collector.
func NewRef[T any](v T, destroy func(T)) *Ref[T] {
	return &Ref[T]{value: v, destroy: destroy}
}

// BufRef creates Ref holding buf.
//
// When the last reference is gone buf is released back to its freelist and
// then released, if not nil, is called.
func BufRef(buf *mem.Buf, released func()) *Ref[*mem.Buf] {
	return NewRef(buf, func(buf *mem.Buf) {
		buf.Release()
		if released != nil {
			released()
		}
	})
}

// Value returns the value r holds.
//
// The caller must hold a reference.
func (r *Ref[T]) Value() T {
	return r.value
}

// Incref increments r's reference counter by 1.
func (r *Ref[T]) Incref() {
	rc := atomic.AddInt32(&r.refcnt, +1)
	if rc <= 0 {
		panic("Ref: incref after release")
	}
}

// Release marks r as no longer used by caller.
//
// It decrements r's reference counter and if it reaches zero destroys the
// value. The caller must not use r after call to Release.
func (r *Ref[T]) Release() {
	rc := atomic.AddInt32(&r.refcnt, -1)
	if rc < -1 {
		panic("Ref: refcnt < 0")
	}
	if rc > -1 {
		return
	}

	if r.destroy != nil {
		r.destroy(r.value)
	}
	var zero T
	r.value = zero
}

// XIncref increments r's reference counter by 1 if r != nil.
func (r *Ref[T]) XIncref() {
	if r != nil {
		r.Incref()
	}
}

// XRelease releases r if it is != nil.
func (r *Ref[T]) XRelease() {
	if r != nil {
		r.Release()
	}
}

// Refcnt returns current number of references to r.
//
// 0 means r was released for the last time.
func (r *Ref[T]) Refcnt() int {
	return int(atomic.LoadInt32(&r.refcnt)) + 1
}
