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

import (
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"
)

// chain returns values of bare element chain starting after head.
func chain(head *Element[string]) []string {
	var v []string
	for e := head.Next(); e != nil; e = e.Next() {
		x, _ := e.Value()
		v = append(v, x)
	}
	return v
}

func assertValues[T any](t *testing.T, have, want []T) {
	t.Helper()
	if len(have) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(have, want) {
		t.Fatalf("values:\nhave: %v\nwant: %v\ndiff: %s", have, want, pretty.Compare(want, have))
	}
}

func newElem(v string) *Element[string] {
	return NewElement(NewRef(v, nil))
}

func TestElementChain(t *testing.T) {
	head := NewHead[string]()
	a, b, c := newElem("a"), newElem("b"), newElem("c")

	if !a.IsRemoved() {
		t.Fatal("fresh element: not removed")
	}

	// fresh element cannot be an anchor
	if b.InsertAfter(c) {
		t.Fatal("insert after fresh element succeeded")
	}

	ok1 := func(v bool) {
		t.Helper()
		if !v {
			t.Fatal("!ok")
		}
	}

	ok1(head.InsertAfter(a))
	ok1(a.InsertAfter(c))
	ok1(a.InsertAfter(b))
	assertValues(t, chain(head), []string{"a", "b", "c"})

	ok1(!a.IsRemoved() && !b.IsRemoved() && !c.IsRemoved())
	ok1(b.Prev() == a && c.Prev() == b && a.Prev() == head)

	// already linked element cannot be inserted again
	if head.InsertAfter(b) {
		t.Fatal("double insert succeeded")
	}

	if x := a.RemoveNext(); x != b {
		t.Fatalf("removenext: %v", x)
	}
	ok1(b.IsRemoved() && b.Next() == nil && b.Prev() == nil)
	ok1(c.Prev() == a)
	assertValues(t, chain(head), []string{"a", "c"})

	ok1(c.RemoveNext() == nil)
	ok1(head.RemoveNext() == a)
	ok1(head.RemoveNext() == c)
	ok1(head.RemoveNext() == nil)
	assertValues(t, chain(head), nil)

	// removed element is as good as fresh
	ok1(head.InsertAfter(a))
	assertValues(t, chain(head), []string{"a"})
}

func TestElementDestroy(t *testing.T) {
	var ndestroy int32
	ref := NewRef("x", func(string) { atomic.AddInt32(&ndestroy, 1) })
	e := NewElement(ref)

	// external copy keeps payload alive past element destruction
	ext := e.Ref()
	if ext != ref || ref.Refcnt() != 2 {
		t.Fatalf("e.Ref: refcnt=%d", ref.Refcnt())
	}

	e.destroy()
	e.destroy()
	if !e.IsDestroyed() {
		t.Fatal("not destroyed")
	}
	if n := atomic.LoadInt32(&ndestroy); n != 0 {
		t.Fatalf("payload destroyed while referenced (%d)", n)
	}
	if _, err := e.Value(); !errors.Is(err, ErrNullPayload) {
		t.Fatalf("value of destroyed element: err=%v", err)
	}
	if e.Ref() != nil {
		t.Fatal("ref of destroyed element")
	}
	if e.LockCount() != 0 {
		t.Fatal("destroy left element locked")
	}

	ext.Release()
	if n := atomic.LoadInt32(&ndestroy); n != 1 {
		t.Fatalf("ndestroy=%d  ; want 1", n)
	}

	// destroyed elements are not spliced
	head := NewHead[string]()
	if head.InsertAfter(e) {
		t.Fatal("destroyed element inserted")
	}

	// element without payload
	nul := NewElement[string](nil)
	if _, err := nul.Value(); !errors.Is(err, ErrNullPayload) {
		t.Fatalf("nil payload: err=%v", err)
	}
}

// goroutines inserting and removing around adjacent elements must all finish.
func TestElementAdjacentNoDeadlock(t *testing.T) {
	head := NewHead[string]()
	a, b := newElem("a"), newElem("b")
	head.InsertAfter(a)
	a.InsertAfter(b)

	const N = 2000
	var fail int32
	done := make(chan struct{}, 3)

	churn := func(at *Element[string]) {
		defer func() { done <- struct{}{} }()
		for i := 0; i < N; i++ {
			x := newElem("x")
			if !at.InsertAfter(x) {
				atomic.AddInt32(&fail, 1)
				return
			}
			if v := at.RemoveNext(); v != x {
				atomic.AddInt32(&fail, 1)
				return
			}
		}
	}

	// walk back and forth over the same elements while they churn
	walk := func() {
		defer func() { done <- struct{}{} }()
		for i := 0; i < N; i++ {
			for e := head.Next(); e != nil; e = e.Next() {
			}
			for e := b; e != nil && e != head; e = e.Prev() {
			}
		}
	}

	go churn(head)
	go churn(a)
	go walk()

	timeout := time.After(20 * time.Second)
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-timeout:
			t.Fatal("deadlock: adjacent insert/remove did not finish")
		}
	}

	if fail != 0 {
		t.Fatalf("%d unexpected splice results", fail)
	}
	assertValues(t, chain(head), []string{"a", "b"})
}
