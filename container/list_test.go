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
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// tList is what SList and List have in common for tests.
type tList interface {
	Name() string
	Len() int
	Empty() bool
	PushBack(v string) (*Element[string], error)
	PushFront(v string) (*Element[string], error)
	PushBackRef(ref *Ref[string]) (*Element[string], error)
	PushFrontRef(ref *Ref[string]) (*Element[string], error)
	InsertAfter(at *Element[string], v string) (*Element[string], error)
	InsertAt(i int, v string) (*Element[string], error)
	PopFront() (*Ref[string], error)
	Remove(e *Element[string]) (*Ref[string], error)
	RemoveAfter(at *Element[string]) (*Ref[string], error)
	RemoveAt(i int) (*Ref[string], error)
	At(i int) (*Element[string], error)
	Advance() (*Element[string], error)
	Front() *Element[string]
	Current() *Element[string]
	Values() []string
	Each(f func(e *Element[string]) bool)
	Clear()
	Renumbers() int
	NeedsRenumber() bool
	Cursors() *Cursors[string]
	EnableThreadSafety()
	DisableThreadSafety()
	ThreadSafe() bool
}

var (
	_ tList = (*SList[string])(nil)
	_ tList = (*List[string])(nil)
)

// foreachList runs f for both list kinds.
func foreachList(t *testing.T, opt *Options, f func(t *testing.T, l tList)) {
	t.Run("slist", func(t *testing.T) {
		f(t, NewSList[string](opt))
	})
	t.Run("list", func(t *testing.T) {
		f(t, NewList[string](opt))
	})
}

// popValue pops front element and returns its value.
func popValue(t *testing.T, l tList) string {
	t.Helper()
	ref, err := l.PopFront()
	if err != nil {
		t.Fatal(err)
	}
	defer ref.Release()
	return ref.Value()
}

func xpush(t *testing.T, l tList, vv ...string) []*Element[string] {
	t.Helper()
	var ev []*Element[string]
	for _, v := range vv {
		e, err := l.PushBack(v)
		if err != nil {
			t.Fatal(err)
		}
		ev = append(ev, e)
	}
	return ev
}

func checkLen(t *testing.T, l tList, n int) {
	t.Helper()
	if l.Len() != n {
		t.Fatalf("len=%d  ; want %d", l.Len(), n)
	}
	if l.Empty() != (n == 0) {
		t.Fatalf("empty=%v  ; len=%d", l.Empty(), n)
	}
}

func TestListABC(t *testing.T) {
	foreachList(t, nil, func(t *testing.T, l tList) {
		ev := xpush(t, l, "A", "B", "C")
		checkLen(t, l, 3)

		ref, err := l.Remove(ev[1])
		if err != nil {
			t.Fatal(err)
		}
		if ref.Value() != "B" {
			t.Fatalf("removed %q", ref.Value())
		}
		ref.Release()

		checkLen(t, l, 2)
		assertValues(t, l.Values(), []string{"A", "C"})

		// removing again is an error, not corruption
		_, err = l.Remove(ev[1])
		if !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("remove removed: err=%v", err)
		}
		checkLen(t, l, 2)
	})
}

func TestListOps(t *testing.T) {
	foreachList(t, &Options{Name: "ops"}, func(t *testing.T, l tList) {
		ok := func(_ interface{}, err error) {
			t.Helper()
			if err != nil {
				t.Fatal(err)
			}
		}

		ok(l.PushFront("b"))
		ok(l.PushFront("a"))
		ok(l.PushBack("d"))
		ok(l.InsertAt(2, "c"))
		ok(l.InsertAt(4, "e"))
		ok(l.InsertAt(0, "_"))
		assertValues(t, l.Values(), []string{"_", "a", "b", "c", "d", "e"})

		e, err := l.At(3)
		if err != nil {
			t.Fatal(err)
		}
		if v, _ := e.Value(); v != "c" || e.Number() != 3 {
			t.Fatalf("at 3: %q #%d", v, e.Number())
		}
		if l.Current() != e {
			t.Fatal("at: current not set")
		}

		ok(l.InsertAfter(e, "c2"))
		assertValues(t, l.Values(), []string{"_", "a", "b", "c", "c2", "d", "e"})

		ref, err := l.RemoveAfter(e)
		if err != nil {
			t.Fatal(err)
		}
		if ref.Value() != "c2" {
			t.Fatalf("removeafter: %q", ref.Value())
		}
		ref.Release()

		ref, err = l.RemoveAt(0)
		if err != nil {
			t.Fatal(err)
		}
		if ref.Value() != "_" {
			t.Fatalf("removeat 0: %q", ref.Value())
		}
		ref.Release()

		ref, err = l.RemoveAt(4)
		if err != nil {
			t.Fatal(err)
		}
		if ref.Value() != "e" {
			t.Fatalf("removeat 4: %q", ref.Value())
		}
		ref.Release()

		assertValues(t, l.Values(), []string{"a", "b", "c", "d"})
		checkLen(t, l, 4)

		if v, _ := l.Front().Value(); v != "a" {
			t.Fatalf("front: %q", v)
		}
		if popValue(t, l) != "a" {
			t.Fatal("pop order")
		}

		// out of range everywhere
		for _, f := range []func() error{
			func() error { _, err := l.At(3); return err },
			func() error { _, err := l.At(-1); return err },
			func() error { _, err := l.InsertAt(5, "x"); return err },
			func() error { _, err := l.RemoveAt(3); return err },
			func() error { _, err := l.RemoveAfter(l.Front().Next().Next()); return err },
		} {
			if err := f(); !errors.Is(err, ErrOutOfRange) {
				t.Fatalf("out of range: err=%v", err)
			}
		}
		assertValues(t, l.Values(), []string{"b", "c", "d"})

		l.Clear()
		checkLen(t, l, 0)
		if l.Front() != nil {
			t.Fatal("front after clear")
		}
		_, err = l.PopFront()
		if !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("pop empty: err=%v", err)
		}
		want := "ops: popfront: out of range"
		if err.Error() != want {
			t.Fatalf("pop empty:\nhave: %q\nwant: %q", err.Error(), want)
		}
		var e2 *OpError
		if !errors.As(err, &e2) || e2.Op != "popfront" {
			t.Fatalf("pop empty: not OpError: %#v", err)
		}
	})
}

// index access just past the end must not resolve to the tail sentinel,
// whichever end the walk starts from.
func TestListPastEnd(t *testing.T) {
	foreachList(t, nil, func(t *testing.T, l tList) {
		xpush(t, l, "a", "b", "c")

		checkReachable := func() {
			t.Helper()
			n := 0
			l.Each(func(*Element[string]) bool { n++; return true })
			if n != l.Len() {
				t.Fatalf("len %d != reachable %d", l.Len(), n)
			}
			if dl, ok := l.(*List[string]); ok && dl.tail.next.Load() != nil {
				t.Fatal("element linked after tail")
			}
		}

		l.Cursors().Forget()
		if e, err := l.At(3); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("at 3: e=%v err=%v", e, err)
		}
		if l.Current() != nil {
			t.Fatal("at 3: position set")
		}

		l.Cursors().Forget()
		if _, err := l.InsertAt(4, "x"); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("insertat 4: err=%v", err)
		}
		checkLen(t, l, 3)
		checkReachable()

		l.Cursors().Forget()
		if _, err := l.RemoveAt(3); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("removeat 3: err=%v", err)
		}
		checkLen(t, l, 3)

		// the last element and the slot after it stay reachable by index
		l.Cursors().Forget()
		e, err := l.At(2)
		if err != nil {
			t.Fatal(err)
		}
		if v, _ := e.Value(); v != "c" {
			t.Fatalf("at 2: %q", v)
		}
		l.Cursors().Forget()
		if _, err := l.InsertAt(3, "d"); err != nil {
			t.Fatal(err)
		}
		l.Cursors().Forget()
		ref, err := l.RemoveAt(3)
		if err != nil {
			t.Fatal(err)
		}
		if ref.Value() != "d" {
			t.Fatalf("removeat 3: %q", ref.Value())
		}
		ref.Release()

		checkReachable()
		assertValues(t, l.Values(), []string{"a", "b", "c"})
	})
}

func TestListForeignElement(t *testing.T) {
	foreachList(t, nil, func(t *testing.T, l tList) {
		other := NewList[string](&Options{Name: "other"})
		x, _ := other.PushBack("x")
		xpush(t, l, "a")

		if _, err := l.InsertAfter(x, "y"); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("insert after foreign: err=%v", err)
		}
		if _, err := l.Remove(x); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("remove foreign: err=%v", err)
		}
		checkLen(t, l, 1)
		if other.Len() != 1 {
			t.Fatal("foreign list changed")
		}
	})
}

func TestListMaxLen(t *testing.T) {
	foreachList(t, &Options{Name: "bounded", MaxLen: 2}, func(t *testing.T, l tList) {
		xpush(t, l, "a", "b")

		var ndestroy int32
		ref := NewRef("c", func(string) { atomic.AddInt32(&ndestroy, 1) })
		_, err := l.PushBackRef(ref)
		if !errors.Is(err, ErrElementCreation) {
			t.Fatalf("push over maxlen: err=%v", err)
		}
		if ref.Refcnt() != 1 || ndestroy != 0 {
			t.Fatal("failed push consumed caller's reference")
		}
		ref.Release()

		if _, err = l.PushFront("c"); !errors.Is(err, ErrElementCreation) {
			t.Fatalf("pushfront over maxlen: err=%v", err)
		}
		checkLen(t, l, 2)
		assertValues(t, l.Values(), []string{"a", "b"})

		// room is freed by removal
		popValue(t, l)
		xpush(t, l, "c")
		assertValues(t, l.Values(), []string{"b", "c"})

		l.Clear()
		xpush(t, l, "d", "e")
		checkLen(t, l, 2)
	})
}

func TestListOwnership(t *testing.T) {
	foreachList(t, nil, func(t *testing.T, l tList) {
		var ndestroy [3]int32
		var ev []*Element[string]
		for i := range ndestroy {
			i := i
			e, err := l.PushBackRef(NewRef(fmt.Sprint(i), func(string) {
				atomic.AddInt32(&ndestroy[i], 1)
			}))
			if err != nil {
				t.Fatal(err)
			}
			ev = append(ev, e)
		}

		check := func(want [3]int32) {
			t.Helper()
			for i := range ndestroy {
				if n := atomic.LoadInt32(&ndestroy[i]); n != want[i] {
					t.Fatalf("ndestroy[%d]=%d  ; want %d", i, n, want[i])
				}
			}
		}

		// 0: popped - alive until caller releases
		ref0, err := l.PopFront()
		if err != nil {
			t.Fatal(err)
		}
		check([3]int32{0, 0, 0})
		ref0.Release()
		check([3]int32{1, 0, 0})

		// 1: external copy outlives the element
		ext := ev[1].Ref()
		ref1, err := l.Remove(ev[1])
		if err != nil {
			t.Fatal(err)
		}
		ref1.Release()
		check([3]int32{1, 0, 0})
		if !ev[1].IsDestroyed() {
			t.Fatal("removed element not destroyed")
		}
		if _, err := ev[1].Value(); !errors.Is(err, ErrNullPayload) {
			t.Fatalf("value of removed: err=%v", err)
		}
		ext.Release()
		check([3]int32{1, 1, 0})

		// 2: destroyed by clear
		l.Clear()
		check([3]int32{1, 1, 1})
	})
}

func TestListNullPayload(t *testing.T) {
	foreachList(t, nil, func(t *testing.T, l tList) {
		e, err := l.PushBackRef(nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := e.Value(); !errors.Is(err, ErrNullPayload) {
			t.Fatalf("err=%v", err)
		}
		ref, err := l.PopFront()
		if err != nil || ref != nil {
			t.Fatalf("pop null: ref=%v err=%v", ref, err)
		}
		checkLen(t, l, 0)
	})
}

func TestListLazyRenumber(t *testing.T) {
	foreachList(t, nil, func(t *testing.T, l tList) {
		ev := xpush(t, l, "0", "1", "2", "3", "4", "5", "6", "7", "8", "9")
		for _, i := range []int{1, 3, 5} {
			ref, err := l.Remove(ev[i])
			if err != nil {
				t.Fatal(err)
			}
			ref.Release()
		}
		for i := 0; i < 10; i++ {
			popValue(t, l)
			xpush(t, l, "x")
		}

		// append/remove-by-reference never renumber
		if n := l.Renumbers(); n != 0 {
			t.Fatalf("renumbers=%d without index access", n)
		}
		if !l.NeedsRenumber() {
			t.Fatal("needsrenumber not set after changes")
		}

		if _, err := l.At(2); err != nil {
			t.Fatal(err)
		}
		if l.Renumbers() != 1 || l.NeedsRenumber() {
			t.Fatalf("after at: renumbers=%d dirty=%v", l.Renumbers(), l.NeedsRenumber())
		}

		// sequential access: no renumbering, starts from cursor
		hits := testutil.ToFloat64(cursorLookups.WithLabelValues("hit"))
		for i := 3; i < l.Len(); i++ {
			e, err := l.At(i)
			if err != nil {
				t.Fatal(err)
			}
			if e.Number() != i {
				t.Fatalf("at %d: number %d", i, e.Number())
			}
		}
		if l.Renumbers() != 1 {
			t.Fatalf("sequential at renumbered: %d", l.Renumbers())
		}
		if d := testutil.ToFloat64(cursorLookups.WithLabelValues("hit")) - hits; d != float64(l.Len()-3) {
			t.Fatalf("cursor hits: %v  ; want %d", d, l.Len()-3)
		}

		xpush(t, l, "y")
		if _, err := l.At(0); err != nil {
			t.Fatal(err)
		}
		if l.Renumbers() != 2 {
			t.Fatalf("renumbers=%d  ; want 2", l.Renumbers())
		}
	})
}

func TestListAdvance(t *testing.T) {
	foreachList(t, nil, func(t *testing.T, l tList) {
		xpush(t, l, "a", "b", "c")

		var have []string
		for {
			e, err := l.Advance()
			if errors.Is(err, ErrOutOfRange) {
				break
			}
			if err != nil {
				t.Fatal(err)
			}
			v, _ := e.Value()
			have = append(have, v)
		}
		assertValues(t, have, []string{"a", "b", "c"})
		if l.Current() != nil {
			t.Fatal("position not cleared at end")
		}

		// removing current element clears the position; next Advance
		// starts over
		e, _ := l.At(1)
		ref, err := l.Remove(e)
		if err != nil {
			t.Fatal(err)
		}
		ref.Release()
		if l.Current() != nil {
			t.Fatal("position survived removal")
		}
		e, err = l.Advance()
		if err != nil {
			t.Fatal(err)
		}
		if v, _ := e.Value(); v != "a" {
			t.Fatalf("advance after invalidation: %q", v)
		}
	})
}

// the same sequence of operations gives the same structure with and without
// thread safety.
func TestListThreadUnsafeSame(t *testing.T) {
	script := func(t *testing.T, l tList) {
		ev := xpush(t, l, "a", "b", "c", "d")
		l.PushFront("0")
		l.InsertAfter(ev[1], "b2")
		if ref, err := l.Remove(ev[2]); err == nil {
			ref.Release()
		}
		l.InsertAt(3, "m")
		if ref, err := l.RemoveAt(0); err == nil {
			ref.Release()
		}
		l.At(2)
		l.PushBack("z")
	}

	foreachList(t, nil, func(t *testing.T, safe tList) {
		var unsafe tList
		switch safe.(type) {
		case *SList[string]:
			unsafe = NewSList[string](&Options{ThreadUnsafe: true})
		case *List[string]:
			unsafe = NewList[string](nil)
			unsafe.DisableThreadSafety()
		}
		if unsafe.ThreadSafe() || !safe.ThreadSafe() {
			t.Fatal("thread safety flags")
		}

		script(t, safe)
		script(t, unsafe)

		assertValues(t, unsafe.Values(), safe.Values())
		if unsafe.Len() != safe.Len() {
			t.Fatalf("len: unsafe %d  safe %d", unsafe.Len(), safe.Len())
		}
		assertValues(t, unsafe.Values(), []string{"a", "b", "m", "b2", "d", "z"})

		unsafe.EnableThreadSafety()
		if !unsafe.ThreadSafe() || unsafe.Current() != nil {
			t.Fatal("enable: state not reset")
		}
	})
}

func TestDList(t *testing.T) {
	l := NewList[string](nil)
	if l.Back() != nil {
		t.Fatal("back of empty")
	}
	if _, err := l.PopBack(); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("popback empty: err=%v", err)
	}

	b, _ := l.PushBack("b")
	l.PushBack("d")
	if _, err := l.InsertBefore(b, "a"); err != nil {
		t.Fatal(err)
	}
	d := l.Back()
	if _, err := l.InsertBefore(d, "c"); err != nil {
		t.Fatal(err)
	}
	assertValues(t, l.Values(), []string{"a", "b", "c", "d"})

	var rev []string
	l.EachReverse(func(e *Element[string]) bool {
		v, _ := e.Value()
		rev = append(rev, v)
		return true
	})
	assertValues(t, rev, []string{"d", "c", "b", "a"})

	ref, err := l.PopBack()
	if err != nil {
		t.Fatal(err)
	}
	if ref.Value() != "d" {
		t.Fatalf("popback: %q", ref.Value())
	}
	ref.Release()
	if _, err := l.InsertBefore(d, "x"); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("insert before removed: err=%v", err)
	}

	// index access from the back half walks backwards
	for i := 0; i < 20; i++ {
		l.PushBack(fmt.Sprint(i))
	}
	e, err := l.At(20)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := e.Value(); v != "17" {
		t.Fatalf("at 20: %q", v)
	}
	e, err = l.At(18) // back from cursor
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := e.Value(); v != "15" {
		t.Fatalf("at 18: %q", v)
	}
	e, err = l.At(1)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := e.Value(); v != "b" {
		t.Fatalf("at 1: %q", v)
	}

	// Each stops when asked
	n := 0
	l.Each(func(*Element[string]) bool {
		n++
		return n < 5
	})
	if n != 5 {
		t.Fatalf("each: visited %d", n)
	}
}
