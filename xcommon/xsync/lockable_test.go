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

package xsync

import (
	"math"
	"strings"
	"testing"
	"time"

	"lab.nexedi.com/kirr/go123/exc"
)

func TestLockableReentrant(t *testing.T) {
	var l Lockable

	if n := l.LockCount(); n != 0 {
		t.Fatalf("fresh: lockcount=%d", n)
	}

	l.Lock()
	l.Lock()
	if !l.TryLock() {
		t.Fatal("trylock by owner failed")
	}
	if n := l.LockCount(); n != 3 {
		t.Fatalf("lockcount=%d  ; want 3", n)
	}

	// another goroutine sees it held and not owned
	other := func() (count int, locked bool) {
		done := make(chan struct{})
		go func() {
			defer close(done)
			count = l.LockCount()
			locked = l.TryLock()
			if locked {
				l.Unlock()
			}
		}()
		<-done
		return
	}

	if count, locked := other(); count != 0 || locked {
		t.Fatalf("other: count=%d locked=%v  ; want 0 false", count, locked)
	}

	l.Unlock()
	l.Unlock()
	if count, locked := other(); count != 0 || locked {
		t.Fatalf("other after 2 unlocks: count=%d locked=%v  ; want 0 false", count, locked)
	}

	l.Unlock()
	if n := l.LockCount(); n != 0 {
		t.Fatalf("released: lockcount=%d", n)
	}
	if _, locked := other(); !locked {
		t.Fatal("other: lock not released")
	}
}

func TestLockableForeignUnlock(t *testing.T) {
	var l Lockable
	l.Lock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Unlock() // not owner - must be no-op
		l.Unlock()
	}()
	<-done

	if n := l.LockCount(); n != 1 {
		t.Fatalf("foreign unlock affected owner: lockcount=%d", n)
	}

	// blocked waiter acquires after owner releases
	acquired := make(chan struct{})
	go func() {
		l.Lock()
		close(acquired)
		l.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	case <-time.After(10 * time.Millisecond):
	}

	l.Unlock()
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not acquire released lock")
	}
}

func TestLockableOverflow(t *testing.T) {
	var l Lockable
	l.Lock()
	l.depth = math.MaxInt32

	err := exc.Runx(func() {
		l.Lock()
	})
	if err == nil || !strings.Contains(err.Error(), "lockable: lock: resource temporarily unavailable") {
		t.Fatalf("overflow: err=%v", err)
	}

	l.depth = 1
	l.Unlock()
	if l.LockCount() != 0 {
		t.Fatal("not released")
	}
}
