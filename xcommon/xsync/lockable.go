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
// recursive lock owned by goroutine

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"syscall"

	"lab.nexedi.com/kirr/go123/exc"

	"lab.nexedi.com/kirr/tslist/internal/goid"
)

// Lockable is a reentrant mutual-exclusion lock.
//
// The lock is owned by the goroutine that acquired it. The owner may lock it
// again any number of times; the lock is released to other goroutines only
// when the owner unlocks it as many times as it locked it.
//
// Unlock called by a goroutine that does not own the lock does nothing. This
// way cleanup code can never release a lock somebody else holds.
//
// The zero value is an unlocked Lockable. A Lockable must not be copied
// after first use.
type Lockable struct {
	mu    sync.Mutex
	owner atomic.Int64 // goid of current holder; 0 = nobody
	depth int32        // hold count; accessed only by owner
}

// LockError is raised when a lock operation cannot be carried out.
//
// It indicates broken environment or lock state, not contention.
type LockError struct {
	Op    string // "lock", "trylock", "unlock"
	Errno syscall.Errno
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lockable: %s: %s", e.Op, e.Errno)
}

func (e *LockError) Unwrap() error {
	return e.Errno
}

// Lock acquires l, blocking until it is available.
//
// If the recursion count would overflow *LockError (EAGAIN) is raised.
func (l *Lockable) Lock() {
	me := goid.Get()
	if l.owner.Load() == me {
		l.recurse("lock")
		return
	}

	l.mu.Lock()
	l.owner.Store(me)
	l.depth = 1
}

// TryLock tries to acquire l without blocking and reports whether it succeeded.
func (l *Lockable) TryLock() bool {
	me := goid.Get()
	if l.owner.Load() == me {
		l.recurse("trylock")
		return true
	}

	if !l.mu.TryLock() {
		return false
	}
	l.owner.Store(me)
	l.depth = 1
	return true
}

func (l *Lockable) recurse(op string) {
	if l.depth == math.MaxInt32 {
		exc.Raise(&LockError{Op: op, Errno: syscall.EAGAIN})
	}
	l.depth++
}

// Unlock releases one hold of l.
//
// It is no-op if the calling goroutine does not own l.
func (l *Lockable) Unlock() {
	me := goid.Get()
	if l.owner.Load() != me {
		return
	}

	if l.depth <= 0 {
		exc.Raise(&LockError{Op: "unlock", Errno: syscall.EPERM})
	}
	l.depth--
	if l.depth == 0 {
		l.owner.Store(0)
		l.mu.Unlock()
	}
}

// LockCount returns how many times the calling goroutine holds l.
//
// It returns 0 if l is not held by the caller.
func (l *Lockable) LockCount() int {
	if l.owner.Load() != goid.Get() {
		return 0
	}
	return int(l.depth)
}
