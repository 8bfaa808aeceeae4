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
// acquiring several locks at once

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrContended is returned by LockAllCtx when the locks could not all be
// taken before the context was done.
var ErrContended = errors.New("locks contended")

// MultilockRetries counts how many times LockAll had to back off and retry.
var MultilockRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tslist_multilock_retries_total",
	Help: "Number of times acquiring a set of locks backed off and restarted",
})

var retries atomic.Int64

// Retries returns how many times LockAll and LockAllCtx backed off so far.
func Retries() int64 { return retries.Load() }

// LockAll acquires all non-nil locks from lockv.
//
// Locks should be passed in the order of the structure they protect, e.g.
// for a linked list the earlier element goes first. The first lock is
// acquired blocking; the others are only tried. If any of them is busy,
// everything taken so far is released, the goroutine yields and the whole
// set is attempted again. This way two goroutines locking the same objects
// in opposite order cannot deadlock: at any time at most one of them blocks,
// and it blocks holding nothing.
//
// There is no timeout: LockAll retries until it gets all the locks. Use
// LockAllCtx to bound the wait.
//
// The returned function releases the locks in reverse order.
func LockAll(lockv ...*Lockable) (unlock func()) {
	unlock, _ = lockAll(nil, lockv)
	return unlock
}

// Double is LockAll for two locks.
func Double(a, b *Lockable) (unlock func()) {
	return LockAll(a, b)
}

// Triple is LockAll for three locks.
func Triple(a, b, c *Lockable) (unlock func()) {
	return LockAll(a, b, c)
}

// LockAllCtx is like LockAll but gives up when ctx is done.
//
// Under ctx every lock, including the first, is only tried, so that waiting
// can be canceled. The returned error wraps ErrContended.
func LockAllCtx(ctx context.Context, lockv ...*Lockable) (unlock func(), err error) {
	return lockAll(ctx, lockv)
}

func lockAll(ctx context.Context, lockv []*Lockable) (func(), error) {
	held := make([]*Lockable, 0, len(lockv))
	for {
		ok := true
		for _, l := range lockv {
			if l == nil {
				continue
			}
			if len(held) == 0 && ctx == nil {
				l.Lock()
			} else if !l.TryLock() {
				ok = false
				break
			}
			held = append(held, l)
		}

		if ok {
			return func() { unlockAll(held) }, nil
		}

		unlockAll(held)
		held = held[:0]
		MultilockRetries.Inc()
		retries.Add(1)

		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s", ErrContended, ctx.Err())
			default:
			}
		}
		runtime.Gosched()
	}
}

func unlockAll(lockv []*Lockable) {
	for i := len(lockv) - 1; i >= 0; i-- {
		lockv[i].Unlock()
	}
}
