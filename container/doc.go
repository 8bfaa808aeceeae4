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

// Package container provides thread-safe linked lists.
//
// SList (singly linked) and List (doubly linked) can be used by many
// goroutines at once without one mutex serializing all access: every
// Element is a Lockable, and operations lock only the elements they touch -
// 2 or 3 neighbours, taken in list order via xsync.LockAll, which backs off
// and retries instead of waiting while holding locks.
//
// Payloads are reference counted with Ref. An element holds one reference
// for as long as it is in a container; pop and remove operations hand a
// reference to the caller:
//
//	ref, err := l.PopFront()
//	if err != nil {
//		return err // ErrOutOfRange if l was empty
//	}
//	defer ref.Release()
//	use(ref.Value())
//
// Every goroutine has its own current position in a container (see
// Cursors). Index access starts from it when possible, so walking a list by
// increasing index does not rescan it from head every time. When an element
// is removed all positions referencing it are cleared before the removal
// returns.
//
// Element numbers are recomputed lazily: inserts and removals only mark the
// container, and the O(n) renumbering is done by the next index access.
// Workloads that never access by index never pay for it.
//
// Thread safety can be disabled for containers known to be used by one
// goroutine at a time; then no locking is done at all.
package container
