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

// Package xsync provides addons to packages "sync" and "golang.org/x/sync".
//
// Lockable is a recursive mutex owned by goroutine. LockAll and friends
// acquire several Lockables at once without risking lock-order deadlock.
// WorkGroup runs goroutines that may raise exceptions.
package xsync

import (
	"context"

	"golang.org/x/sync/errgroup"

	"lab.nexedi.com/kirr/go123/exc"
)

// WorkGroup is like x/sync/errgroup.Group but also supports exceptions.
type WorkGroup struct {
	errgroup.Group
}

// Gox calls the given function in a new goroutine and handles exceptions.
//
// it translates exception raised, if any, to as if it was regular error
// returned for a function under Go call. A *LockError raised by Lockable
// thus becomes the group error.
//
// see errgroup.Group.Go documentation for details on how error from spawned
// goroutines are handled group-wise.
func (g *WorkGroup) Gox(xf func()) {
	g.Go(func() error {
		return exc.Runx(xf)
	})
}

// GoN spawns n goroutines running f(i) for i in [0, n).
func (g *WorkGroup) GoN(n int, f func(i int) error) {
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return f(i)
		})
	}
}

// WorkGroupCtx returns new WorkGroup and associated context derived from ctx.
//
// see errgroup.WithContext for semantic description and details.
func WorkGroupCtx(ctx context.Context) (*WorkGroup, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &WorkGroup{*g}, ctx
}
