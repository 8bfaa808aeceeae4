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

// Package task tracks named operations through contexts.
//
// A task is a named operation started by some goroutine. Tasks nest: the
// chain from outermost to innermost task is the operational stack. Log lines
// and errors are prefixed with it.
package task

import (
	"context"
	"fmt"
	"strings"

	"lab.nexedi.com/kirr/go123/xerr"

	"lab.nexedi.com/kirr/tslist/internal/goid"
)

// Task is one running operation.
type Task struct {
	Parent *Task
	Name   string
	Goid   int64 // goroutine that started the task
}

type ctxKey struct{}

// Running returns ctx with new task called name nested under ctx's task.
func Running(ctx context.Context, name string) context.Context {
	t := &Task{Parent: Current(ctx), Name: name, Goid: goid.Get()}
	return context.WithValue(ctx, ctxKey{}, t)
}

// Runningf is like Running but formats task name.
func Runningf(ctx context.Context, format string, argv ...interface{}) context.Context {
	return Running(ctx, fmt.Sprintf(format, argv...))
}

// Current returns ctx's innermost task, or nil.
func Current(ctx context.Context) *Task {
	t, _ := ctx.Value(ctxKey{}).(*Task)
	return t
}

// ErrContext prefixes non-nil *errp with the name of ctx's task.
//
// Use it under defer:
//
//	ctx = task.Running(ctx, "pop")
//	defer task.ErrContext(&err, ctx)
func ErrContext(errp *error, ctx context.Context) {
	if t := Current(ctx); t != nil {
		xerr.Context(errp, t.Name)
	}
}

// Stack returns task names from the outermost task down to t.
func (t *Task) Stack() []string {
	var stk []string
	for ; t != nil; t = t.Parent {
		stk = append(stk, t.Name)
	}
	for i, j := 0, len(stk)-1; i < j; i, j = i+1, j-1 {
		stk[i], stk[j] = stk[j], stk[i]
	}
	return stk
}

// String returns operational stack joined with ": ", e.g. "stress: worker 3".
// Nil task is "".
func (t *Task) String() string {
	return strings.Join(t.Stack(), ": ")
}

// Foreign reports whether t was started on a goroutine other than the calling one.
func (t *Task) Foreign() bool {
	return t != nil && t.Goid != goid.Get()
}
