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

// Package xtesting provides addons to std package testing.
//
// Goroutine runs test steps synchronously on a goroutine of its own. This
// way a test can play several "threads" against a structure that keeps
// per-goroutine state, and still control exactly how their steps
// interleave:
//
//	t1 := xtesting.NewGoroutine("T1")
//	defer t1.Stop()
//
//	t1.Do(func() { e, _ = l.At(1) }) // position of T1
//	l.Remove(e)                      // main goroutine plays T2
//	t1.Do(func() { cur = l.Current() })
package xtesting

import (
	"fmt"
	"testing"
	"time"
)

// StepTimeout is how long Goroutine.Do waits for a step to complete.
var StepTimeout = 30 * time.Second

// Goroutine executes steps one by one on a dedicated goroutine.
//
// Do blocks until the step is complete, so steps of the caller and of the
// Goroutine never run at the same time.
type Goroutine struct {
	name  string
	stepq chan *step
	done  chan struct{}
}

// step is one unit of work; the sender waits on ack.
type step struct {
	f   func()
	ack chan struct{}
}

// NewGoroutine spawns new goroutine that will run steps passed to Do.
func NewGoroutine(name string) *Goroutine {
	g := &Goroutine{
		name:  name,
		stepq: make(chan *step),
		done:  make(chan struct{}),
	}
	go g.serve()
	return g
}

func (g *Goroutine) serve() {
	defer close(g.done)
	for s := range g.stepq {
		s.f()
		close(s.ack)
	}
}

// Do runs f on g and waits for it to complete.
//
// If f does not complete in StepTimeout, Do panics: the step is most likely
// deadlocked.
func (g *Goroutine) Do(f func()) {
	s := &step{f: f, ack: make(chan struct{})}
	g.stepq <- s
	select {
	case <-s.ack:
	case <-time.After(StepTimeout):
		panic(fmt.Sprintf("%s: step not finished in %s - deadlock", g.name, StepTimeout))
	}
}

// Stop terminates g after its current step.
func (g *Goroutine) Stop() {
	close(g.stepq)
	<-g.done
}

// Finish runs f in separate goroutine and fails the test if f returns error
// or does not finish in timeout.
func Finish(t testing.TB, timeout time.Duration, f func() error) {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- f()
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(timeout):
		t.Fatalf("not finished in %s - deadlock?", timeout)
	}
}
