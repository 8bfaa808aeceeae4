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

package main
// tslist opposing

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"lab.nexedi.com/kirr/go123/prog"

	"lab.nexedi.com/kirr/tslist/container"
	"lab.nexedi.com/kirr/tslist/internal/log"
	"lab.nexedi.com/kirr/tslist/internal/task"
	"lab.nexedi.com/kirr/tslist/xcommon/xsync"
)

// churnAfter inserts fresh element after at and removes it right away, n times.
func churnAfter(ctx context.Context, at *container.Element[int], n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := container.NewElement(container.NewRef(i, nil))
		if !at.InsertAfter(e) {
			return fmt.Errorf("#%d: insert after anchor failed", i)
		}
		if x := at.RemoveNext(); x != e {
			return fmt.Errorf("#%d: removed %p, inserted %p", i, x, e)
		}
	}
	return nil
}

// opposeElements runs two goroutines that splice around adjacent elements
// head and a: the first one locks (head, x, a), the second (a, y, ...).
func opposeElements(ctx context.Context, n int) (err error) {
	defer task.Running(&ctx, "elements")(&err)

	head := container.NewHead[int]()
	a := container.NewElement(container.NewRef(-1, nil))
	if !head.InsertAfter(a) {
		return fmt.Errorf("setup: insert failed")
	}

	wg, ctx := xsync.WorkGroupCtx(ctx)
	wg.Go(func() error { return churnAfter(ctx, head, n) })
	wg.Go(func() error { return churnAfter(ctx, a, n) })
	return wg.Wait()
}

// opposeList works a list from both ends at the same time, walking it in
// both directions meanwhile.
func opposeList(ctx context.Context, n int) (err error) {
	defer task.Running(&ctx, "list")(&err)

	l := container.NewList[int](&container.Options{Name: "opposing"})
	for i := 0; i < 16; i++ {
		if _, err := l.PushBack(i); err != nil {
			return err
		}
	}

	wg, ctx := xsync.WorkGroupCtx(ctx)
	wg.Go(func() error {
		for i := 0; i < n && ctx.Err() == nil; i++ {
			if _, err := l.PushFront(i); err != nil {
				return err
			}
			ref, err := l.PopBack()
			if err != nil {
				return err
			}
			ref.Release()
		}
		return ctx.Err()
	})
	wg.Go(func() error {
		for i := 0; i < n && ctx.Err() == nil; i++ {
			if _, err := l.PushBack(i); err != nil {
				return err
			}
			ref, err := l.PopFront()
			if err != nil {
				return err
			}
			ref.Release()
		}
		return ctx.Err()
	})
	wg.Go(func() error {
		for i := 0; i < n/16 && ctx.Err() == nil; i++ {
			l.Each(func(*container.Element[int]) bool { return true })
			l.EachReverse(func(*container.Element[int]) bool { return true })
		}
		return ctx.Err()
	})
	err = wg.Wait()
	if err != nil {
		return err
	}

	if l.Len() != 16 {
		return fmt.Errorf("len=%d after balanced churn; want 16", l.Len())
	}
	return nil
}

// runOpposing runs all opposing scenarios with n iterations each.
//
// If they do not finish in timeout it is reported as error: the goroutines
// are most likely deadlocked and are left behind.
func runOpposing(ctx context.Context, n int, timeout time.Duration) (err error) {
	defer task.Running(&ctx, "opposing")(&err)

	done := make(chan error, 1)
	go func() {
		err := opposeElements(ctx, n)
		if err == nil {
			err = opposeList(ctx, n)
		}
		done <- err
	}()

	select {
	case err = <-done:
		if err == nil {
			log.Infof(ctx, "ok: %d iterations, %d multilock retries", n, xsync.Retries())
		}
		return err

	case <-time.After(timeout):
		return fmt.Errorf("not finished in %s - deadlock", timeout)
	}
}

const opposingSummary = "check that splicing in opposing directions does not deadlock"

func opposingUsage(w io.Writer) {
	fmt.Fprintf(w,
`Usage: tslist opposing [options]
Run goroutines that insert and remove around adjacent elements and at both
ends of a list, and fail if they do not finish in time.

`)
}

func opposingMain(argv []string) {
	flags := flag.NewFlagSet("", flag.ExitOnError)
	flags.Usage = func() { opposingUsage(os.Stderr); flags.PrintDefaults() }
	n := flags.Int("n", 100000, "iterations per goroutine")
	timeout := flags.Duration("timeout", time.Minute, "fail if not finished in that time")
	flags.Parse(argv[1:])

	if flags.NArg() != 0 {
		flags.Usage()
		prog.Exit(2)
	}

	err := runOpposing(context.Background(), *n, *timeout)
	log.Flush()
	if err != nil {
		prog.Fatal(err)
	}
}
