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

// Package log logs via github.com/golang/glog with lines prefixed by the
// operational stack of the task carried in context.
//
// A line logged from a goroutine other than the one that started the task
// also names the task's goroutine:
//
//	stress: worker 3 (g42): ...
package log

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"lab.nexedi.com/kirr/tslist/internal/xcontext/task"
)

type severity int

const (
	sevInfo severity = iota
	sevWarning
	sevError
	sevFatal
)

var emit = [...]func(depth int, argv ...interface{}){
	sevInfo:    glog.InfoDepth,
	sevWarning: glog.WarningDepth,
	sevError:   glog.ErrorDepth,
	sevFatal:   glog.FatalDepth,
}

// prefix returns what goes in front of msg for a line logged under ctx.
func prefix(ctx context.Context, msg string) string {
	t := task.Current(ctx)
	if t == nil {
		return msg
	}
	p := t.String()
	if t.Foreign() {
		p += fmt.Sprintf(" (g%d)", t.Goid)
	}
	if msg == "" {
		return p
	}
	return p + ": " + msg
}

// Depth logs with call site reported that many frames above the caller.
type Depth int

func (d Depth) log(sev severity, ctx context.Context, msg string) {
	// +2: log and its Depth method
	emit[sev](int(d)+2, prefix(ctx, msg))
}

func (d Depth) Info(ctx context.Context, argv ...interface{})    { d.log(sevInfo, ctx, fmt.Sprint(argv...)) }
func (d Depth) Warning(ctx context.Context, argv ...interface{}) { d.log(sevWarning, ctx, fmt.Sprint(argv...)) }
func (d Depth) Error(ctx context.Context, argv ...interface{})   { d.log(sevError, ctx, fmt.Sprint(argv...)) }
func (d Depth) Fatal(ctx context.Context, argv ...interface{})   { d.log(sevFatal, ctx, fmt.Sprint(argv...)) }

func (d Depth) Infof(ctx context.Context, format string, argv ...interface{}) {
	d.log(sevInfo, ctx, fmt.Sprintf(format, argv...))
}

func (d Depth) Warningf(ctx context.Context, format string, argv ...interface{}) {
	d.log(sevWarning, ctx, fmt.Sprintf(format, argv...))
}

func (d Depth) Errorf(ctx context.Context, format string, argv ...interface{}) {
	d.log(sevError, ctx, fmt.Sprintf(format, argv...))
}

func (d Depth) Fatalf(ctx context.Context, format string, argv ...interface{}) {
	d.log(sevFatal, ctx, fmt.Sprintf(format, argv...))
}

func Info(ctx context.Context, argv ...interface{})    { Depth(1).Info(ctx, argv...) }
func Warning(ctx context.Context, argv ...interface{}) { Depth(1).Warning(ctx, argv...) }
func Error(ctx context.Context, argv ...interface{})   { Depth(1).Error(ctx, argv...) }
func Fatal(ctx context.Context, argv ...interface{})   { Depth(1).Fatal(ctx, argv...) }

func Infof(ctx context.Context, format string, argv ...interface{}) {
	Depth(1).Infof(ctx, format, argv...)
}

func Warningf(ctx context.Context, format string, argv ...interface{}) {
	Depth(1).Warningf(ctx, format, argv...)
}

func Errorf(ctx context.Context, format string, argv ...interface{}) {
	Depth(1).Errorf(ctx, format, argv...)
}

func Fatalf(ctx context.Context, format string, argv ...interface{}) {
	Depth(1).Fatalf(ctx, format, argv...)
}

// Verbose is informational logging enabled by -v level.
type Verbose bool

// V reports whether -v is at least level:
//
//	if v := log.V(2); v {
//		v.Infof(ctx, "walked %d elements", n)
//	}
func V(level glog.Level) Verbose { return Verbose(glog.V(level)) }

func (v Verbose) Info(ctx context.Context, argv ...interface{}) {
	if v {
		Depth(1).Info(ctx, argv...)
	}
}

func (v Verbose) Infof(ctx context.Context, format string, argv ...interface{}) {
	if v {
		Depth(1).Infof(ctx, format, argv...)
	}
}

// Flush writes out buffered log lines.
func Flush() { glog.Flush() }
