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

// Package goid provides identity of the running goroutine.
//
// Go does not expose goroutine IDs. The ID is parsed from the first line of
// the goroutine's own stack trace, which always has the form
//
//	goroutine 123 [running]:
//
// This costs on the order of a microsecond, so callers should query it
// once per operation, not per step.
package goid

import (
	"runtime"
)

// Get returns ID of the calling goroutine.
func Get() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

// parse extracts goroutine ID from stack header.
//
// it panics if the header is not in expected format - that would mean Go
// runtime changed how it prints tracebacks.
func parse(b []byte) int64 {
	const prefix = "goroutine "
	if len(b) < len(prefix) || string(b[:len(prefix)]) != prefix {
		panic("goid: unexpected stack header: " + string(b))
	}
	b = b[len(prefix):]

	var id int64
	i := 0
	for ; i < len(b) && '0' <= b[i] && b[i] <= '9'; i++ {
		id = id*10 + int64(b[i]-'0')
	}
	if i == 0 {
		panic("goid: unexpected stack header: " + string(b))
	}
	return id
}
