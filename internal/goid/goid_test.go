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

package goid

import (
	"testing"
)

func TestParse(t *testing.T) {
	testv := []struct {
		header string
		id     int64
	}{
		{"goroutine 1 [running]:\nmain.main()", 1},
		{"goroutine 18 [running]:", 18},
		{"goroutine 1234567890 [chan receive]:", 1234567890},
	}

	for _, tt := range testv {
		id := parse([]byte(tt.header))
		if id != tt.id {
			t.Errorf("parse(%q): have %d  ; want %d", tt.header, id, tt.id)
		}
	}
}

func TestParseBad(t *testing.T) {
	for _, header := range []string{"", "gorout", "goroutine x [running]:"} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("parse(%q): no panic", header)
				}
			}()
			parse([]byte(header))
		}()
	}
}

func TestGetDistinct(t *testing.T) {
	me := Get()
	if me <= 0 {
		t.Fatalf("goid: %d", me)
	}
	if again := Get(); again != me {
		t.Fatalf("goid not stable: %d -> %d", me, again)
	}

	other := make(chan int64)
	go func() {
		other <- Get()
	}()
	if id := <-other; id == me {
		t.Fatalf("another goroutine has the same id %d", id)
	}
}
