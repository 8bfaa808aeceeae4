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

package container

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned for operations on a position that does not
	// exist, e.g. pop from empty container or index past the end.
	ErrOutOfRange = errors.New("out of range")

	// ErrElementCreation is returned when a new element cannot be created.
	ErrElementCreation = errors.New("cannot create element")

	// ErrNullPayload is returned when accessing value of an element that
	// has no payload.
	ErrNullPayload = errors.New("null payload")
)

// OpError is the error returned by container operations.
type OpError struct {
	Container string      // container name
	Op        string      // operation, e.g. "pop"
	Args      interface{} // operation arguments, if any
	Err       error       // actual error that occurred during the operation
}

func (e *OpError) Error() string {
	s := e.Container + ": " + e.Op
	if e.Args != nil {
		s += fmt.Sprintf(" %v", e.Args)
	}
	return s + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

// Cause returns e.Err so that errors.Cause from github.com/pkg/errors sees
// through OpError.
func (e *OpError) Cause() error { return e.Err }
