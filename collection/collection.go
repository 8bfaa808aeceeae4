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

// Package collection provides stacks, queues and sets built on top of
// thread-safe linked lists from package container.
//
// All structures are safe for concurrent use.
package collection

import (
	"lab.nexedi.com/kirr/go123/xerr"

	"lab.nexedi.com/kirr/tslist/container"
)

// pop takes value out of ref returned by a container pop.
func pop[T any](ref *container.Ref[T]) T {
	if ref == nil {
		var zero T
		return zero
	}
	defer ref.Release()
	return ref.Value()
}

// Stack is LIFO stack over singly linked list.
type Stack[T any] struct {
	l *container.SList[T]
}

// NewStack creates new empty stack.
//
// opt can be nil.
func NewStack[T any](opt *container.Options) *Stack[T] {
	return &Stack[T]{l: container.NewSList[T](opt)}
}

// Push puts v on top of the stack.
func (s *Stack[T]) Push(v T) (err error) {
	defer xerr.Contextf(&err, "stack %s: push", s.l.Name())
	_, err = s.l.PushFront(v)
	return err
}

// Pop removes and returns the top of the stack.
func (s *Stack[T]) Pop() (_ T, err error) {
	defer xerr.Contextf(&err, "stack %s: pop", s.l.Name())
	ref, err := s.l.PopFront()
	if err != nil {
		var zero T
		return zero, err
	}
	return pop(ref), nil
}

// Peek returns the top of the stack without removing it.
func (s *Stack[T]) Peek() (_ T, err error) {
	defer xerr.Contextf(&err, "stack %s: peek", s.l.Name())
	return peek(s.l.Front())
}

func (s *Stack[T]) Len() int   { return s.l.Len() }
func (s *Stack[T]) Empty() bool { return s.l.Empty() }
func (s *Stack[T]) Clear()      { s.l.Clear() }

// Queue is FIFO queue over doubly linked list.
type Queue[T any] struct {
	l *container.List[T]
}

// NewQueue creates new empty queue.
//
// opt can be nil.
func NewQueue[T any](opt *container.Options) *Queue[T] {
	return &Queue[T]{l: container.NewList[T](opt)}
}

// Push appends v to the queue.
func (q *Queue[T]) Push(v T) (err error) {
	defer xerr.Contextf(&err, "queue %s: push", q.l.Name())
	_, err = q.l.PushBack(v)
	return err
}

// Pop removes and returns the oldest value.
func (q *Queue[T]) Pop() (_ T, err error) {
	defer xerr.Contextf(&err, "queue %s: pop", q.l.Name())
	ref, err := q.l.PopFront()
	if err != nil {
		var zero T
		return zero, err
	}
	return pop(ref), nil
}

// Peek returns the oldest value without removing it.
func (q *Queue[T]) Peek() (_ T, err error) {
	defer xerr.Contextf(&err, "queue %s: peek", q.l.Name())
	return peek(q.l.Front())
}

func (q *Queue[T]) Len() int   { return q.l.Len() }
func (q *Queue[T]) Empty() bool { return q.l.Empty() }
func (q *Queue[T]) Clear()      { q.l.Clear() }

// peek returns value of e, which was the front element at the time of lookup.
func peek[T any](e *container.Element[T]) (T, error) {
	if e == nil {
		var zero T
		return zero, container.ErrOutOfRange
	}
	v, err := e.Value()
	if err != nil {
		// e was removed and destroyed after we looked it up
		return v, container.ErrOutOfRange
	}
	return v, nil
}
