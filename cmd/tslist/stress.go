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
// tslist stress

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"lab.nexedi.com/kirr/go123/mem"
	"lab.nexedi.com/kirr/go123/prog"
	"lab.nexedi.com/kirr/go123/xnet"

	"lab.nexedi.com/kirr/tslist/container"
	"lab.nexedi.com/kirr/tslist/internal/log"
	"lab.nexedi.com/kirr/tslist/internal/task"
	"lab.nexedi.com/kirr/tslist/xcommon/xsync"
)

type (
	payload = *mem.Buf
	bufRef  = container.Ref[payload]
	bufElem = container.Element[payload]
)

// bufList is what stress needs from a container.
type bufList interface {
	Name() string
	Len() int
	PushBackRef(ref *bufRef) (*bufElem, error)
	PushFrontRef(ref *bufRef) (*bufElem, error)
	InsertAtRef(i int, ref *bufRef) (*bufElem, error)
	PopFront() (*bufRef, error)
	Remove(e *bufElem) (*bufRef, error)
	RemoveAt(i int) (*bufRef, error)
	At(i int) (*bufElem, error)
	Advance() (*bufElem, error)
	Each(f func(e *bufElem) bool)
	Cursors() *container.Cursors[payload]
	Clear()
}

// bufDList is bufList that can also pop from the back.
type bufDList interface {
	bufList
	PopBack() (*bufRef, error)
}

// Status is a snapshot of stress progress.
type Status struct {
	Container string `msgpack:"container"`
	Len       int64  `msgpack:"len"`
	Created   int64  `msgpack:"created"`  // payloads allocated
	Released  int64  `msgpack:"released"` // payloads freed
	Pushed    int64  `msgpack:"pushed"`   // successful inserts
	Popped    int64  `msgpack:"popped"`   // successful removals
	Full      int64  `msgpack:"full"`     // inserts refused: container full
	Empty     int64  `msgpack:"empty"`    // operations that found no element
	Lookups   int64  `msgpack:"lookups"`
	Walks     int64  `msgpack:"walks"`
	Done      bool   `msgpack:"done"`
}

// stress runs a workload against one container.
type stress struct {
	w *Workload
	l bufList

	created  atomic.Int64
	released atomic.Int64
	pushed   atomic.Int64
	popped   atomic.Int64
	full     atomic.Int64
	empty    atomic.Int64
	lookups  atomic.Int64
	walks    atomic.Int64
	done     atomic.Bool
}

func newStress(w *Workload) *stress {
	s := &stress{w: w}
	switch w.Kind {
	case "slist":
		s.l = container.NewSList[payload](&w.Container)
	default:
		s.l = container.NewList[payload](&w.Container)
	}
	return s
}

func (s *stress) status() Status {
	return Status{
		Container: s.l.Name(),
		Len:       int64(s.l.Len()),
		Created:   s.created.Load(),
		Released:  s.released.Load(),
		Pushed:    s.pushed.Load(),
		Popped:    s.popped.Load(),
		Full:      s.full.Load(),
		Empty:     s.empty.Load(),
		Lookups:   s.lookups.Load(),
		Walks:     s.walks.Load(),
		Done:      s.done.Load(),
	}
}

// newPayload allocates payload stamped with id.
func (s *stress) newPayload(id uint64) *bufRef {
	buf := mem.BufAlloc(s.w.Payload)
	binary.BigEndian.PutUint64(buf.Data, id)
	for i := 8; i < len(buf.Data); i++ {
		buf.Data[i] = byte(id)
	}
	s.created.Add(1)
	return container.BufRef(buf, func() { s.released.Add(1) })
}

// checkPayload verifies that buf still carries its stamp.
func checkPayload(buf payload) error {
	if buf == nil || len(buf.Data) < 8 {
		return fmt.Errorf("payload: missing")
	}
	id := binary.BigEndian.Uint64(buf.Data)
	for i := 8; i < len(buf.Data); i++ {
		if buf.Data[i] != byte(id) {
			return fmt.Errorf("payload %x: corrupt at byte %d", id, i)
		}
	}
	return nil
}

// run runs all workers and verifies the container afterwards.
func (s *stress) run(ctx context.Context) (err error) {
	defer task.Runningf(&ctx, "stress %s", s.l.Name())(&err)
	defer s.done.Store(true)

	wg, ctx := xsync.WorkGroupCtx(ctx)
	wg.GoN(s.w.Workers, func(i int) error {
		return s.worker(ctx, i)
	})
	err = wg.Wait()
	if err != nil {
		return err
	}

	return s.verify(ctx)
}

// keep at most that many own elements for remove
const maxOwned = 128

func (s *stress) worker(ctx context.Context, i int) (err error) {
	defer task.Runningf(&ctx, "worker %d", i)(&err)
	defer s.l.Cursors().Forget()

	rnd := rand.New(rand.NewSource(s.w.Seed + int64(i)))
	ops := s.w.opTable()
	var owned []*bufElem

	for k := 0; k < s.w.Ops; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		op := ops.pick(rnd.Intn(ops.total))
		id := uint64(i)<<32 | uint64(k)
		e, err := s.do(op, id, rnd, &owned)
		err = s.account(err)
		if err != nil {
			return errors.Wrapf(err, "op #%d %s", k, op)
		}

		if e != nil {
			owned = append(owned, e)
			if len(owned) > maxOwned {
				owned = owned[1:]
			}
		}
	}

	if v := log.V(1); v {
		v.Infof(ctx, "%d ops done", s.w.Ops)
	}
	return nil
}

// account sorts out expected failures; only unexpected errors are returned.
func (s *stress) account(err error) error {
	switch errors.Cause(err) {
	case nil:
		return nil
	case container.ErrOutOfRange:
		s.empty.Add(1)
		return nil
	case container.ErrElementCreation:
		s.full.Add(1)
		return nil
	default:
		return err
	}
}

// do performs one operation.
//
// Inserted element is returned so that the worker can later remove it.
func (s *stress) do(op string, id uint64, rnd *rand.Rand, owned *[]*bufElem) (*bufElem, error) {
	l := s.l

	insert := func(f func(ref *bufRef) (*bufElem, error)) (*bufElem, error) {
		ref := s.newPayload(id)
		e, err := f(ref)
		if err != nil {
			ref.Release()
			return nil, err
		}
		s.pushed.Add(1)
		return e, nil
	}

	remove := func(ref *bufRef, err error) (*bufElem, error) {
		if err != nil {
			return nil, err
		}
		s.popped.Add(1)
		defer ref.XRelease()
		return nil, checkPayload(ref.Value())
	}

	switch op {
	case "pushback":
		return insert(l.PushBackRef)

	case "pushfront":
		return insert(l.PushFrontRef)

	case "insertat":
		i := rnd.Intn(l.Len() + 1)
		return insert(func(ref *bufRef) (*bufElem, error) {
			return l.InsertAtRef(i, ref)
		})

	case "popfront":
		return remove(l.PopFront())

	case "popback":
		return remove(l.(bufDList).PopBack())

	case "remove":
		n := len(*owned)
		if n == 0 {
			return nil, container.ErrOutOfRange
		}
		k := rnd.Intn(n)
		e := (*owned)[k]
		*owned = append((*owned)[:k], (*owned)[k+1:]...)
		return remove(l.Remove(e))

	case "removeat":
		return remove(l.RemoveAt(randIndex(rnd, l.Len())))

	case "at":
		s.lookups.Add(1)
		e, err := l.At(randIndex(rnd, l.Len()))
		if err != nil {
			return nil, err
		}
		return nil, checkElem(e)

	case "advance":
		e, err := l.Advance()
		if err != nil {
			return nil, err
		}
		return nil, checkElem(e)

	case "each":
		s.walks.Add(1)
		limit := rnd.Intn(64)
		var err error
		l.Each(func(e *bufElem) bool {
			err = checkElem(e)
			limit--
			return err == nil && limit > 0
		})
		return nil, err
	}

	panic(fmt.Sprintf("stress: unknown op %q", op))
}

// checkElem verifies payload of element obtained from the container.
//
// The element might be removed and destroyed by other workers right after
// lookup - that is not an error.
func checkElem(e *bufElem) error {
	ref := e.Ref()
	if ref == nil {
		return nil
	}
	defer ref.Release()
	return checkPayload(ref.Value())
}

func randIndex(rnd *rand.Rand, n int) int {
	if n == 0 {
		return 0
	}
	return rnd.Intn(n)
}

// verify checks container invariants after all workers finished.
func (s *stress) verify(ctx context.Context) error {
	n := int64(s.l.Len())
	if want := s.pushed.Load() - s.popped.Load(); n != want {
		return fmt.Errorf("len=%d, but pushed-popped=%d", n, want)
	}

	reachable := int64(0)
	var err error
	s.l.Each(func(e *bufElem) bool {
		if e.IsRemoved() {
			err = fmt.Errorf("removed element reachable at #%d", reachable)
			return false
		}
		reachable++
		return true
	})
	if err != nil {
		return err
	}
	if reachable != n {
		return fmt.Errorf("len=%d, but %d elements reachable", n, reachable)
	}

	s.l.Clear()
	if c, r := s.created.Load(), s.released.Load(); c != r {
		return fmt.Errorf("%d payloads created, but %d released", c, r)
	}

	log.Infof(ctx, "ok: %d pushed, %d popped, %d left before clear", s.pushed.Load(), s.popped.Load(), n)
	return nil
}

// ----------------------------------------

const stressSummary = "run concurrent workload against a container and verify it"

func stressUsage(w io.Writer) {
	fmt.Fprintf(w,
`Usage: tslist stress [options]
Run concurrent push/pop/insert/remove workload against a linked list and
verify that its size, reachability and payload ownership invariants hold.

See 'tslist help workload' for workload file format.

`)
}

func stressMain(argv []string) {
	flags := flag.NewFlagSet("", flag.ExitOnError)
	flags.Usage = func() { stressUsage(os.Stderr); flags.PrintDefaults() }
	config := flags.String("config", "", "workload file")
	listen := flags.String("listen", "", "serve metrics and status on this address")
	linger := flags.Duration("linger", 0, "keep serving that long after the workload is done")
	flags.Parse(argv[1:])

	if flags.NArg() != 0 {
		flags.Usage()
		prog.Exit(2)
	}

	w := defaultWorkload()
	if *config != "" {
		var err error
		w, err = loadWorkload(*config)
		if err != nil {
			prog.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newStress(w)

	served := make(chan error, 1)
	if *listen != "" {
		go func() {
			served <- listenAndServe(ctx, xnet.NetPlain("tcp"), *listen, s.status)
		}()
	}

	err := s.run(ctx)

	st := s.status()
	fmt.Printf("%s: pushed %d  popped %d  full %d  empty %d  lookups %d  walks %d\n",
		st.Container, st.Pushed, st.Popped, st.Full, st.Empty, st.Lookups, st.Walks)

	if *listen != "" {
		select {
		case <-time.After(*linger):
		case serr := <-served:
			served <- serr
		}
		cancel()
		serr := <-served
		if serr != nil && errors.Cause(serr) != context.Canceled {
			log.Error(ctx, serr)
		}
	}

	log.Flush()
	if err != nil {
		prog.Fatal(err)
	}
}
