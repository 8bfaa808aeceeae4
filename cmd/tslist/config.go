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
// workload description

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"lab.nexedi.com/kirr/go123/xerr"

	"lab.nexedi.com/kirr/tslist/container"
)

// Workload describes what stress runs.
type Workload struct {
	Container container.Options `yaml:"container"`
	Kind      string            `yaml:"kind"`    // "list" or "slist"
	Workers   int               `yaml:"workers"` // concurrent goroutines
	Ops       int               `yaml:"ops"`     // operations per worker
	Payload   int               `yaml:"payload"` // payload size in bytes, >= 8
	Seed      int64             `yaml:"seed"`
	Mix       map[string]int    `yaml:"mix"` // operation -> relative weight
}

// operations a workload can mix
var workloadOps = []string{
	"pushback", "pushfront", "popfront", "popback",
	"remove", "insertat", "removeat", "at", "advance", "each",
}

// defaultWorkload returns workload used when no file is given.
func defaultWorkload() *Workload {
	return &Workload{
		Container: container.Options{Name: "stress"},
		Kind:      "list",
		Workers:   8,
		Ops:       10000,
		Payload:   64,
		Seed:      1,
		Mix: map[string]int{
			"pushback":  4,
			"pushfront": 2,
			"popfront":  3,
			"popback":   1,
			"remove":    2,
			"insertat":  1,
			"removeat":  1,
			"at":        2,
			"advance":   2,
			"each":      1,
		},
	}
}

// loadWorkload reads workload from YAML file at path.
//
// Fields not present in the file keep their default values.
func loadWorkload(path string) (_ *Workload, err error) {
	defer xerr.Contextf(&err, "workload %s", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readWorkload(f)
}

func readWorkload(r io.Reader) (*Workload, error) {
	w := defaultWorkload()
	mix := w.Mix
	w.Mix = nil

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(w)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if w.Mix == nil {
		w.Mix = mix
	}

	err = w.validate()
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workload) validate() error {
	switch w.Kind {
	case "list", "slist":
	default:
		return fmt.Errorf("kind: invalid %q (want list or slist)", w.Kind)
	}
	if w.Workers <= 0 {
		return fmt.Errorf("workers: must be > 0")
	}
	if w.Container.ThreadUnsafe && w.Workers != 1 {
		return fmt.Errorf("container: thread-unsafe needs workers: 1")
	}
	if w.Ops < 0 {
		return fmt.Errorf("ops: must be >= 0")
	}
	if w.Payload < 8 {
		return fmt.Errorf("payload: must be >= 8")
	}

	total := 0
	for op, weight := range w.Mix {
		if !isWorkloadOp(op) {
			return fmt.Errorf("mix: unknown operation %q", op)
		}
		if weight < 0 {
			return fmt.Errorf("mix: %s: negative weight", op)
		}
		if op == "popback" && weight > 0 && w.Kind != "list" {
			return fmt.Errorf("mix: popback needs kind=list")
		}
		total += weight
	}
	if total == 0 {
		return fmt.Errorf("mix: no operations")
	}
	return nil
}

func isWorkloadOp(op string) bool {
	for _, o := range workloadOps {
		if o == op {
			return true
		}
	}
	return false
}

// opTable is cumulative weight table used to pick operations.
type opTable struct {
	opv   []string
	cumv  []int
	total int
}

func (w *Workload) opTable() *opTable {
	t := &opTable{}
	opv := make([]string, 0, len(w.Mix))
	for op := range w.Mix {
		opv = append(opv, op)
	}
	sort.Strings(opv)
	for _, op := range opv {
		if w.Mix[op] == 0 {
			continue
		}
		t.total += w.Mix[op]
		t.opv = append(t.opv, op)
		t.cumv = append(t.cumv, t.total)
	}
	return t
}

// pick returns operation for x in [0, total).
func (t *opTable) pick(x int) string {
	i := sort.SearchInts(t.cumv, x+1)
	return t.opv[i]
}

const workloadSummary = "format of stress workload file"

const workloadHelp = `Workload file is YAML. All fields are optional:

    container:
      name: stress        # name used in errors and logs
      maxlen: 0           # element limit; 0 = unbounded
      cursor-shards: 16   # shards of per-goroutine position table
      thread-unsafe: false
    kind: list            # list or slist
    workers: 8
    ops: 10000            # operations per worker
    payload: 64           # payload bytes per element (>= 8)
    seed: 1
    mix:                  # operation: relative weight
      pushback: 4
      pushfront: 2
      popfront: 3
      popback: 1          # list only
      remove: 2
      insertat: 1
      removeat: 1
      at: 2
      advance: 2
      each: 1

thread-unsafe is accepted only with workers: 1.
`
