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
// status protocol

// A status client connects to the address stress serves on and sends
//
//	"TSLS" <enc>
//
// where enc is 'M' for msgpack or 'Z' for pickle. The server replies with
// 4-byte big-endian length followed by Status encoded that way, and closes
// the connection.

import (
	"bytes"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	stdnet "net"
	"os"
	"time"

	pickle "github.com/kisielk/og-rek"
	"github.com/shamaton/msgpack"

	"lab.nexedi.com/kirr/go123/prog"
	"lab.nexedi.com/kirr/go123/xerr"
	"lab.nexedi.com/kirr/go123/xnet"

	"lab.nexedi.com/kirr/tslist/internal/log"
)

const statusMagic = "TSLS"

const (
	encMsgpack = 'M'
	encPickle  = 'Z'
)

// maximum accepted status reply
const maxStatusLen = 1 << 16

// encodeStatus encodes st according to enc.
func encodeStatus(st Status, enc byte) ([]byte, error) {
	switch enc {
	case encMsgpack:
		return msgpack.Encode(st)

	case encPickle:
		buf := &bytes.Buffer{}
		err := pickle.NewEncoder(buf).Encode(map[interface{}]interface{}{
			"container": st.Container,
			"len":       st.Len,
			"created":   st.Created,
			"released":  st.Released,
			"pushed":    st.Pushed,
			"popped":    st.Popped,
			"full":      st.Full,
			"empty":     st.Empty,
			"lookups":   st.Lookups,
			"walks":     st.Walks,
			"done":      st.Done,
		})
		if err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	return nil, fmt.Errorf("unknown encoding %q", enc)
}

// decodeStatus is the reverse of encodeStatus.
func decodeStatus(data []byte, enc byte) (st Status, err error) {
	switch enc {
	case encMsgpack:
		err = msgpack.Decode(data, &st)
		return st, err

	case encPickle:
		xst, err := pickle.NewDecoder(bytes.NewReader(data)).Decode()
		if err != nil {
			return st, err
		}
		d, ok := xst.(map[interface{}]interface{})
		if !ok {
			return st, fmt.Errorf("status: got %T; expect dict", xst)
		}

		var bad []string
		i64 := func(key string) int64 {
			v, ok := d[key].(int64)
			if !ok {
				bad = append(bad, key)
			}
			return v
		}
		st.Container, _ = d["container"].(string)
		st.Done, _ = d["done"].(bool)
		st.Len = i64("len")
		st.Created = i64("created")
		st.Released = i64("released")
		st.Pushed = i64("pushed")
		st.Popped = i64("popped")
		st.Full = i64("full")
		st.Empty = i64("empty")
		st.Lookups = i64("lookups")
		st.Walks = i64("walks")
		if len(bad) != 0 {
			return st, fmt.Errorf("status: invalid %v", bad)
		}
		return st, nil
	}

	return st, fmt.Errorf("unknown encoding %q", enc)
}

// serveStatus answers status requests accepted on l.
func serveStatus(ctx context.Context, l stdnet.Listener, status func() Status) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}

		go func() {
			err := replyStatus(conn, status)
			if err != nil {
				log.Warningf(ctx, "status %s: %s", conn.RemoteAddr(), err)
			}
		}()
	}
}

func replyStatus(conn stdnet.Conn, status func() Status) (err error) {
	defer func() {
		err2 := conn.Close()
		if err == nil {
			err = err2
		}
	}()

	conn.SetDeadline(time.Now().Add(10 * time.Second))

	var req [len(statusMagic) + 1]byte
	_, err = io.ReadFull(conn, req[:])
	if err != nil {
		return err
	}
	if string(req[:len(statusMagic)]) != statusMagic {
		return fmt.Errorf("bad magic %q", req[:len(statusMagic)])
	}

	data, err := encodeStatus(status(), req[len(statusMagic)])
	if err != nil {
		return err
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	_, err = conn.Write(append(hdr[:], data...))
	return err
}

// queryStatus asks status server at addr for current status.
func queryStatus(ctx context.Context, net xnet.Networker, addr string, enc byte) (_ Status, err error) {
	defer xerr.Contextf(&err, "status %s", addr)

	conn, err := net.Dial(ctx, addr)
	if err != nil {
		return Status{}, err
	}
	defer conn.Close()

	if d, ok := ctx.Deadline(); ok {
		conn.SetDeadline(d)
	}

	_, err = conn.Write(append([]byte(statusMagic), enc))
	if err != nil {
		return Status{}, err
	}

	var hdr [4]byte
	_, err = io.ReadFull(conn, hdr[:])
	if err != nil {
		return Status{}, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxStatusLen {
		return Status{}, fmt.Errorf("reply too large (%d bytes)", n)
	}
	data := make([]byte, n)
	_, err = io.ReadFull(conn, data)
	if err != nil {
		return Status{}, err
	}

	return decodeStatus(data, enc)
}

// ----------------------------------------

const statusSummary = "query status of running stress"

func statusUsage(w io.Writer) {
	fmt.Fprintf(w,
`Usage: tslist status [options] <address>
Query status of 'tslist stress -listen <address>'.

`)
}

func statusMain(argv []string) {
	flags := flag.NewFlagSet("", flag.ExitOnError)
	flags.Usage = func() { statusUsage(os.Stderr); flags.PrintDefaults() }
	pickled := flags.Bool("pickle", false, "ask for pickle encoding instead of msgpack")
	timeout := flags.Duration("timeout", 5*time.Second, "give up after that long")
	flags.Parse(argv[1:])

	argv = flags.Args()
	if len(argv) != 1 {
		flags.Usage()
		prog.Exit(2)
	}

	enc := byte(encMsgpack)
	if *pickled {
		enc = encPickle
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	st, err := queryStatus(ctx, xnet.NetPlain("tcp"), argv[0], enc)
	if err != nil {
		prog.Fatal(err)
	}

	fmt.Printf("container:\t%s\n", st.Container)
	fmt.Printf("len:\t\t%d\n", st.Len)
	fmt.Printf("pushed:\t\t%d\n", st.Pushed)
	fmt.Printf("popped:\t\t%d\n", st.Popped)
	fmt.Printf("full:\t\t%d\n", st.Full)
	fmt.Printf("empty:\t\t%d\n", st.Empty)
	fmt.Printf("lookups:\t%d\n", st.Lookups)
	fmt.Printf("walks:\t\t%d\n", st.Walks)
	fmt.Printf("payloads:\t%d created, %d released\n", st.Created, st.Released)
	fmt.Printf("done:\t\t%v\n", st.Done)
}
