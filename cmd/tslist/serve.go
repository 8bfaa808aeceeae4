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
// serving metrics and status

import (
	"context"
	"fmt"
	"io"
	stdnet "net"
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soheilhy/cmux"

	"lab.nexedi.com/kirr/go123/xnet"

	"lab.nexedi.com/kirr/tslist/internal/log"
	"lab.nexedi.com/kirr/tslist/xcommon/xsync"
)

// statusMatch tells whether incoming stream starts with status request magic.
func statusMatch(r io.Reader) bool {
	var b [len(statusMagic)]byte
	_, err := io.ReadFull(r, b[:])
	return err == nil && string(b[:]) == statusMagic
}

// httpHandler returns handler serving /metrics and /debug/pprof.
func httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// listenAndServe serves metrics and status on laddr until ctx is canceled.
func listenAndServe(ctx context.Context, net xnet.Networker, laddr string, status func() Status) error {
	l, err := net.Listen(laddr)
	if err != nil {
		return err
	}

	log.Infof(ctx, "listening at %s ...", l.Addr())
	log.Flush()

	return serve(ctx, l, status)
}

// serve multiplexes connections accepted on l.
//
// Status requests are answered with status(), HTTP connections go to
// metrics and profiling handlers. Anything else is logged and rejected.
// serve closes l when ctx is canceled.
func serve(ctx context.Context, l stdnet.Listener, status func() Status) error {
	parent := ctx

	mux := cmux.New(l)
	statusL := mux.Match(statusMatch)
	httpL := mux.Match(cmux.HTTP1Fast())
	miscL := mux.Match(cmux.Any())

	wg, ctx := xsync.WorkGroupCtx(ctx)

	wg.Go(func() error {
		<-ctx.Done()
		l.Close()
		return ctx.Err()
	})

	wg.Go(func() error {
		return mux.Serve()
	})

	wg.Go(func() error {
		return serveStatus(ctx, statusL, status)
	})

	wg.Go(func() error {
		return http.Serve(httpL, httpHandler())
	})

	wg.Go(func() error {
		for {
			conn, err := miscL.Accept()
			if err != nil {
				return err
			}

			// got something unexpected - grab what we already have,
			// log it and reject the connection.
			b := make([]byte, 64)
			n, _ := conn.Read(b)
			serr := "peer sent nothing"
			if n > 0 {
				serr = fmt.Sprintf("peer sent %q", b[:n])
			}
			log.Infof(ctx, "strange connection from %s: %s", conn.RemoteAddr(), serr)
			conn.Close()
		}
	})

	err := wg.Wait()
	if parent.Err() != nil {
		return parent.Err()
	}
	return err
}
