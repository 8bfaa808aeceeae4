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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cursorLookups counts index lookups by whether they could start from
	// the goroutine's cached position.
	cursorLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tslist_cursor_lookups_total",
		Help: "Index lookups by start point (hit = cached position, miss = list end)",
	}, []string{"result"})

	// cursorInvalidations counts positions cleared because their element was removed.
	cursorInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tslist_cursor_invalidations_total",
		Help: "Cached positions cleared because their element was removed",
	})

	// renumberWalks counts O(n) renumbering walks.
	renumberWalks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tslist_renumber_walks_total",
		Help: "Renumbering walks performed on index access after structural change",
	})

	// elementsDestroyed counts elements whose payload reference was dropped.
	elementsDestroyed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tslist_elements_destroyed_total",
		Help: "Elements unlinked and destroyed by containers",
	})
)
