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

// Tslist is a driver program for exercising thread-safe linked lists.
//
// It runs concurrent workloads against the containers, checks their
// invariants and exposes metrics and status while doing so.
package main

import "lab.nexedi.com/kirr/go123/prog"

var commands = prog.CommandRegistry{
	{Name: "stress", Summary: stressSummary, Usage: stressUsage, Main: stressMain},
	{Name: "opposing", Summary: opposingSummary, Usage: opposingUsage, Main: opposingMain},
	{Name: "status", Summary: statusSummary, Usage: statusUsage, Main: statusMain},
}

var helpTopics = prog.HelpRegistry{
	{Name: "workload", Summary: workloadSummary, Text: workloadHelp},
}

func main() {
	prog := prog.MainProg{
		Name:       "tslist",
		Summary:    "Tslist is a tool to stress and inspect thread-safe linked lists",
		Commands:   commands,
		HelpTopics: helpTopics,
	}

	prog.Main()
}
