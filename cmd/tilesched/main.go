// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// tilesched schedules the data-flow graph described in a YAML file and reports the phases computed
// for every edge. With -compress it instead compresses DRAM scatter address tables.
//
// Usage:
//
//	tilesched [flags] graph.yaml
//	tilesched -compress [-tilizer -dim=2 -rows=32] offsets.txt...
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/gomlx/tilesched/pkg/core/graphdesc"
	"github.com/gomlx/tilesched/pkg/core/hwconfig"
	"github.com/gomlx/tilesched/pkg/core/schedule"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagLimits = flag.String("limits", "",
		fmt.Sprintf("Hardware limits configuration, e.g. %q. It overrides the limits in the graph "+
			"description and $%s.", hwconfig.Default().String(), hwconfig.TILESCHED_LIMITS))
	flagNodes    = flag.Bool("nodes", true, "Lists the scheduling values computed for each node.")
	flagEdges    = flag.Bool("edges", true, "Lists the phases of each edge.")
	flagGroups   = flag.Bool("groups", false, "Lists the leaf groups of each component.")
	flagMaxShown = flag.Int("max_phases", 8, "Maximum number of phases listed per edge, 0 for all.")

	flagCompress = flag.Bool("compress", false, "Compresses the scatter offsets in the given files, "+
		"one address per line (decimal or 0x-prefixed hexadecimal), instead of scheduling a graph.")
	flagTilizer = flag.Bool("tilizer", false, "With -compress, uses the tilizer encoding.")
	flagDim     = flag.Int("dim", 1, "With -tilizer, the tilizer dimension: if > 1 progressions are capped at -rows.")
	flagRows    = flag.Int("rows", 0, "With -tilizer and -dim > 1, the number of rows per block.")
	flagPrint   = flag.Bool("print", false, "With -compress, prints the encoded values.")
	flagWorkers = flag.Int("workers", runtime.NumCPU(), "With -compress, the number of files compressed "+
		"concurrently. 0 compresses them one after the other, -1 has no limit.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		klog.Errorf("Missing input file. See 'tilesched -help'.")
		os.Exit(1)
	}
	if *flagCompress {
		compressFiles(args)
		return
	}
	if len(args) > 1 {
		klog.Errorf("Too many arguments, only one graph description can be scheduled. See 'tilesched -help'.")
		os.Exit(1)
	}
	scheduleFile(args[0])
}

func scheduleFile(filePath string) {
	desc := must.M1(graphdesc.Load(filePath))
	var limits hwconfig.Limits
	if *flagLimits != "" {
		limits = must.M1(hwconfig.Parse(*flagLimits))
	} else {
		limits = must.M1(desc.HWLimits())
	}
	nodes := must.M1(desc.Build())
	s, err := schedule.Run(nodes, limits)
	if err != nil {
		klog.Exitf("Failed to schedule %q: %+v", filePath, err)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Schedule of %s", filePath)))
	reportSummary(s)
	if *flagNodes {
		reportNodes(s)
	}
	if *flagGroups {
		reportGroups(s)
	}
	if *flagEdges {
		reportEdges(s)
	}
	if err := s.Validate(); err != nil {
		klog.Warningf("Schedule of %q is inconsistent: %v", filePath, err)
	}
}
