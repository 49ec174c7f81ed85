// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/tilesched/pkg/core/dataflow"
	"github.com/gomlx/tilesched/pkg/core/schedule"
)

func reportSummary(s *schedule.Schedule) {
	edges := s.Edges()
	var numPhases, numTiles int
	for _, edge := range edges {
		numPhases += len(edge.Phases)
		numTiles += sumTiles(edge.Phases)
	}
	table := newKeyValueTable()
	table.Row("limits", s.Limits.String())
	table.Row("# components", humanize.Comma(int64(len(s.Components))))
	table.Row("# nodes", humanize.Comma(int64(len(s.Nodes()))))
	table.Row("# edges", humanize.Comma(int64(len(edges))))
	table.Row("# phases", humanize.Comma(int64(numPhases)))
	table.Row("# tiles per iteration", humanize.Comma(int64(numTiles)))
	fmt.Println(table.Render())
}

// reportNodes lists the scheduling values of every node. Roots whose epoch is not fully covered by
// their iterations are shown in red.
func reportNodes(s *schedule.Schedule) {
	fmt.Println(titleStyle.Render("Nodes"))
	table := newReportTable(lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Right)
	table.Headers("Component", "Node", "Kind", "Iterations", "Tiles to send", "Max tiles/phase",
		"Subtree divisor", "Upstream divisor", "Paths", "Single source", "Leaf subgraph")
	componentIdx := make(map[*schedule.Component]int, len(s.Components))
	for ii, c := range s.Components {
		componentIdx[c] = ii
	}
	for _, ref := range s.Nodes() {
		node, st := ref.Node(), ref.State()
		upstream, subgraph := "", ""
		if node.IsLeaf() {
			upstream = strconv.Itoa(ref.Component.UpstreamDivisor(ref.Index))
			subgraph = strconv.Itoa(st.LeafSubgraphID)
		}
		uncovered := node.IsRoot() && st.TilesToSend*st.NumIterations != node.EpochTiles
		table.FlaggedRow(uncovered,
			strconv.Itoa(componentIdx[ref.Component]),
			node.String(),
			node.Kind.String(),
			humanize.Comma(int64(st.NumIterations)),
			humanize.Comma(int64(st.TilesToSend)),
			humanize.Comma(int64(st.MaxTilesPerPhase)),
			strconv.Itoa(st.SubtreeDivisor),
			upstream,
			strconv.Itoa(st.NumUniquePaths),
			strconv.FormatBool(st.SingleSourcePath),
			subgraph)
	}
	fmt.Println(table.Render())
}

func reportGroups(s *schedule.Schedule) {
	fmt.Println(titleStyle.Render("Leaf groups"))
	table := newReportTable(lipgloss.Right)
	table.Headers("Component", "Leaf subgraph", "Path", "Leaves")
	for ii, c := range s.Components {
		for _, subgraphID := range c.Cluster.SubgraphIDs() {
			for pathIdx, group := range c.Cluster[subgraphID] {
				names := make([]string, 0, group.Len())
				for _, leaf := range group.Leaves() {
					names = append(names, c.Graph.Node(leaf).String())
				}
				table.Row(strconv.Itoa(ii), strconv.Itoa(subgraphID), strconv.Itoa(pathIdx), strings.Join(names, ", "))
			}
		}
	}
	fmt.Println(table.Render())
}

func reportEdges(s *schedule.Schedule) {
	fmt.Println(titleStyle.Render("Edges"))
	table := newReportTable(lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Right, lipgloss.Left)
	table.Headers("Source", "Destination", "# Phases", "Tiles", "Phases (offset:data+msgs)")
	for _, edge := range s.Edges() {
		table.Row(edge.Source.String(), edge.Destination.String(),
			strconv.Itoa(len(edge.Phases)),
			humanize.Comma(int64(sumTiles(edge.Phases))),
			formatPhases(edge.Phases, *flagMaxShown))
	}
	fmt.Println(table.Render())
}

func sumTiles(phases []dataflow.Phase) (sum int) {
	for _, phase := range phases {
		sum += phase.NumMsgs
	}
	return
}

// formatPhases lists up to maxShown phases (all if maxShown <= 0).
func formatPhases(phases []dataflow.Phase, maxShown int) string {
	shown := phases
	if maxShown > 0 && len(shown) > maxShown {
		shown = shown[:maxShown]
	}
	parts := make([]string, 0, len(shown)+1)
	for _, phase := range shown {
		parts = append(parts, fmt.Sprintf("%d:%d+%d", phase.PhaseOffset, phase.DataOffset, phase.NumMsgs))
	}
	if len(shown) < len(phases) {
		parts = append(parts, fmt.Sprintf("... (%d more)", len(phases)-len(shown)))
	}
	return strings.Join(parts, " ")
}
