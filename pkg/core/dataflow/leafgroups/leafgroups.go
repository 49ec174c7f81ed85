// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package leafgroups clusters the leaves of a data-flow graph into groups that can be scheduled
// together.
//
// A leaf subgraph is the part of the graph below one branch of a parallel fork. Within a leaf
// subgraph, leaves are ordered by their root-to-leaf path index (set by serial forks), and leaves
// sharing a path index form a LeafGroup: they are fed identically, so phases computed for one of
// them can be copied to the others.
//
// Find needs the number of unique paths through each node, computed by package limits.
package leafgroups

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/tilesched/pkg/core/dataflow"
	"github.com/gomlx/tilesched/pkg/support/sets"
	"github.com/gomlx/tilesched/pkg/support/xslices"
	"k8s.io/klog/v2"
)

// LeafGroup is a set of interchangeable leaves, in the order they were found.
type LeafGroup struct {
	leaves        sets.Ordered[int]
	registrations map[int]int
}

func (lg *LeafGroup) register(leaf int) {
	if lg.registrations == nil {
		lg.registrations = make(map[int]int)
	}
	lg.leaves.Insert(leaf)
	lg.registrations[leaf]++
}

// Registrations returns how many distinct paths reached leaf into this group. Each one is a
// separate round of data for the leaf.
func (lg *LeafGroup) Registrations(leaf int) int { return lg.registrations[leaf] }

// Leaves returns the indices of the leaves in the group. The returned slice must not be modified.
func (lg *LeafGroup) Leaves() []int { return lg.leaves.Elements() }

// Len returns the number of leaves in the group.
func (lg *LeafGroup) Len() int { return lg.leaves.Len() }

// Empty returns whether the group has no leaves. Empty groups are expected, see Order.
func (lg *LeafGroup) Empty() bool { return lg.leaves.Len() == 0 }

// Representative returns the first leaf of the group, the one phases are computed for.
func (lg *LeafGroup) Representative() int { return lg.leaves.First() }

// Order holds the leaf groups of one leaf subgraph, indexed by root-to-leaf path index.
// Some groups may be empty, when no leaf is reached through a path index.
type Order []*LeafGroup

// Cluster maps leaf subgraph IDs to their Order.
type Cluster map[int]Order

// SubgraphIDs returns the leaf subgraph IDs in ascending order.
func (c Cluster) SubgraphIDs() []int {
	return xslices.SortedKeys(c)
}

// String implements fmt.Stringer, listing leaf indices per subgraph and path.
func (c Cluster) String() string {
	var sb strings.Builder
	for _, id := range c.SubgraphIDs() {
		fmt.Fprintf(&sb, "subgraph %d:", id)
		for pathIdx, group := range c[id] {
			fmt.Fprintf(&sb, " [%d]%v", pathIdx, group.Leaves())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (c Cluster) add(subgraphID, pathIdx, leaf int) {
	order := c[subgraphID]
	if pathIdx >= len(order) {
		klog.V(1).Infof("leafgroups: path index %d beyond the %d paths of leaf subgraph %d", pathIdx, len(order), subgraphID)
		for len(order) <= pathIdx {
			order = append(order, &LeafGroup{})
		}
		c[subgraphID] = order
	}
	order[pathIdx].register(leaf)
}

// Find assigns leaf subgraph IDs (stored in dataflow.State.LeafSubgraphID) and clusters the leaves.
func Find(graph *dataflow.Graph) Cluster {
	roots := graph.Roots()
	maxPaths := assignLeafSubgraphIDs(graph, roots)
	cluster := make(Cluster, len(maxPaths))
	for id, numPaths := range maxPaths {
		order := make(Order, numPaths)
		for ii := range order {
			order[ii] = &LeafGroup{}
		}
		cluster[id] = order
	}
	clusterLeaves(graph, roots, cluster)
	return cluster
}

type frame struct {
	node, next int
}

// assignLeafSubgraphIDs walks depth-first from the roots. The ID is carried unchanged through
// serial nodes, and incremented after each destination branch of a parallel node is fully visited.
// A node reached again keeps the ID it was first given.
//
// It returns, for each ID used, the maximum number of paths in subgraph reported by its nodes.
func assignLeafSubgraphIDs(graph *dataflow.Graph, roots []int) map[int]int {
	maxPaths := make(map[int]int)
	visited := make([]bool, graph.Len())
	subgraphID := 0
	var stack []frame
	visit := func(idx int) {
		visited[idx] = true
		graph.State(idx).LeafSubgraphID = subgraphID
		maxPaths[subgraphID] = max(maxPaths[subgraphID], graph.Node(idx).NumPathsInSubgraph())
		stack = append(stack, frame{node: idx})
	}
	isParallel := func(idx int) bool { return graph.Node(idx).FlowType == dataflow.FlowTypeParallel }

	for _, root := range roots {
		if visited[root] {
			continue
		}
		visit(root)
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			destinations := graph.Node(top.node).Destinations()
			if top.next < len(destinations) {
				next := destinations[top.next]
				top.next++
				if !visited[next] {
					visit(next)
				} else if isParallel(top.node) {
					subgraphID++
				}
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) > 0 && isParallel(stack[len(stack)-1].node) {
				subgraphID++
			}
		}
	}
	return maxPaths
}

type pathItem struct {
	node, pathIdx int
}

// clusterLeaves walks depth-first from the roots threading the root-to-leaf path index. A node is
// expanded at most as many times as its number of unique paths.
func clusterLeaves(graph *dataflow.Graph, roots []int, cluster Cluster) {
	visits := make([]int, graph.Len())
	var stack []pathItem
	for _, root := range roots {
		stack = append(stack, pathItem{node: root})
		for len(stack) > 0 {
			var item pathItem
			item, stack = xslices.Pop(stack)
			st := graph.State(item.node)
			if visits[item.node] >= max(st.NumUniquePaths, 1) {
				continue
			}
			visits[item.node]++
			node := graph.Node(item.node)
			pathIdx := node.RootToLeafPathIndex(item.pathIdx)
			if node.IsLeaf() {
				cluster.add(st.LeafSubgraphID, pathIdx, item.node)
				continue
			}
			destinations := node.Destinations()
			for _, dst := range slices.Backward(destinations) {
				stack = append(stack, pathItem{node: dst, pathIdx: pathIdx})
			}
		}
	}
}
