// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataflow

import (
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// FindConnectedComponents partitions nodes into weakly connected components: two nodes end up in
// the same Graph iff there is an undirected path of source/destination edges between them.
//
// It takes ownership of nodes (as returned by Builder.Build): each node is moved into exactly one
// of the returned graphs, and its indices are rewritten to be local to that graph. Components are
// returned in the order of their first node in nodes.
func FindConnectedComponents(nodes []*Node) []*Graph {
	const unassigned = -1
	componentOf := make([]int, len(nodes))
	for ii := range componentOf {
		componentOf[ii] = unassigned
	}

	numComponents := 0
	var stack []int
	for start := range nodes {
		if componentOf[start] != unassigned {
			continue
		}
		componentID := numComponents
		numComponents++
		componentOf[start] = componentID
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, neighbors := range [][]int{nodes[current].sources, nodes[current].destinations} {
				for _, next := range neighbors {
					if componentOf[next] == unassigned {
						componentOf[next] = componentID
						stack = append(stack, next)
					}
				}
			}
		}
	}

	members := make([][]int, numComponents)
	for ii, componentID := range componentOf {
		if componentID == unassigned {
			exceptions.Panicf("dataflow: node %s was not assigned to any connected component", nodes[ii])
		}
		members[componentID] = append(members[componentID], ii)
	}

	graphs := make([]*Graph, numComponents)
	localIndex := make([]int, len(nodes))
	for componentID, component := range members {
		for local, global := range component {
			localIndex[global] = local
		}
		owned := make([]*Node, len(component))
		for local, global := range component {
			node := nodes[global]
			node.index = local
			node.sources = remapIndices(node.sources, localIndex)
			node.destinations = remapIndices(node.destinations, localIndex)
			for _, group := range node.inputGroups {
				for jj := range group {
					group[jj].Source = localIndex[group[jj].Source]
				}
			}
			owned[local] = node
		}
		graphs[componentID] = newGraph(owned)
	}
	klog.V(1).Infof("dataflow: %d nodes partitioned into %d connected components", len(nodes), numComponents)
	return graphs
}

func remapIndices(indices []int, localIndex []int) []int {
	remapped := make([]int, len(indices))
	for ii, idx := range indices {
		remapped[ii] = localIndex[idx]
	}
	return remapped
}
