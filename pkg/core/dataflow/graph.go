// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataflow

import (
	"github.com/gomlx/exceptions"
)

// Graph owns the nodes of one connected component, plus their scheduling State.
//
// Nodes refer to each other by their index in the Graph.
type Graph struct {
	nodes  []*Node
	states []State
	byID   map[uint64]int
}

// newGraph takes ownership of nodes, whose indices must already be local to this graph.
func newGraph(nodes []*Node) *Graph {
	g := &Graph{
		nodes:  nodes,
		states: make([]State, len(nodes)),
		byID:   make(map[uint64]int, len(nodes)),
	}
	for ii, node := range nodes {
		if node.index != ii {
			exceptions.Panicf("dataflow: node %s has index %d but is stored at position %d", node, node.index, ii)
		}
		g.byID[node.ID] = ii
		g.states[ii] = newState()
	}
	return g
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node at index idx.
func (g *Graph) Node(idx int) *Node { return g.nodes[idx] }

// State returns the scheduling state of the node at index idx, for in-place update.
func (g *Graph) State(idx int) *State { return &g.states[idx] }

// Nodes returns all nodes, in index order. The returned slice must not be modified.
func (g *Graph) Nodes() []*Node { return g.nodes }

// NodeByID returns the index of the node with the given external ID.
func (g *Graph) NodeByID(id uint64) (idx int, found bool) {
	idx, found = g.byID[id]
	return
}

// ResetState discards every computed scheduling value, keeping the topology.
func (g *Graph) ResetState() {
	for ii := range g.states {
		g.states[ii] = newState()
	}
}

// Roots returns the indices of the nodes without sources. It panics if any node is isolated.
func (g *Graph) Roots() []int {
	var roots []int
	for ii, node := range g.nodes {
		if node.IsRoot() {
			roots = append(roots, ii)
		}
	}
	return roots
}

// Leaves returns the indices of the nodes without destinations. It panics if any node is isolated.
func (g *Graph) Leaves() []int {
	var leaves []int
	for ii, node := range g.nodes {
		if node.IsLeaf() {
			leaves = append(leaves, ii)
		}
	}
	return leaves
}
