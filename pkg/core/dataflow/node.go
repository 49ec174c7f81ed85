// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dataflow models the graph of hardware buffers and pipes that the scheduling passes work on.
//
// Nodes are stored in an arena (a Graph), and refer to each other by index: sources, destinations
// and input groups never own other nodes. Static topology lives in Node, while everything a
// scheduling pass computes lives in the parallel State slice of the Graph, so a Graph can be
// rescheduled by simply resetting its states.
//
// Structural errors (an isolated node, an out-of-range input group) are fatal and reported with
// a panic, see package github.com/gomlx/exceptions.
package dataflow

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// Attributes are the per-node scalars derived from the hardware description of the buffer.
type Attributes struct {
	// EpochTiles is the number of tiles transferred in one epoch.
	EpochTiles int

	// ScatterGatherTiles is the number of tiles moved per scatter/gather chunk.
	ScatterGatherTiles int

	// ConsumeGranularity is the minimum multiple of tiles the node needs to clear its buffer.
	ConsumeGranularity int

	// RepeatFactor and SerializationFactor scale the number of iterations relative to the upstream node.
	// Zero is normalized to 1.
	RepeatFactor        int
	SerializationFactor int

	// SizeTiles is the size of the buffer in tiles.
	SizeTiles int

	// TilesPerInput is the number of tiles the node provides for each input referring to it.
	TilesPerInput int

	// Scatter marks nodes whose transfer fans out non-uniformly across destinations.
	Scatter bool

	FlowType FlowType

	// ForkIndex and ForkCount are only meaningful for FlowTypeSerialFork nodes.
	ForkIndex, ForkCount int
}

// Input is one entry of a node's input list: a source node (index in the Graph) and the tile
// offset read from it.
type Input struct {
	Source int
	Offset int
}

// Node is one buffer (or stream endpoint) in the data-flow graph.
type Node struct {
	// ID is the identity of the node in the external graph.
	ID   uint64
	Name string
	Kind Kind
	Attributes

	index        int
	sources      []int
	destinations []int
	inputGroups  [][]Input
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n.Name != "" {
		return fmt.Sprintf("%s(#%d)", n.Name, n.ID)
	}
	return fmt.Sprintf("#%d", n.ID)
}

// Index of the node in its owning Graph.
func (n *Node) Index() int { return n.index }

// Sources returns the indices of the nodes feeding this one, in order of first appearance.
func (n *Node) Sources() []int { return n.sources }

// Destinations returns the indices of the nodes this node feeds.
func (n *Node) Destinations() []int { return n.destinations }

func (n *Node) assertConnected() {
	if len(n.sources) == 0 && len(n.destinations) == 0 {
		exceptions.Panicf("dataflow: node %s has neither sources nor destinations, it can't be scheduled", n)
	}
}

// IsRoot returns whether the node has no sources. It panics for an isolated node.
func (n *Node) IsRoot() bool {
	n.assertConnected()
	return len(n.sources) == 0
}

// IsLeaf returns whether the node has no destinations. It panics for an isolated node.
func (n *Node) IsLeaf() bool {
	n.assertConnected()
	return len(n.destinations) == 0
}

// IsScatter returns whether the node scatters its data non-uniformly.
func (n *Node) IsScatter() bool { return n.Scatter }

// IsUnion returns whether the node is fed by more than one input group.
func (n *Node) IsUnion() bool { return len(n.inputGroups) > 1 }

// IsDRAMOrPCIeInput returns whether the node reads from DRAM or a PCIe stream.
func (n *Node) IsDRAMOrPCIeInput() bool { return n.Kind.traits().dramOrPCIeInput }

// IsDRAMOrPCIeOutput returns whether the node writes to DRAM or a PCIe stream.
func (n *Node) IsDRAMOrPCIeOutput() bool { return n.Kind.traits().dramOrPCIeOutput }

// CanDoEpochInSingleIteration returns true for nodes that can hold a whole epoch: untilized DRAM
// outputs and intermediate buffers.
func (n *Node) CanDoEpochInSingleIteration() bool { return n.Kind.traits().singleIterationOK }

// CanAccumulate returns whether consecutive inputs read from this node may be merged into its last
// sending phase.
func (n *Node) CanAccumulate() bool { return n.Kind.traits().accumulationAllowed }

// NumInputGroups returns the number of input groups.
func (n *Node) NumInputGroups() int { return len(n.inputGroups) }

// InputGroup returns the inputs of group idx. It panics if idx is out of range.
func (n *Node) InputGroup(idx int) []Input {
	if idx < 0 || idx >= len(n.inputGroups) {
		exceptions.Panicf("dataflow: input group %d out of range for node %s with %d input groups",
			idx, n, len(n.inputGroups))
	}
	return n.inputGroups[idx]
}

// NumInputs returns the total number of inputs, over all input groups.
func (n *Node) NumInputs() (count int) {
	for _, group := range n.inputGroups {
		count += len(group)
	}
	return
}

// RootToLeafPathIndex returns the path index to use below this node, given the index of the path
// it was reached from. Serial fork outputs report their own position in the fork.
func (n *Node) RootToLeafPathIndex(current int) int {
	if n.FlowType == FlowTypeSerialFork {
		return n.ForkIndex
	}
	return current
}

// NumPathsInSubgraph returns how many root-to-leaf path indices this node opens in its leaf subgraph.
func (n *Node) NumPathsInSubgraph() int {
	if n.FlowType == FlowTypeSerialFork && n.ForkCount > 1 {
		return n.ForkCount
	}
	return 1
}
