// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package limits computes, for one connected data-flow graph, how the epoch is split into
// iterations and phases within the hardware limits.
//
// Calculator.Run executes six passes, in order, each one reading what the previous ones wrote into
// the nodes' dataflow.State:
//
//  1. Single-source path marking.
//  2. Number of iterations.
//  3. Tiles to send per iteration.
//  4. Number of unique paths through each node.
//  5. Subtree common divisor.
//  6. Maximum tiles per phase.
package limits

import (
	"github.com/gomlx/tilesched/pkg/core/dataflow"
	"github.com/gomlx/tilesched/pkg/core/hwconfig"
	"github.com/gomlx/tilesched/pkg/support/xmath"
	"k8s.io/klog/v2"
)

// Calculator of the transfer limits of one connected graph.
type Calculator struct {
	graph  *dataflow.Graph
	limits hwconfig.Limits

	roots, leaves []int
	upstreamMemo  map[int]int
}

// New creates a Calculator for graph. Nothing is computed until Run is called.
func New(graph *dataflow.Graph, limits hwconfig.Limits) *Calculator {
	return &Calculator{
		graph:        graph,
		limits:       limits,
		upstreamMemo: make(map[int]int),
	}
}

// Run all passes. It panics if the graph has an isolated node.
func (c *Calculator) Run() {
	c.roots = c.graph.Roots()
	c.leaves = c.graph.Leaves()
	klog.V(2).Infof("limits: graph with %d nodes, %d roots and %d leaves", c.graph.Len(), len(c.roots), len(c.leaves))
	c.markSingleSourcePaths()
	c.calculateNumIterations()
	c.calculateTilesToSend()
	c.calculateNumUniquePaths()
	c.calculateSubtreeDivisors()
	c.calculateMaxTilesPerPhase()
}

func (c *Calculator) state(idx int) *dataflow.State { return c.graph.State(idx) }

// markSingleSourcePaths marks nodes that are not scatter nodes, have at most one input and whose
// destinations are all on single-source paths themselves.
func (c *Calculator) markSingleSourcePaths() {
	c.graph.PostOrder(c.roots, dataflow.Destinations, func(idx int) {
		node := c.graph.Node(idx)
		single := !node.IsScatter() && node.NumInputs() <= 1
		for _, dst := range node.Destinations() {
			single = single && c.state(dst).SingleSourcePath
		}
		c.state(idx).SingleSourcePath = single
	})
}

// calculateTilesToSend: roots send their epoch split over their iterations, other nodes send what
// they receive per input group.
func (c *Calculator) calculateTilesToSend() {
	c.graph.PostOrder(c.leaves, dataflow.Sources, func(idx int) {
		node := c.graph.Node(idx)
		st := c.state(idx)
		if node.IsRoot() {
			st.TilesToSend = node.EpochTiles / st.NumIterations
			return
		}
		sum := 0
		for group := range node.NumInputGroups() {
			for _, input := range node.InputGroup(group) {
				sum += c.state(input.Source).TilesToSend
			}
		}
		st.TilesToSend = sum / node.NumInputGroups()
	})
}

// calculateNumUniquePaths counts the unique root-to-node paths, as the max (not the sum) over the
// sources and the node's own input groups.
func (c *Calculator) calculateNumUniquePaths() {
	c.graph.PostOrder(c.leaves, dataflow.Sources, func(idx int) {
		node := c.graph.Node(idx)
		st := c.state(idx)
		if node.IsRoot() {
			st.NumUniquePaths = 1
			return
		}
		paths := node.NumInputGroups()
		for _, src := range node.Sources() {
			paths = max(paths, c.state(src).NumUniquePaths)
		}
		st.NumUniquePaths = paths
	})
}

// SubtreeCommonDivisor returns the divisor of node: the LCM of the divisors of its adjacent nodes
// in direction dir, or its own consume granularity if it has none in that direction.
// Results are memoized in memo, which can be shared across calls with the same direction.
func SubtreeCommonDivisor(graph *dataflow.Graph, node int, dir dataflow.Direction, memo map[int]int) int {
	if divisor, found := memo[node]; found {
		return divisor
	}
	graph.PostOrder([]int{node}, dir, func(idx int) {
		if _, found := memo[idx]; found {
			return
		}
		adjacent := graph.Adjacent(idx, dir)
		if len(adjacent) == 0 {
			memo[idx] = graph.Node(idx).ConsumeGranularity
			return
		}
		divisor := 1
		for _, next := range adjacent {
			divisor = xmath.LCM(divisor, memo[next])
		}
		memo[idx] = divisor
	})
	return memo[node]
}

// calculateSubtreeDivisors stores the subtree divisor of every node, computed from the roots
// down through the destinations.
func (c *Calculator) calculateSubtreeDivisors() {
	memo := make(map[int]int, c.graph.Len())
	for _, root := range c.roots {
		SubtreeCommonDivisor(c.graph, root, dataflow.Destinations, memo)
	}
	for idx, divisor := range memo {
		c.state(idx).SubtreeDivisor = divisor
	}
}

// UpstreamDivisor returns the common divisor of node computed from it up through its sources,
// ending at the roots' consume granularity.
func (c *Calculator) UpstreamDivisor(node int) int {
	return SubtreeCommonDivisor(c.graph, node, dataflow.Sources, c.upstreamMemo)
}

// inheritsMaxTiles returns whether node, reached from parent, keeps the parent's max tiles per phase:
// that is the case when its single input comes from a non-scatter node.
func (c *Calculator) inheritsMaxTiles(parent, idx int) bool {
	return c.graph.Node(idx).NumInputs() == 1 && !c.graph.Node(parent).IsScatter()
}

// calculateMaxTilesPerPhase picks, for each node, the largest multiple of its divisor that fits the
// hardware limit of tiles per phase.
func (c *Calculator) calculateMaxTilesPerPhase() {
	limit := c.limits.MaxTilesPerPhase
	c.graph.PreOrder(c.roots, dataflow.Destinations, func(root, parent, idx int) {
		st := c.state(idx)
		if parent >= 0 && c.inheritsMaxTiles(parent, idx) {
			st.MaxTilesPerPhase = c.state(parent).MaxTilesPerPhase
			return
		}
		node := c.graph.Node(idx)
		divisor := 1
		if node.IsRoot() && !node.IsDRAMOrPCIeInput() && node.SizeTiles > 0 {
			divisor = node.SizeTiles
		}
		if st.TilesToSend > limit {
			divisor = xmath.LCM(divisor, st.SubtreeDivisor)
		}
		pathRoot := c.graph.Node(root)
		if pathRoot.TilesPerInput <= limit {
			withInput := xmath.LCM(divisor, pathRoot.TilesPerInput)
			if withInput <= limit {
				divisor = withInput
			} else {
				klog.Warningf("limits: node %s: tiles per input %d of root %s don't fit in a phase of %d tiles "+
					"together with divisor %d, phases may split inputs", node, pathRoot.TilesPerInput, pathRoot, limit, divisor)
			}
		}
		if divisor > limit {
			klog.Warningf("limits: node %s: divisor %d exceeds the %d tiles per phase limit, using the limit",
				node, divisor, limit)
			st.MaxTilesPerPhase = limit
			return
		}
		st.MaxTilesPerPhase = xmath.FloorToMultiple(limit, divisor)
	})
}
