// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package limits

import (
	"github.com/gomlx/tilesched/pkg/core/dataflow"
	"github.com/gomlx/tilesched/pkg/support/xmath"
	"k8s.io/klog/v2"
)

// calculateNumIterations uses one of three policies:
//
//   - If every leaf can take the whole epoch in one go, the whole graph runs one iteration.
//   - Else, if every leaf is on a single-source path, the graph runs the number of iterations
//     picked by IterationsForSingleSourcePath.
//   - Otherwise roots run epoch/scatter-gather iterations, and every other node scales the
//     iterations of the node it's reached from by its repeat and serialization factors.
func (c *Calculator) calculateNumIterations() {
	allSingleIteration := true
	for _, leaf := range c.leaves {
		allSingleIteration = allSingleIteration && c.graph.Node(leaf).CanDoEpochInSingleIteration()
	}
	if allSingleIteration {
		klog.V(2).Infof("limits: all leaves take the epoch in a single iteration")
		c.setAllIterations(1)
		return
	}

	leafRoots := make([]int, len(c.leaves))
	allSingleSource := true
	for ii, leaf := range c.leaves {
		var onPath bool
		leafRoots[ii], onPath = c.singleSourcePathRoot(leaf)
		allSingleSource = allSingleSource && onPath
	}
	if allSingleSource {
		c.setAllIterations(c.singleSourcePathIterations(leafRoots))
		return
	}

	c.gatherIterations()
}

func (c *Calculator) setAllIterations(numIterations int) {
	for idx := range c.graph.Len() {
		c.state(idx).NumIterations = numIterations
	}
}

// singleSourcePathRoot walks up from leaf while nodes are on a single-source path, and returns the
// root it reaches, if any.
func (c *Calculator) singleSourcePathRoot(leaf int) (root int, onPath bool) {
	idx := leaf
	for {
		if !c.state(idx).SingleSourcePath {
			return -1, false
		}
		sources := c.graph.Node(idx).Sources()
		if len(sources) == 0 {
			return idx, true
		}
		idx = sources[0]
	}
}

func (c *Calculator) singleSourcePathIterations(leafRoots []int) int {
	root := c.graph.Node(leafRoots[0])
	granularities := make([]int, len(c.leaves))
	for ii, leaf := range c.leaves {
		leafNode := c.graph.Node(leaf)
		if leafNode.IsDRAMOrPCIeOutput() {
			granularities[ii] = c.graph.Node(leafRoots[ii]).ScatterGatherTiles
		} else {
			granularities[ii] = leafNode.ConsumeGranularity
		}
	}
	granularity := xmath.LCMAll(granularities...)
	numIterations := IterationsForSingleSourcePath(root.EpochTiles, granularity,
		c.limits.MaxTilesPerPhase, c.limits.MaxPhasesPerIteration)
	klog.V(2).Infof("limits: single-source graph rooted at %s: %d epoch tiles, granularity %d -> %d iterations",
		root, root.EpochTiles, granularity, numIterations)
	return numIterations
}

// NumberOfIterationsSatisfiesDivisibilityConstraints returns whether epochTiles splits into
// numIterations equal parts, each a multiple of granularity.
func NumberOfIterationsSatisfiesDivisibilityConstraints(numIterations, epochTiles, granularity int) bool {
	if numIterations <= 0 || granularity <= 0 {
		return false
	}
	return epochTiles%numIterations == 0 && (epochTiles/numIterations)%granularity == 0
}

// IterationsForSingleSourcePath picks the number of iterations for a graph made only of
// single-source paths.
//
// If the epoch fits in the allowed number of phases it returns 1. Otherwise it searches from the
// ideal number of iterations down to 2, and then from the ideal + 1 up, for a count satisfying
// NumberOfIterationsSatisfiesDivisibilityConstraints. If there is none, it returns epochTiles,
// that is, one tile per iteration.
//
// Notice the phase count check uses floor division, so an epoch needing one extra partial phase
// still counts as fitting.
func IterationsForSingleSourcePath(epochTiles, granularity, maxTilesPerPhase, maxPhasesPerIteration int) int {
	if epochTiles <= 0 || epochTiles/maxTilesPerPhase <= maxPhasesPerIteration {
		return 1
	}
	ideal := epochTiles / (maxPhasesPerIteration * maxTilesPerPhase)
	for n := ideal; n >= 2; n-- {
		if NumberOfIterationsSatisfiesDivisibilityConstraints(n, epochTiles, granularity) {
			return n
		}
	}
	for n := ideal + 1; n <= epochTiles; n++ {
		if NumberOfIterationsSatisfiesDivisibilityConstraints(n, epochTiles, granularity) {
			return n
		}
	}
	klog.Warningf("limits: no number of iterations splits %d epoch tiles in multiples of %d, "+
		"falling back to one tile per iteration", epochTiles, granularity)
	return epochTiles
}

// gatherIterations handles the general case, with gathers or unions in the graph.
func (c *Calculator) gatherIterations() {
	c.graph.PreOrder(c.roots, dataflow.Destinations, func(_, parent, idx int) {
		node := c.graph.Node(idx)
		st := c.state(idx)
		if parent < 0 {
			st.NumIterations = node.EpochTiles / node.ScatterGatherTiles
		} else {
			st.NumIterations = c.state(parent).NumIterations * node.RepeatFactor / node.SerializationFactor
		}
		if st.NumIterations <= 0 {
			klog.V(1).Infof("limits: node %s computed %d iterations, using 1", node, st.NumIterations)
			st.NumIterations = 1
		}
	})
}
