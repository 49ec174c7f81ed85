// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataflow_test

import (
	"fmt"
	"math/rand"
	"testing"

	. "github.com/gomlx/tilesched/pkg/core/dataflow"
	"github.com/gomlx/tilesched/pkg/core/dataflow/dataflowtest"
	"github.com/gomlx/tilesched/pkg/support/sets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceComponents computes the component of each node ID with a union-find over the edges.
func referenceComponents(numNodes int, edges [][2]int) []int {
	parent := make([]int, numNodes)
	for ii := range parent {
		parent[ii] = ii
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for _, e := range edges {
		parent[find(e[0])] = find(e[1])
	}
	roots := make([]int, numNodes)
	for ii := range roots {
		roots[ii] = find(ii)
	}
	return roots
}

func TestFindConnectedComponentsRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		t.Run(fmt.Sprintf("trial=%d", trial), func(t *testing.T) {
			numNodes := 2 + rng.Intn(30)
			gb := dataflowtest.New(t)
			for id := 0; id < numNodes; id++ {
				gb.Node(uint64(id), KindBuffer, Attributes{})
			}
			// Edges only go from lower to higher IDs, so the graph is acyclic.
			var edges [][2]int
			numPipes := rng.Intn(numNodes)
			for p := 0; p < numPipes; p++ {
				src := rng.Intn(numNodes - 1)
				dst := src + 1 + rng.Intn(numNodes-src-1)
				edges = append(edges, [2]int{src, dst})
				gb.Pipe([]uint64{uint64(dst)}, uint64(src))
			}
			reference := referenceComponents(numNodes, edges)

			graphs := gb.Components()
			seen := sets.Make[uint64]()
			componentOf := make(map[uint64]int)
			for gIdx, g := range graphs {
				require.Positive(t, g.Len())
				for ii, node := range g.Nodes() {
					require.Equal(t, ii, node.Index())
					require.False(t, seen.Has(node.ID), "node %s in more than one component", node)
					seen.Insert(node.ID)
					componentOf[node.ID] = gIdx
					for _, src := range node.Sources() {
						require.Less(t, src, g.Len())
						require.Contains(t, g.Node(src).Destinations(), ii)
					}
				}
			}
			require.Len(t, seen, numNodes)
			for a := 0; a < numNodes; a++ {
				for b := a + 1; b < numNodes; b++ {
					sameRef := reference[a] == reference[b]
					same := componentOf[uint64(a)] == componentOf[uint64(b)]
					require.Equalf(t, sameRef, same, "nodes %d and %d", a, b)
				}
			}
		})
	}
}

func TestFindConnectedComponentsRemapsInputs(t *testing.T) {
	graphs := dataflowtest.New(t).
		Node(10, KindDRAMInput, Attributes{}).
		Node(20, KindDRAMInput, Attributes{}).
		Node(11, KindBuffer, Attributes{}).
		Node(21, KindBuffer, Attributes{}).
		PipeWithOffsets([]uint64{21}, PipeInput{Node: 20, Offset: 3}).
		Pipe([]uint64{11}, 10).
		Components()
	require.Len(t, graphs, 2)
	// First component starts at the first node added.
	assert.Equal(t, uint64(10), graphs[0].Node(0).ID)
	second := graphs[1]
	dst := second.Node(dataflowtest.Index(t, second, 21))
	src := dataflowtest.Index(t, second, 20)
	assert.Equal(t, []Input{{Source: src, Offset: 3}}, dst.InputGroup(0))
	assert.Equal(t, []int{src}, dst.Sources())
}
