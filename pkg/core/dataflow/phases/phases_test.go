// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package phases

import (
	"slices"
	"testing"

	"github.com/gomlx/tilesched/pkg/core/dataflow"
	"github.com/gomlx/tilesched/pkg/core/dataflow/dataflowtest"
	"github.com/gomlx/tilesched/pkg/core/dataflow/leafgroups"
	"github.com/gomlx/tilesched/pkg/core/dataflow/limits"
	"github.com/gomlx/tilesched/pkg/core/hwconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var small = hwconfig.Limits{MaxTilesPerPhase: 20, MaxPhasesPerIteration: 6}

// synthesize runs limits, the optional adjust function and then the phase synthesis.
func synthesize(g *dataflow.Graph, lim hwconfig.Limits, adjust func()) {
	limits.New(g, lim).Run()
	if adjust != nil {
		adjust()
	}
	New(g).Run(leafgroups.Find(g))
}

type P = dataflow.Phase

func TestRootSplitsIntoPhases(t *testing.T) {
	g := dataflowtest.New(t).
		Node(1, dataflow.KindDRAMInput, dataflow.Attributes{EpochTiles: 100}).
		Node(2, dataflow.KindBuffer, dataflow.Attributes{}).
		Pipe([]uint64{2}, 1).
		Graph()
	synthesize(g, small, nil)
	leaf := dataflowtest.Index(t, g, 2)
	assert.Equal(t, []P{{0, 0, 20}, {1, 20, 20}, {2, 40, 20}, {3, 60, 20}, {4, 80, 20}},
		dataflowtest.State(t, g, 1).SendingPhases[leaf])
	assert.Equal(t, map[int][]P{0: {{0, 0, 20}, {1, 0, 20}, {2, 0, 20}, {3, 0, 20}, {4, 0, 20}}},
		dataflowtest.State(t, g, 2).ReceivingPhases)
}

func TestRelayPacksReceivingPhases(t *testing.T) {
	build := func() *dataflow.Graph {
		return dataflowtest.New(t).
			Node(1, dataflow.KindDRAMInput, dataflow.Attributes{EpochTiles: 100}).
			Node(2, dataflow.KindBuffer, dataflow.Attributes{}).
			Node(3, dataflow.KindBuffer, dataflow.Attributes{}).
			Pipe([]uint64{2}, 1).
			Pipe([]uint64{3}, 2).
			Graph()
	}

	t.Run("same limit", func(t *testing.T) {
		g := build()
		synthesize(g, small, nil)
		assert.Equal(t, []P{{0, 0, 20}, {1, 20, 20}, {2, 40, 20}, {3, 60, 20}, {4, 80, 20}},
			dataflowtest.State(t, g, 2).SendingPhases[dataflowtest.Index(t, g, 3)])
		assert.Len(t, dataflowtest.State(t, g, 3).ReceivingPhases[0], 5)
	})

	t.Run("larger relay limit", func(t *testing.T) {
		g := build()
		synthesize(g, small, func() { dataflowtest.State(t, g, 2).MaxTilesPerPhase = 40 })
		assert.Equal(t, []P{{0, 0, 40}, {2, 40, 40}, {4, 80, 20}},
			dataflowtest.State(t, g, 2).SendingPhases[dataflowtest.Index(t, g, 3)])
		assert.Equal(t, []P{{0, 0, 40}, {2, 0, 40}, {4, 0, 20}},
			dataflowtest.State(t, g, 3).ReceivingPhases[0])
	})
}

func TestAccumulation(t *testing.T) {
	// Node 1 sends 4 tiles per iteration, read 3 times by node 2 at the given offsets.
	build := func(kind dataflow.Kind, offsets ...int) *dataflow.Graph {
		inputs := make([]dataflow.PipeInput, len(offsets))
		for ii, offset := range offsets {
			inputs[ii] = dataflow.PipeInput{Node: 1, Offset: offset}
		}
		return dataflowtest.New(t).
			Node(1, kind, dataflow.Attributes{EpochTiles: 4, ScatterGatherTiles: 4}).
			Node(2, dataflow.KindBuffer, dataflow.Attributes{}).
			PipeWithOffsets([]uint64{2}, inputs...).
			Graph()
	}

	t.Run("adjacent offsets merge", func(t *testing.T) {
		g := build(dataflow.KindBuffer, 0, 4, 8)
		synthesize(g, hwconfig.Default(), nil)
		assert.Equal(t, []P{{0, 0, 12}}, dataflowtest.State(t, g, 1).SendingPhases[dataflowtest.Index(t, g, 2)])
		assert.Equal(t, []P{{0, 0, 12}}, dataflowtest.State(t, g, 2).ReceivingPhases[0])
	})

	t.Run("DRAM input never accumulates", func(t *testing.T) {
		g := build(dataflow.KindDRAMInput, 0, 4, 8)
		synthesize(g, hwconfig.Default(), nil)
		assert.Equal(t, []P{{0, 0, 4}, {1, 4, 4}, {2, 8, 4}},
			dataflowtest.State(t, g, 1).SendingPhases[dataflowtest.Index(t, g, 2)])
		// Receiving from the same sender still packs into one phase.
		assert.Equal(t, []P{{0, 0, 12}}, dataflowtest.State(t, g, 2).ReceivingPhases[0])
	})

	t.Run("non-adjacent offsets", func(t *testing.T) {
		g := build(dataflow.KindBuffer, 0, 8)
		synthesize(g, hwconfig.Default(), nil)
		assert.Equal(t, []P{{0, 0, 4}, {1, 8, 4}},
			dataflowtest.State(t, g, 1).SendingPhases[dataflowtest.Index(t, g, 2)])
		assert.Equal(t, []P{{0, 0, 8}}, dataflowtest.State(t, g, 2).ReceivingPhases[0])
	})

	t.Run("receiver full", func(t *testing.T) {
		g := build(dataflow.KindBuffer, 0, 4)
		synthesize(g, hwconfig.Limits{MaxTilesPerPhase: 6, MaxPhasesPerIteration: 15}, nil)
		require.Equal(t, 6, dataflowtest.State(t, g, 2).MaxTilesPerPhase)
		assert.Equal(t, []P{{0, 0, 4}, {1, 4, 4}},
			dataflowtest.State(t, g, 1).SendingPhases[dataflowtest.Index(t, g, 2)])
		assert.Equal(t, []P{{0, 0, 4}, {1, 0, 4}}, dataflowtest.State(t, g, 2).ReceivingPhases[0])
	})
}

func TestBroadcastReplication(t *testing.T) {
	g := dataflowtest.New(t).
		Node(1, dataflow.KindDRAMInput, dataflow.Attributes{EpochTiles: 100}).
		Node(2, dataflow.KindBuffer, dataflow.Attributes{}).
		Node(3, dataflow.KindBuffer, dataflow.Attributes{}).
		Node(4, dataflow.KindBuffer, dataflow.Attributes{}).
		Pipe([]uint64{2, 3, 4}, 1).
		Graph()
	synthesize(g, small, nil)
	root := dataflowtest.State(t, g, 1)
	want := root.SendingPhases[dataflowtest.Index(t, g, 2)]
	require.Len(t, want, 5)
	for _, id := range []uint64{3, 4} {
		assert.Equal(t, want, root.SendingPhases[dataflowtest.Index(t, g, id)], "sending phases toward #%d", id)
		assert.Equal(t, dataflowtest.State(t, g, 2).ReceivingPhases, dataflowtest.State(t, g, id).ReceivingPhases)
	}
}

func TestUnionRounds(t *testing.T) {
	// Two roots joined by union node 3, broadcast to leaves 4 and 5.
	attrs := dataflow.Attributes{EpochTiles: 40, ScatterGatherTiles: 40}
	g := dataflowtest.New(t).
		Node(1, dataflow.KindDRAMInput, attrs).
		Node(2, dataflow.KindDRAMInput, attrs).
		Node(3, dataflow.KindBuffer, dataflow.Attributes{}).
		Node(4, dataflow.KindBuffer, dataflow.Attributes{}).
		Node(5, dataflow.KindBuffer, dataflow.Attributes{}).
		Pipe([]uint64{3}, 1).
		Pipe([]uint64{3}, 2).
		Pipe([]uint64{4, 5}, 3).
		Graph()
	synthesize(g, hwconfig.Default(), nil)
	union := dataflowtest.Index(t, g, 3)
	assert.Equal(t, []P{{0, 0, 40}}, dataflowtest.State(t, g, 1).SendingPhases[union])
	assert.Equal(t, []P{{1, 0, 40}}, dataflowtest.State(t, g, 2).SendingPhases[union])
	assert.Equal(t, map[int][]P{0: {{0, 0, 40}}, 1: {{1, 0, 40}}}, dataflowtest.State(t, g, 3).ReceivingPhases)

	wantReceiving := map[int][]P{0: {{0, 0, 40}, {1, 0, 40}}}
	unionState := dataflowtest.State(t, g, 3)
	for _, id := range []uint64{4, 5} {
		assert.Equal(t, wantReceiving, dataflowtest.State(t, g, id).ReceivingPhases, "leaf #%d", id)
		assert.Equal(t, []P{{0, 0, 40}, {1, 0, 40}}, unionState.SendingPhases[dataflowtest.Index(t, g, id)], "leaf #%d", id)
	}
}

func TestSerialForkContinuesCursor(t *testing.T) {
	fork := func(idx int) dataflow.Attributes {
		return dataflow.Attributes{FlowType: dataflow.FlowTypeSerialFork, ForkIndex: idx, ForkCount: 2}
	}
	g := dataflowtest.New(t).
		Node(1, dataflow.KindDRAMInput, dataflow.Attributes{EpochTiles: 40}).
		Node(10, dataflow.KindBuffer, fork(0)).
		Node(11, dataflow.KindBuffer, fork(1)).
		PipeWithOffsets([]uint64{10}, dataflow.PipeInput{Node: 1}).
		PipeWithOffsets([]uint64{11}, dataflow.PipeInput{Node: 1, Offset: 20}).
		Graph()
	synthesize(g, small, nil)
	root := dataflowtest.State(t, g, 1)
	assert.Equal(t, []P{{0, 0, 20}, {1, 20, 20}}, root.SendingPhases[dataflowtest.Index(t, g, 10)])
	assert.Equal(t, []P{{2, 20, 20}, {3, 40, 20}}, root.SendingPhases[dataflowtest.Index(t, g, 11)])
	assert.Equal(t, []P{{2, 0, 20}, {3, 0, 20}}, dataflowtest.State(t, g, 11).ReceivingPhases[0])
}

// requireOrderedPhases checks every phase list of g has non-decreasing phase offsets.
func requireOrderedPhases(t *testing.T, g *dataflow.Graph) {
	t.Helper()
	ordered := func(list []P) bool {
		return slices.IsSortedFunc(list, func(a, b P) int { return a.PhaseOffset - b.PhaseOffset })
	}
	for idx := range g.Len() {
		st := g.State(idx)
		for group, receiving := range st.ReceivingPhases {
			require.Truef(t, ordered(receiving), "%s receiving group %d: %v", g.Node(idx), group, receiving)
		}
		for dst, sending := range st.SendingPhases {
			require.Truef(t, ordered(sending), "%s sending to %s: %v", g.Node(idx), g.Node(dst), sending)
		}
	}
}

func TestRelayPulledAgain(t *testing.T) {
	t.Run("serial fork behind relay", func(t *testing.T) {
		fork := func(idx int) dataflow.Attributes {
			return dataflow.Attributes{FlowType: dataflow.FlowTypeSerialFork, ForkIndex: idx, ForkCount: 2}
		}
		g := dataflowtest.New(t).
			Node(1, dataflow.KindDRAMInput, dataflow.Attributes{EpochTiles: 40}).
			Node(2, dataflow.KindBuffer, dataflow.Attributes{}).
			Node(10, dataflow.KindBuffer, fork(0)).
			Node(11, dataflow.KindBuffer, fork(1)).
			Pipe([]uint64{2}, 1).
			PipeWithOffsets([]uint64{10}, dataflow.PipeInput{Node: 2}).
			PipeWithOffsets([]uint64{11}, dataflow.PipeInput{Node: 2, Offset: 20}).
			Graph()
		synthesize(g, small, nil)
		requireOrderedPhases(t, g)

		// Same phases as when the fork is fed by the root directly.
		relay := dataflowtest.State(t, g, 2)
		assert.Equal(t, map[int][]P{0: {{0, 0, 20}, {1, 0, 20}}}, relay.ReceivingPhases)
		assert.Equal(t, []P{{0, 0, 20}, {1, 20, 20}}, relay.SendingPhases[dataflowtest.Index(t, g, 10)])
		assert.Equal(t, []P{{2, 20, 20}, {3, 40, 20}}, relay.SendingPhases[dataflowtest.Index(t, g, 11)])
		assert.Equal(t, []P{{2, 0, 20}, {3, 0, 20}}, dataflowtest.State(t, g, 11).ReceivingPhases[0])
	})

	t.Run("gather reads a relay twice", func(t *testing.T) {
		attrs := dataflow.Attributes{EpochTiles: 40, ScatterGatherTiles: 40}
		g := dataflowtest.New(t).
			Node(1, dataflow.KindDRAMInput, attrs).
			Node(2, dataflow.KindDRAMInput, attrs).
			Node(3, dataflow.KindBuffer, dataflow.Attributes{}).
			Node(4, dataflow.KindBuffer, dataflow.Attributes{}).
			Node(5, dataflow.KindBuffer, dataflow.Attributes{}).
			Pipe([]uint64{3}, 1).
			Pipe([]uint64{4}, 2).
			Pipe([]uint64{5}, 3, 4, 3).
			Graph()
		synthesize(g, hwconfig.Default(), nil)
		requireOrderedPhases(t, g)

		gather := dataflowtest.Index(t, g, 5)
		assert.Equal(t, []P{{0, 0, 40}, {2, 0, 40}}, dataflowtest.State(t, g, 3).SendingPhases[gather])
		assert.Equal(t, []P{{1, 0, 40}}, dataflowtest.State(t, g, 4).SendingPhases[gather])
		assert.Equal(t, map[int][]P{0: {{0, 0, 40}, {1, 0, 40}, {2, 0, 40}}},
			dataflowtest.State(t, g, 5).ReceivingPhases)
	})
}

func TestGroupMemberWithOtherSources(t *testing.T) {
	// Leaves 2 and 3 share path 0, but 3 also reads root 4: it can't be a copy of 2.
	attrs := dataflow.Attributes{EpochTiles: 40, ScatterGatherTiles: 40}
	g := dataflowtest.New(t).
		Node(1, dataflow.KindDRAMInput, attrs).
		Node(2, dataflow.KindBuffer, dataflow.Attributes{}).
		Node(3, dataflow.KindBuffer, dataflow.Attributes{}).
		Node(4, dataflow.KindDRAMInput, attrs).
		Pipe([]uint64{2}, 1).
		Pipe([]uint64{3}, 1, 4).
		Graph()
	limits.New(g, small).Run()
	cluster := leafgroups.Find(g)
	require.Equal(t, []int{dataflowtest.Index(t, g, 2), dataflowtest.Index(t, g, 3)}, cluster[0][0].Leaves())
	New(g).Run(cluster)
	requireOrderedPhases(t, g)

	// Leaf 3 continues from the phase cursor leaf 2 ended at.
	root := dataflowtest.State(t, g, 1)
	assert.Equal(t, []P{{0, 0, 20}, {1, 20, 20}}, root.SendingPhases[dataflowtest.Index(t, g, 2)])
	assert.Equal(t, []P{{2, 0, 20}, {3, 20, 20}}, root.SendingPhases[dataflowtest.Index(t, g, 3)])
	assert.Equal(t, []P{{4, 0, 20}, {5, 20, 20}}, dataflowtest.State(t, g, 4).SendingPhases[dataflowtest.Index(t, g, 3)])
	assert.Equal(t, map[int][]P{0: {{2, 0, 20}, {3, 0, 20}, {4, 0, 20}, {5, 0, 20}}},
		dataflowtest.State(t, g, 3).ReceivingPhases)
}

func TestParallelSubgraphsResetCursor(t *testing.T) {
	g := dataflowtest.New(t).
		Node(1, dataflow.KindDRAMParallelFork, dataflow.Attributes{EpochTiles: 100, FlowType: dataflow.FlowTypeParallel}).
		Node(2, dataflow.KindBuffer, dataflow.Attributes{}).
		Node(3, dataflow.KindBuffer, dataflow.Attributes{}).
		Pipe([]uint64{2, 3}, 1).
		Graph()
	synthesize(g, small, nil)
	assert.Equal(t, 0, dataflowtest.State(t, g, 2).LeafSubgraphID)
	assert.Equal(t, 1, dataflowtest.State(t, g, 3).LeafSubgraphID)
	root := dataflowtest.State(t, g, 1)
	for _, id := range []uint64{2, 3} {
		phases := root.SendingPhases[dataflowtest.Index(t, g, id)]
		require.Len(t, phases, 5)
		assert.Equal(t, P{0, 0, 20}, phases[0])
	}
}

func TestFatalConditions(t *testing.T) {
	g := dataflowtest.New(t).
		Node(1, dataflow.KindDRAMInput, dataflow.Attributes{EpochTiles: 100}).
		Node(2, dataflow.KindBuffer, dataflow.Attributes{}).
		Pipe([]uint64{2}, 1).
		Graph()
	limits.New(g, small).Run()
	s := New(g)
	require.Panics(t, func() { s.Calculate(dataflowtest.Index(t, g, 1), NoDestination, 0, 0) })
	require.Panics(t, func() { s.updateLastReceivingPhase(dataflowtest.Index(t, g, 2), 0, 1) })

	// Computing a leaf directly works, and returns the phase cursor after the root's 5 phases.
	assert.Equal(t, 5, s.Calculate(dataflowtest.Index(t, g, 2), NoDestination, 0, 0))
}
