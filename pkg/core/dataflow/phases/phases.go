// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package phases synthesizes the sending and receiving phases of every node of a data-flow graph.
//
// Phases are synthesized leaf-up: for each leaf group the representative leaf pulls its inputs,
// which recursively pull theirs, up to the roots, which emit their tiles split into chunks of at
// most their max tiles per phase. The phase cursor (the next free phase offset) is threaded
// through the recursion, and reset to 0 for each leaf subgraph.
//
// A node reached through more than one unique path is invoked once per path, in rounds: a union
// node takes the next input group at each round, other nodes pull their inputs again. The phases
// of a round are computed once and re-used by all the destinations pulling from it, shifted to the
// phase cursor each one pulls at.
//
// It requires the states computed by package limits and the Cluster found by package leafgroups.
package phases

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tilesched/pkg/core/dataflow"
	"github.com/gomlx/tilesched/pkg/core/dataflow/leafgroups"
	"github.com/gomlx/tilesched/pkg/support/sets"
	"github.com/gomlx/tilesched/pkg/support/xslices"
	"k8s.io/klog/v2"
)

// NoDestination is passed as the destination when phases are computed for a leaf.
const NoDestination = -1

// round tracks the invocations of a non-root node.
type round struct {
	// index of the current round, from 0 to max(NumUniquePaths, 1)-1.
	index int

	// processed is set once the receiving phases of the current round are computed.
	processed bool

	// served counts the destinations that pulled the current round.
	served int

	// base is the phase cursor the current round was computed at, and delta the number of phase
	// offsets it spans. A destination pulling the round at a later cursor gets its phases shifted.
	base, delta int

	// group is the input group of the current round, and start the position in
	// ReceivingPhases[group] where the round's phases begin.
	group, start int
}

// Synthesizer computes the phases of one graph (connected component).
type Synthesizer struct {
	graph  *dataflow.Graph
	rounds []round
}

// New creates a Synthesizer for graph. The graph states must have been computed by limits.Calculator.
func New(graph *dataflow.Graph) *Synthesizer {
	return &Synthesizer{
		graph:  graph,
		rounds: make([]round, graph.Len()),
	}
}

func (s *Synthesizer) state(idx int) *dataflow.State { return s.graph.State(idx) }

// Run synthesizes the phases for all leaf groups of cluster, filling ReceivingPhases and
// SendingPhases of the graph states.
//
// Leaf subgraphs are processed in ascending ID order, each starting at phase offset 0. Within a
// subgraph, leaf groups are processed in path order, each starting where the previous one ended.
func (s *Synthesizer) Run(cluster leafgroups.Cluster) {
	for _, subgraphID := range cluster.SubgraphIDs() {
		cursor := 0
		for pathIdx, group := range cluster[subgraphID] {
			if group.Empty() {
				continue
			}
			representative := group.Representative()
			for range max(group.Registrations(representative), 1) {
				cursor = s.Calculate(representative, NoDestination, cursor, 0)
				cursor = s.replicate(group, cursor)
			}
			klog.V(2).Infof("phases: subgraph %d, path %d, leaves %v: phase cursor at %d",
				subgraphID, pathIdx, group.Leaves(), cursor)
		}
	}
}

// Calculate computes the phases of node idx as requested by destination dst (or NoDestination
// for a leaf), starting at the phase offset cursor. dataOffset is the data offset the destination
// reads from, used by roots.
//
// It returns the next free phase offset.
func (s *Synthesizer) Calculate(idx, dst, cursor, dataOffset int) int {
	next, _ := s.calculatePhases(idx, dst, cursor, dataOffset)
	return next
}

// calculatePhases returns the next phase cursor and the sending phases just created toward dst.
func (s *Synthesizer) calculatePhases(idx, dst, cursor, dataOffset int) (next int, sending []dataflow.Phase) {
	node := s.graph.Node(idx)
	if node.IsRoot() {
		if dst == NoDestination {
			exceptions.Panicf("phases: root node %s has no destination to send phases to", node)
		}
		return s.rootPhases(idx, dst, cursor, dataOffset)
	}

	r := &s.rounds[idx]
	if !r.processed {
		r.group = r.index % node.NumInputGroups()
		r.start = len(s.state(idx).ReceivingPhases[r.group])
		r.base = cursor
		end := s.calculateReceivingPhases(idx, r.group, cursor)
		r.delta = end - cursor
		r.processed = true
	}
	if dst != NoDestination {
		sending = s.calculateSendingPhases(idx, dst, cursor-r.base, dataOffset)
	}
	next = cursor + r.delta
	s.markServed(idx)
	return
}

// rootPhases splits the tiles a root sends per iteration into chunks of at most MaxTilesPerPhase,
// one per phase.
func (s *Synthesizer) rootPhases(idx, dst, cursor, dataOffset int) (int, []dataflow.Phase) {
	st := s.state(idx)
	chunk := st.MaxTilesPerPhase
	if chunk <= 0 {
		chunk = max(st.TilesToSend, 1)
	}
	var sending []dataflow.Phase
	for remaining := st.TilesToSend; remaining > 0; {
		numMsgs := min(remaining, chunk)
		sending = append(sending, dataflow.Phase{PhaseOffset: cursor, DataOffset: dataOffset, NumMsgs: numMsgs})
		cursor++
		dataOffset += numMsgs
		remaining -= numMsgs
	}
	st.SendingPhases[dst] = append(st.SendingPhases[dst], sending...)
	return cursor, sending
}

// calculateReceivingPhases computes the receiving phases of input group of node idx, starting at
// cursor, and returns the next free phase offset.
func (s *Synthesizer) calculateReceivingPhases(idx, group, cursor int) int {
	st := s.state(idx)
	if _, found := st.ReceivingPhases[group]; !found {
		st.ReceivingPhases[group] = nil
	}
	prevSender, prevOffset := NoDestination, 0
	for _, input := range s.graph.Node(idx).InputGroup(group) {
		if s.canAccumulate(idx, group, prevSender, prevOffset, input) {
			tiles := s.state(input.Source).TilesToSend
			xslices.LastPtr(s.state(input.Source).SendingPhases[idx]).NumMsgs += tiles
			s.updateLastReceivingPhase(idx, group, tiles)
			prevOffset = input.Offset
			continue
		}

		var sending []dataflow.Phase
		cursor, sending = s.calculatePhases(input.Source, idx, cursor, input.Offset)
		if input.Source != prevSender {
			for _, phase := range sending {
				st.ReceivingPhases[group] = append(st.ReceivingPhases[group],
					dataflow.Phase{PhaseOffset: phase.PhaseOffset, NumMsgs: phase.NumMsgs})
			}
		} else {
			for _, phase := range sending {
				last := xslices.LastPtr(st.ReceivingPhases[group])
				if len(st.ReceivingPhases[group]) > s.rounds[idx].start && last.NumMsgs+phase.NumMsgs <= st.MaxTilesPerPhase {
					s.updateLastReceivingPhase(idx, group, phase.NumMsgs)
					continue
				}
				st.ReceivingPhases[group] = append(st.ReceivingPhases[group],
					dataflow.Phase{PhaseOffset: phase.PhaseOffset, NumMsgs: phase.NumMsgs})
			}
		}
		prevSender, prevOffset = input.Source, input.Offset
	}
	return cursor
}

// canAccumulate returns whether input can be merged into the last receiving phase of node idx and
// the last sending phase of its sender: it must come from the same sender as the previous input,
// right after it in the sender's data, and fit both phases.
func (s *Synthesizer) canAccumulate(idx, group, prevSender, prevOffset int, input dataflow.Input) bool {
	if input.Source != prevSender || !s.graph.Node(input.Source).CanAccumulate() {
		return false
	}
	srcState := s.state(input.Source)
	tiles := srcState.TilesToSend
	if input.Offset != prevOffset+tiles {
		return false
	}
	receiving := s.state(idx).ReceivingPhases[group]
	if len(receiving) <= s.rounds[idx].start || xslices.Last(receiving).NumMsgs+tiles > s.state(idx).MaxTilesPerPhase {
		return false
	}
	sending := srcState.SendingPhases[idx]
	if len(sending) == 0 || xslices.Last(sending).NumMsgs+tiles > srcState.MaxTilesPerPhase {
		return false
	}
	return true
}

func (s *Synthesizer) updateLastReceivingPhase(idx, group, numMsgs int) {
	last := xslices.LastPtr(s.state(idx).ReceivingPhases[group])
	if last == nil {
		exceptions.Panicf("phases: node %s has no receiving phase in input group %d to update", s.graph.Node(idx), group)
	}
	last.NumMsgs += numMsgs
}

// calculateSendingPhases derives the sending phases of node idx toward dst from the receiving
// phases of its current round: consecutive receiving phases are packed while they fit in
// MaxTilesPerPhase, and each packed phase takes the offset of its first receiving phase plus shift.
func (s *Synthesizer) calculateSendingPhases(idx, dst, shift, dataOffset int) []dataflow.Phase {
	st := s.state(idx)
	r := &s.rounds[idx]
	limit := st.MaxTilesPerPhase
	var sending []dataflow.Phase
	accumulated, phaseOffset := 0, 0
	flush := func() {
		sending = append(sending, dataflow.Phase{PhaseOffset: phaseOffset, DataOffset: dataOffset, NumMsgs: accumulated})
		dataOffset += accumulated
		accumulated = 0
	}
	for _, receiving := range st.ReceivingPhases[r.group][r.start:] {
		if accumulated > 0 && limit > 0 && accumulated+receiving.NumMsgs > limit {
			flush()
		}
		if accumulated == 0 {
			phaseOffset = receiving.PhaseOffset + shift
		}
		accumulated += receiving.NumMsgs
	}
	if accumulated > 0 {
		flush()
	}
	st.SendingPhases[dst] = append(st.SendingPhases[dst], sending...)
	return sending
}

// markServed records one more destination pulled from the current round of idx. Once all did (or
// immediately for leaves), idx moves on to its next round, if it has one.
func (s *Synthesizer) markServed(idx int) {
	node := s.graph.Node(idx)
	if node.IsRoot() {
		return
	}
	r := &s.rounds[idx]
	r.served++
	if r.served < len(node.Destinations()) {
		return
	}
	if r.index+1 < max(s.state(idx).NumUniquePaths, 1) {
		r.index++
		r.processed = false
		r.served = 0
	}
}

// replicate copies the phases of the group representative to the other members fed by the same
// sources. Members with different sources get their own phases computed, one after the other,
// from cursor. It returns the phase cursor after those.
func (s *Synthesizer) replicate(group *leafgroups.LeafGroup, cursor int) int {
	leaves := group.Leaves()
	representative := leaves[0]
	repNode := s.graph.Node(representative)
	repSources := sets.MakeWith(repNode.Sources()...)
	repState := s.state(representative)
	for _, member := range leaves[1:] {
		memberNode := s.graph.Node(member)
		if !repSources.Equal(sets.MakeWith(memberNode.Sources()...)) {
			klog.V(1).Infof("phases: leaf %s is grouped with %s but has different sources, computing its phases separately",
				memberNode, repNode)
			cursor = s.Calculate(member, NoDestination, cursor, 0)
			continue
		}
		memberState := s.state(member)
		memberState.ReceivingPhases = make(map[int][]dataflow.Phase, len(repState.ReceivingPhases))
		for inputGroup, receiving := range repState.ReceivingPhases {
			memberState.ReceivingPhases[inputGroup] = slices.Clone(receiving)
		}
		for _, src := range repNode.Sources() {
			srcState := s.state(src)
			srcState.SendingPhases[member] = slices.Clone(srcState.SendingPhases[representative])
			s.markServed(src)
		}
		s.rounds[member] = s.rounds[representative]
	}
	return cursor
}
