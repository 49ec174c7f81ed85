// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataflow

import "fmt"

// Phase is one time-sliced transfer: NumMsgs tiles moved during phase PhaseOffset, starting at
// DataOffset. DataOffset is only meaningful for sending phases.
type Phase struct {
	PhaseOffset int
	DataOffset  int
	NumMsgs     int
}

// String implements fmt.Stringer.
func (p Phase) String() string {
	return fmt.Sprintf("{phase=%d, data=%d, msgs=%d}", p.PhaseOffset, p.DataOffset, p.NumMsgs)
}

// State holds everything the scheduling passes compute for one node.
type State struct {
	NumIterations    int
	TilesToSend      int
	MaxTilesPerPhase int
	SubtreeDivisor   int
	NumUniquePaths   int
	SingleSourcePath bool
	LeafSubgraphID   int

	// ReceivingPhases are keyed by input group index, ordered by non-decreasing phase offset.
	ReceivingPhases map[int][]Phase

	// SendingPhases are keyed by the index of the destination node.
	SendingPhases map[int][]Phase
}

func newState() State {
	return State{
		ReceivingPhases: make(map[int][]Phase),
		SendingPhases:   make(map[int][]Phase),
	}
}
