// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package schedule runs the data-flow scheduling passes over a set of nodes and collects the
// results: per-node scheduling scalars and per-edge phase lists.
//
// The nodes are split into connected components, and each component goes through, in order:
// limits.Calculator, leafgroups.Find and phases.Synthesizer.
package schedule

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tilesched/pkg/core/dataflow"
	"github.com/gomlx/tilesched/pkg/core/dataflow/leafgroups"
	"github.com/gomlx/tilesched/pkg/core/dataflow/limits"
	"github.com/gomlx/tilesched/pkg/core/dataflow/phases"
	"github.com/gomlx/tilesched/pkg/core/hwconfig"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Component is the schedule of one connected component.
type Component struct {
	Graph   *dataflow.Graph
	Cluster leafgroups.Cluster

	// upstreamDivisors of the leaves, by node index.
	upstreamDivisors map[int]int
}

// UpstreamDivisor returns the common divisor computed from the leaf at index idx up to its roots,
// or 0 if idx is not a leaf.
func (c *Component) UpstreamDivisor(idx int) int { return c.upstreamDivisors[idx] }

// Schedule is the result of Run.
type Schedule struct {
	Limits     hwconfig.Limits
	Components []*Component
}

// Run schedules nodes (as returned by dataflow.Builder.Build) under the given limits, one
// component after the other.
//
// The nodes are owned by the returned Schedule afterwards. Structural problems found by the
// passes, like an isolated node, are returned as errors.
func Run(nodes []*dataflow.Node, lim hwconfig.Limits) (*Schedule, error) {
	if err := lim.Validate(); err != nil {
		return nil, err
	}
	s := &Schedule{Limits: lim}
	var componentIdx int
	err := exceptions.TryCatch[error](func() {
		graphs := dataflow.FindConnectedComponents(nodes)
		klog.V(1).Infof("schedule: %d nodes in %d components, limits %s", len(nodes), len(graphs), lim)
		for ii, g := range graphs {
			componentIdx = ii
			s.Components = append(s.Components, scheduleComponent(ii, g, lim))
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to schedule component #%d", componentIdx)
	}
	return s, nil
}

func scheduleComponent(componentIdx int, g *dataflow.Graph, lim hwconfig.Limits) *Component {
	calculator := limits.New(g, lim)
	calculator.Run()
	c := &Component{
		Graph:            g,
		Cluster:          leafgroups.Find(g),
		upstreamDivisors: make(map[int]int),
	}
	for _, leaf := range g.Leaves() {
		c.upstreamDivisors[leaf] = calculator.UpstreamDivisor(leaf)
	}
	phases.New(g).Run(c.Cluster)
	if klog.V(2).Enabled() {
		klog.Infof("schedule: component #%d leaf groups:\n%s", componentIdx, c.Cluster)
	}
	return c
}

// NodeRef refers to a node in a Schedule.
type NodeRef struct {
	Component *Component
	Index     int
}

// Node returns the referred node.
func (r NodeRef) Node() *dataflow.Node { return r.Component.Graph.Node(r.Index) }

// State returns the scheduling state of the referred node.
func (r NodeRef) State() *dataflow.State { return r.Component.Graph.State(r.Index) }

// Nodes returns references to all nodes, by component and then by index.
func (s *Schedule) Nodes() []NodeRef {
	var refs []NodeRef
	for _, c := range s.Components {
		for idx := range c.Graph.Len() {
			refs = append(refs, NodeRef{Component: c, Index: idx})
		}
	}
	return refs
}

// Find returns the node with the given external ID.
func (s *Schedule) Find(id uint64) (ref NodeRef, found bool) {
	for _, c := range s.Components {
		if idx, ok := c.Graph.NodeByID(id); ok {
			return NodeRef{Component: c, Index: idx}, true
		}
	}
	return
}

// Edge holds the phases sent from Source to Destination.
type Edge struct {
	Source, Destination *dataflow.Node
	Phases              []dataflow.Phase
}

// String implements fmt.Stringer.
func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s: %v", e.Source, e.Destination, e.Phases)
}

// Edges returns every source to destination edge with its sending phases, ordered by component,
// source index and then in the order of the source's destinations.
func (s *Schedule) Edges() []Edge {
	var edges []Edge
	for _, ref := range s.Nodes() {
		g := ref.Component.Graph
		for _, dst := range ref.Node().Destinations() {
			edges = append(edges, Edge{
				Source:      ref.Node(),
				Destination: g.Node(dst),
				Phases:      ref.State().SendingPhases[dst],
			})
		}
	}
	return edges
}

// Validate checks the schedule for consistency: roots must send their whole epoch across their
// iterations, and every phase list must have non-decreasing phase offsets.
// Other nodes have no epoch of their own, they send the per input group average of what they receive.
func (s *Schedule) Validate() error {
	for _, ref := range s.Nodes() {
		node, st := ref.Node(), ref.State()
		if node.IsRoot() && st.TilesToSend*st.NumIterations != node.EpochTiles {
			return errors.Errorf("root %s sends %d tiles in each of %d iterations, but its epoch has %d tiles",
				node, st.TilesToSend, st.NumIterations, node.EpochTiles)
		}
		for group, receiving := range st.ReceivingPhases {
			if !nonDecreasingOffsets(receiving) {
				return errors.Errorf("node %s receives input group %d in phases out of order: %v", node, group, receiving)
			}
		}
		for dst, sending := range st.SendingPhases {
			if !nonDecreasingOffsets(sending) {
				return errors.Errorf("node %s sends to %s in phases out of order: %v",
					node, ref.Component.Graph.Node(dst), sending)
			}
		}
	}
	return nil
}

func nonDecreasingOffsets(list []dataflow.Phase) bool {
	return slices.IsSortedFunc(list, func(a, b dataflow.Phase) int { return a.PhaseOffset - b.PhaseOffset })
}
