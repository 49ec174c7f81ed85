// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataflow

import (
	"github.com/pkg/errors"
)

// NodeConfig describes one node to add with Builder.AddNode.
type NodeConfig struct {
	ID   uint64
	Name string
	Kind Kind
	Attributes
}

// PipeInput is one input of a Pipe: the ID of the node read and the tile offset read from it.
type PipeInput struct {
	Node   uint64
	Offset int
}

// Pipe is an N:M transfer primitive: every output receives the concatenation of the inputs.
type Pipe struct {
	Inputs  []PipeInput
	Outputs []uint64
}

// Builder accumulates nodes and pipes and builds the flat collection of nodes that
// FindConnectedComponents partitions.
//
// Every pipe adds one input group to each of its outputs, so a node targeted by more than one
// pipe becomes a union node. A source listed several times in a pipe adds a single structural
// edge, but each occurrence stays in the input group.
type Builder struct {
	nodes []*Node
	byID  map[uint64]int
	edges map[[2]int]bool
	built bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		byID:  make(map[uint64]int),
		edges: make(map[[2]int]bool),
	}
}

func normalizedAttributes(attrs Attributes) Attributes {
	atLeastOne := func(v *int) {
		if *v <= 0 {
			*v = 1
		}
	}
	atLeastOne(&attrs.RepeatFactor)
	atLeastOne(&attrs.SerializationFactor)
	atLeastOne(&attrs.ScatterGatherTiles)
	atLeastOne(&attrs.ConsumeGranularity)
	atLeastOne(&attrs.TilesPerInput)
	return attrs
}

// AddNode adds a node. IDs must be unique.
func (b *Builder) AddNode(config NodeConfig) error {
	if b.built {
		return errors.New("dataflow.Builder: AddNode called after Build")
	}
	if _, found := b.byID[config.ID]; found {
		return errors.Errorf("dataflow.Builder: duplicate node ID %d (%q)", config.ID, config.Name)
	}
	if !config.Kind.IsAKind() {
		return errors.Errorf("dataflow.Builder: node %d (%q) has invalid kind %s", config.ID, config.Name, config.Kind)
	}
	if config.EpochTiles < 0 || config.SizeTiles < 0 {
		return errors.Errorf("dataflow.Builder: node %d (%q) has negative tile counts", config.ID, config.Name)
	}
	attrs := normalizedAttributes(config.Attributes)
	if attrs.FlowType == FlowTypeSerialFork && (attrs.ForkIndex < 0 || attrs.ForkIndex >= max(attrs.ForkCount, 1)) {
		return errors.Errorf("dataflow.Builder: serial fork node %d (%q) has fork index %d out of %d",
			config.ID, config.Name, attrs.ForkIndex, attrs.ForkCount)
	}
	idx := len(b.nodes)
	b.nodes = append(b.nodes, &Node{
		ID:         config.ID,
		Name:       config.Name,
		Kind:       config.Kind,
		Attributes: attrs,
		index:      idx,
	})
	b.byID[config.ID] = idx
	return nil
}

func (b *Builder) lookup(id uint64, role string) (int, error) {
	idx, found := b.byID[id]
	if !found {
		return 0, errors.Errorf("dataflow.Builder: pipe %s refers to unknown node %d", role, id)
	}
	return idx, nil
}

// AddPipe connects the pipe inputs to each of its outputs.
func (b *Builder) AddPipe(pipe Pipe) error {
	if b.built {
		return errors.New("dataflow.Builder: AddPipe called after Build")
	}
	if len(pipe.Inputs) == 0 || len(pipe.Outputs) == 0 {
		return errors.Errorf("dataflow.Builder: pipe with %d inputs and %d outputs, it needs at least one of each",
			len(pipe.Inputs), len(pipe.Outputs))
	}
	group := make([]Input, 0, len(pipe.Inputs))
	for _, in := range pipe.Inputs {
		srcIdx, err := b.lookup(in.Node, "input")
		if err != nil {
			return err
		}
		if in.Offset < 0 {
			return errors.Errorf("dataflow.Builder: pipe input from node %d has negative offset %d", in.Node, in.Offset)
		}
		group = append(group, Input{Source: srcIdx, Offset: in.Offset})
	}
	for _, outID := range pipe.Outputs {
		dstIdx, err := b.lookup(outID, "output")
		if err != nil {
			return err
		}
		dst := b.nodes[dstIdx]
		for _, in := range group {
			if in.Source == dstIdx {
				return errors.Errorf("dataflow.Builder: pipe feeds node %s into itself", dst)
			}
			edge := [2]int{in.Source, dstIdx}
			if b.edges[edge] {
				continue
			}
			b.edges[edge] = true
			src := b.nodes[in.Source]
			src.destinations = append(src.destinations, dstIdx)
			dst.sources = append(dst.sources, in.Source)
		}
		groupCopy := make([]Input, len(group))
		copy(groupCopy, group)
		dst.inputGroups = append(dst.inputGroups, groupCopy)
	}
	return nil
}

// Build returns the flat collection of nodes. The Builder can't be used afterwards.
func (b *Builder) Build() ([]*Node, error) {
	if b.built {
		return nil, errors.New("dataflow.Builder: Build called twice")
	}
	b.built = true
	if len(b.nodes) == 0 {
		return nil, errors.New("dataflow.Builder: no nodes were added")
	}
	return b.nodes, nil
}
