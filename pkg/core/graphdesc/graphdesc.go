// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graphdesc reads data-flow graph descriptions from YAML.
//
// Example:
//
//	limits: max_tiles_per_phase=1024
//	nodes:
//	  - {id: 1, name: activations, kind: DRAMInput, epoch_tiles: 128, scatter_gather_tiles: 16}
//	  - {id: 2, name: unpacker, kind: Buffer, consume_granularity: 4}
//	pipes:
//	  - inputs: [1]
//	    outputs: [2]
//	  - inputs: [{node: 1, offset: 64}]
//	    outputs: [3]
//
// Pipe inputs are either a node ID (offset 0) or a {node, offset} mapping. Kinds and flow types
// are matched case-insensitively against dataflow.KindStrings and dataflow.FlowTypeStrings.
package graphdesc

import (
	"bytes"
	"io"
	"os"

	"github.com/gomlx/tilesched/pkg/core/dataflow"
	"github.com/gomlx/tilesched/pkg/core/hwconfig"
	"github.com/gomlx/tilesched/pkg/support/fsutil"
	"github.com/gomlx/tilesched/pkg/support/xslices"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Description of a graph and, optionally, the limits to schedule it with.
type Description struct {
	// Limits is a hwconfig configuration string. If empty, hwconfig.New is used.
	Limits string `yaml:"limits,omitempty"`

	Nodes []Node `yaml:"nodes"`
	Pipes []Pipe `yaml:"pipes"`
}

// Node describes one dataflow.Node.
type Node struct {
	ID                  uint64            `yaml:"id"`
	Name                string            `yaml:"name,omitempty"`
	Kind                dataflow.Kind     `yaml:"kind"`
	EpochTiles          int               `yaml:"epoch_tiles,omitempty"`
	ScatterGatherTiles  int               `yaml:"scatter_gather_tiles,omitempty"`
	ConsumeGranularity  int               `yaml:"consume_granularity,omitempty"`
	RepeatFactor        int               `yaml:"repeat_factor,omitempty"`
	SerializationFactor int               `yaml:"serialization_factor,omitempty"`
	SizeTiles           int               `yaml:"size_tiles,omitempty"`
	TilesPerInput       int               `yaml:"tiles_per_input,omitempty"`
	Scatter             bool              `yaml:"scatter,omitempty"`
	FlowType            dataflow.FlowType `yaml:"flow_type,omitempty"`
	ForkIndex           int               `yaml:"fork_index,omitempty"`
	ForkCount           int               `yaml:"fork_count,omitempty"`
}

// Pipe describes one dataflow.Pipe.
type Pipe struct {
	Inputs  []PipeInput `yaml:"inputs"`
	Outputs []uint64    `yaml:"outputs"`
}

// PipeInput is one input of a Pipe.
type PipeInput struct {
	Node   uint64 `yaml:"node"`
	Offset int    `yaml:"offset,omitempty"`
}

// UnmarshalYAML accepts either a bare node ID or a mapping.
func (in *PipeInput) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*in = PipeInput{}
		return value.Decode(&in.Node)
	}
	type plain PipeInput
	return value.Decode((*plain)(in))
}

// Parse a YAML description. Unknown fields are an error.
func Parse(data []byte) (*Description, error) {
	return Read(bytes.NewReader(data))
}

// Read a YAML description from r.
func Read(r io.Reader) (*Description, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	desc := &Description{}
	if err := decoder.Decode(desc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("graphdesc: empty description")
		}
		return nil, errors.Wrap(err, "graphdesc: failed to parse description")
	}
	return desc, nil
}

// Load the YAML description in filePath. A leading "~" is replaced by the home directory.
func Load(filePath string) (*Description, error) {
	filePath, err := fsutil.ReplaceTildeInDir(filePath)
	if err != nil {
		return nil, errors.WithMessage(err, "graphdesc")
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "graphdesc: failed to open %q", filePath)
	}
	defer func() { _ = f.Close() }()
	desc, err := Read(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %q", filePath)
	}
	return desc, nil
}

// Build the nodes described, ready for schedule.Run.
func (d *Description) Build() ([]*dataflow.Node, error) {
	b := dataflow.NewBuilder()
	for _, n := range d.Nodes {
		err := b.AddNode(dataflow.NodeConfig{
			ID:   n.ID,
			Name: n.Name,
			Kind: n.Kind,
			Attributes: dataflow.Attributes{
				EpochTiles:          n.EpochTiles,
				ScatterGatherTiles:  n.ScatterGatherTiles,
				ConsumeGranularity:  n.ConsumeGranularity,
				RepeatFactor:        n.RepeatFactor,
				SerializationFactor: n.SerializationFactor,
				SizeTiles:           n.SizeTiles,
				TilesPerInput:       n.TilesPerInput,
				Scatter:             n.Scatter,
				FlowType:            n.FlowType,
				ForkIndex:           n.ForkIndex,
				ForkCount:           n.ForkCount,
			},
		})
		if err != nil {
			return nil, errors.WithMessage(err, "graphdesc")
		}
	}
	for ii, p := range d.Pipes {
		pipe := dataflow.Pipe{
			Inputs: xslices.Map(p.Inputs, func(in PipeInput) dataflow.PipeInput {
				return dataflow.PipeInput{Node: in.Node, Offset: in.Offset}
			}),
			Outputs: p.Outputs,
		}
		if err := b.AddPipe(pipe); err != nil {
			return nil, errors.WithMessagef(err, "graphdesc: pipe #%d", ii)
		}
	}
	return b.Build()
}

// HWLimits returns the limits configured in the description, or those from hwconfig.New if none.
func (d *Description) HWLimits() (hwconfig.Limits, error) {
	if d.Limits == "" {
		return hwconfig.New()
	}
	limits, err := hwconfig.Parse(d.Limits)
	if err != nil {
		return limits, errors.WithMessage(err, "graphdesc: limits")
	}
	return limits, limits.Validate()
}
