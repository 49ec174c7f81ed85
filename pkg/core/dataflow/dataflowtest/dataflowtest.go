// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dataflowtest holds test utilities to build small data-flow graphs.
package dataflowtest

import (
	"fmt"
	"testing"

	"github.com/gomlx/tilesched/pkg/core/dataflow"
	"github.com/stretchr/testify/require"
)

// GraphBuilder wraps a dataflow.Builder, failing the test on any error.
type GraphBuilder struct {
	t testing.TB
	b *dataflow.Builder
}

// New returns an empty GraphBuilder.
func New(t testing.TB) *GraphBuilder {
	return &GraphBuilder{t: t, b: dataflow.NewBuilder()}
}

// Node adds a node with the given ID, kind and attributes. The name is "n<id>".
func (gb *GraphBuilder) Node(id uint64, kind dataflow.Kind, attrs dataflow.Attributes) *GraphBuilder {
	gb.t.Helper()
	require.NoError(gb.t, gb.b.AddNode(dataflow.NodeConfig{
		ID: id, Name: nodeName(id), Kind: kind, Attributes: attrs}))
	return gb
}

// Pipe adds a pipe reading the given inputs (at offset 0) into every output.
func (gb *GraphBuilder) Pipe(outputs []uint64, inputs ...uint64) *GraphBuilder {
	gb.t.Helper()
	pipeInputs := make([]dataflow.PipeInput, len(inputs))
	for ii, id := range inputs {
		pipeInputs[ii] = dataflow.PipeInput{Node: id}
	}
	return gb.PipeWithOffsets(outputs, pipeInputs...)
}

// PipeWithOffsets adds a pipe with explicit input offsets.
func (gb *GraphBuilder) PipeWithOffsets(outputs []uint64, inputs ...dataflow.PipeInput) *GraphBuilder {
	gb.t.Helper()
	require.NoError(gb.t, gb.b.AddPipe(dataflow.Pipe{Inputs: inputs, Outputs: outputs}))
	return gb
}

// Nodes builds and returns the flat node collection.
func (gb *GraphBuilder) Nodes() []*dataflow.Node {
	gb.t.Helper()
	nodes, err := gb.b.Build()
	require.NoError(gb.t, err)
	return nodes
}

// Components builds the nodes and partitions them into connected components.
func (gb *GraphBuilder) Components() []*dataflow.Graph {
	gb.t.Helper()
	return dataflow.FindConnectedComponents(gb.Nodes())
}

// Graph builds the nodes and requires them to form exactly one connected component.
func (gb *GraphBuilder) Graph() *dataflow.Graph {
	gb.t.Helper()
	graphs := gb.Components()
	require.Len(gb.t, graphs, 1)
	return graphs[0]
}

// Index returns the index in g of the node with the given ID, failing the test if not found.
func Index(t testing.TB, g *dataflow.Graph, id uint64) int {
	t.Helper()
	idx, found := g.NodeByID(id)
	require.Truef(t, found, "node #%d not in graph", id)
	return idx
}

// State returns the scheduling state of the node with the given ID.
func State(t testing.TB, g *dataflow.Graph, id uint64) *dataflow.State {
	t.Helper()
	return g.State(Index(t, g, id))
}

func nodeName(id uint64) string { return fmt.Sprintf("n%d", id) }
