// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataflow

// Kind is the concrete kind of buffer or stream a Node represents.
//
// Behavior that differs per kind is resolved through a small trait table (see kindTraits),
// not through per-kind types.
type Kind int

//go:generate go tool enumer -type=Kind -trimprefix=Kind -yaml -output=gen_kind_enumer.go kind.go

const (
	// KindBuffer is a plain L1 buffer: packer outputs, unpacker inputs, relay buffers.
	KindBuffer Kind = iota
	KindDRAMInput
	KindDRAMOutput
	KindPCIeStreamingInput
	KindPCIeStreamingOutput

	// KindIntermediate is an intermediate (gradient accumulation) buffer, which keeps the
	// whole epoch on chip.
	KindIntermediate

	// KindUntilizedDRAMOutput is a DRAM output written in row-major (untilized) layout.
	KindUntilizedDRAMOutput

	// KindDRAMParallelFork is a DRAM read forked in parallel to several consumers.
	KindDRAMParallelFork
)

// FlowType describes how a node hands its data to its destinations.
type FlowType int

//go:generate go tool enumer -type=FlowType -trimprefix=FlowType -yaml -output=gen_flowtype_enumer.go kind.go

const (
	// FlowTypeSerial nodes send the same stream to every destination (one or a broadcast).
	FlowTypeSerial FlowType = iota

	// FlowTypeSerialFork nodes are one output of a fork whose outputs are served one after the other.
	// Each carries its position in the fork (Attributes.ForkIndex).
	FlowTypeSerialFork

	// FlowTypeParallel nodes feed each destination independently and concurrently.
	FlowTypeParallel
)

type traits struct {
	dramOrPCIeInput     bool
	dramOrPCIeOutput    bool
	singleIterationOK   bool
	accumulationAllowed bool
}

var kindTraits = map[Kind]traits{
	KindBuffer:              {accumulationAllowed: true},
	KindDRAMInput:           {dramOrPCIeInput: true},
	KindDRAMOutput:          {dramOrPCIeOutput: true, accumulationAllowed: true},
	KindPCIeStreamingInput:  {dramOrPCIeInput: true},
	KindPCIeStreamingOutput: {dramOrPCIeOutput: true, accumulationAllowed: true},
	KindIntermediate:        {singleIterationOK: true, accumulationAllowed: true},
	KindUntilizedDRAMOutput: {dramOrPCIeOutput: true, singleIterationOK: true, accumulationAllowed: true},
	KindDRAMParallelFork:    {},
}

func (k Kind) traits() traits {
	t, found := kindTraits[k]
	if !found {
		return kindTraits[KindBuffer]
	}
	return t
}
