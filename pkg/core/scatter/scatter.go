// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package scatter compresses the DRAM address tables of scatter descriptors into the loop encoding
// read by the device firmware, and decodes it back.
//
// The encoded table is a flat list of uint64. Values without LoopFlag are literal addresses.
// A value with LoopFlag set is a loop marker, in one of two forms:
//
//   - Pattern loop (Compress): the pattern length L is in the low 32 bits and the loop count N in
//     bits 32–47. The marker follows the L literal addresses of the pattern, and is followed by
//     the increment. The firmware emits the pattern N more times, each adding the increment to the
//     previous repetition.
//   - Tilizer progression (CompressForTilizer): the pattern length is 0 and the extra count E is in
//     bits 48–62. The marker follows two literal addresses a and b, and the firmware emits E more
//     addresses continuing the progression a, b, b+(b-a), ...
//
// The field layout is shared with the firmware decoder: changing any of these constants breaks the
// format.
package scatter

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// LoopFlag marks a loop marker.
	LoopFlag uint64 = 1 << 63

	// PatternLengthMask selects the pattern length of a pattern loop marker.
	PatternLengthMask uint64 = 0xFFFF_FFFF

	// LoopCountShift and LoopCountMask locate the loop count of a pattern loop marker.
	LoopCountShift        = 32
	LoopCountMask  uint64 = 0xFFFF

	// TilizerExtraShift and TilizerExtraMask locate the extra count of a tilizer marker.
	TilizerExtraShift        = 48
	TilizerExtraMask  uint64 = 0x7FFF
)

const (
	// MinPatternLength is the shortest pattern Compress considers.
	MinPatternLength = 8

	// MinScore is the minimum loops×length a pattern needs to be encoded.
	MinScore = 3

	// MaxIncrement is the largest per-repetition increment the firmware can add.
	MaxIncrement uint64 = 0xFFFF_FFFF

	// MaxLoops is the largest loop count that fits a marker.
	MaxLoops = int(LoopCountMask)

	// MaxTilizerExtra is the largest extra count that fits a tilizer marker.
	MaxTilizerExtra = int(TilizerExtraMask)

	// MinTilizerRun is the shortest progression CompressForTilizer encodes.
	MinTilizerRun = 5
)

// LoopMarker returns the marker of a pattern loop.
func LoopMarker(patternLength, loops int) uint64 {
	return LoopFlag | (uint64(loops)&LoopCountMask)<<LoopCountShift | uint64(patternLength)&PatternLengthMask
}

// TilizerMarker returns the marker of a tilizer progression with extra addresses after the two
// literal ones.
func TilizerMarker(extra int) uint64 {
	return LoopFlag | (uint64(extra)&TilizerExtraMask)<<TilizerExtraShift
}

// pattern is a candidate loop starting at some cursor.
type pattern struct {
	length, loops int
	increment     uint64
}

func (p pattern) score() int { return p.loops * p.length }

// Compress encodes offsets with pattern loops.
//
// At each position it tries every pattern length from MinPatternLength up to half the remaining
// addresses, and keeps the one covering the most addresses with its repetitions (the longer one on
// ties). A pattern repeats while every one of its addresses moves by the same increment, and
// patterns whose increment is larger than MaxIncrement are discarded. Addresses not covered by a
// pattern are copied literally.
func Compress(offsets []uint64) []uint64 {
	compressed := make([]uint64, 0, len(offsets))
	for cursor := 0; cursor < len(offsets); {
		best := bestPattern(offsets, cursor)
		if best.score() < MinScore {
			compressed = append(compressed, offsets[cursor])
			cursor++
			continue
		}
		compressed = append(compressed, offsets[cursor:cursor+best.length]...)
		compressed = append(compressed, LoopMarker(best.length, best.loops), best.increment)
		cursor += (best.loops + 1) * best.length
	}
	klog.V(2).Infof("scatter: compressed %d offsets into %d values", len(offsets), len(compressed))
	return compressed
}

func bestPattern(offsets []uint64, cursor int) (best pattern) {
	remaining := len(offsets) - cursor
	for length := MinPatternLength; length <= remaining/2; length++ {
		candidate := measurePattern(offsets[cursor:], length)
		if candidate.loops > 0 && candidate.score() >= best.score() {
			best = candidate
		}
	}
	return
}

// measurePattern counts how many times the first length addresses of offsets repeat with a common
// increment.
func measurePattern(offsets []uint64, length int) pattern {
	p := pattern{length: length, increment: offsets[length] - offsets[0]}
	if p.increment > MaxIncrement {
		return pattern{length: length}
	}
	for p.loops < MaxLoops && (p.loops+2)*length <= len(offsets) {
		previous := offsets[p.loops*length : (p.loops+1)*length]
		next := offsets[(p.loops+1)*length : (p.loops+2)*length]
		for ii := range length {
			if next[ii]-previous[ii] != p.increment {
				return p
			}
		}
		p.loops++
	}
	return p
}

// CompressForTilizer encodes the arithmetic progressions of at least MinTilizerRun addresses in
// offsets as two literal addresses followed by a tilizer marker.
//
// Progressions are capped at the extra count field width, or at rows when dim > 1, in which case a
// progression never spans more than one tilizer row block.
func CompressForTilizer(offsets []uint64, dim, rows int) []uint64 {
	maxRun := MaxTilizerExtra + 2
	if dim > 1 {
		maxRun = min(maxRun, rows)
	}
	compressed := make([]uint64, 0, len(offsets))
	for cursor := 0; cursor < len(offsets); {
		run := progressionLength(offsets[cursor:], maxRun)
		if run < MinTilizerRun {
			compressed = append(compressed, offsets[cursor])
			cursor++
			continue
		}
		compressed = append(compressed, offsets[cursor], offsets[cursor+1], TilizerMarker(run-2))
		cursor += run
	}
	klog.V(2).Infof("scatter: compressed %d tilizer offsets into %d values", len(offsets), len(compressed))
	return compressed
}

// progressionLength returns the length of the arithmetic progression at the start of offsets, up to
// maxRun.
func progressionLength(offsets []uint64, maxRun int) int {
	if len(offsets) < 2 {
		return len(offsets)
	}
	step := offsets[1] - offsets[0]
	run := 2
	for run < maxRun && run < len(offsets) && offsets[run]-offsets[run-1] == step {
		run++
	}
	return run
}

// Decompress expands an encoded table back into the address list, as the firmware does.
// It returns an error if a marker refers to addresses not yet decoded, or misses its increment.
func Decompress(encoded []uint64) ([]uint64, error) {
	var offsets []uint64
	for pos := 0; pos < len(encoded); pos++ {
		value := encoded[pos]
		if value&LoopFlag == 0 {
			offsets = append(offsets, value)
			continue
		}
		length := int(value & PatternLengthMask)
		loops := int((value >> LoopCountShift) & LoopCountMask)
		extra := int((value >> TilizerExtraShift) & TilizerExtraMask)
		switch {
		case length > 0 && extra == 0:
			if length > len(offsets) {
				return nil, errors.Errorf("scatter: loop marker 0x%x at position %d repeats a pattern of %d addresses, but only %d were decoded",
					value, pos, length, len(offsets))
			}
			if pos+1 >= len(encoded) {
				return nil, errors.Errorf("scatter: loop marker 0x%x at position %d is missing its increment", value, pos)
			}
			pos++
			increment := encoded[pos]
			start := len(offsets) - length
			for range loops {
				for ii := range length {
					offsets = append(offsets, offsets[start+ii]+increment)
				}
				start += length
			}

		case length == 0 && extra > 0:
			if len(offsets) < 2 {
				return nil, errors.Errorf("scatter: tilizer marker 0x%x at position %d needs 2 decoded addresses, got %d",
					value, pos, len(offsets))
			}
			step := offsets[len(offsets)-1] - offsets[len(offsets)-2]
			for range extra {
				offsets = append(offsets, offsets[len(offsets)-1]+step)
			}

		default:
			return nil, errors.Errorf("scatter: invalid marker 0x%x at position %d", value, pos)
		}
	}
	return offsets, nil
}
