// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package scatter

import (
	"math/rand/v2"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressPattern(t *testing.T) {
	const base = 0x1000
	var offsets []uint64
	for k := range 3 {
		for j := range 9 {
			offsets = append(offsets, uint64(base+k+j))
		}
	}
	offsets = append(offsets, 0x50000, 0x60000, 0x70000)
	require.Len(t, offsets, 30)

	compressed := Compress(offsets)
	require.Len(t, compressed, 14)
	assert.Equal(t, offsets[:9], compressed[:9])
	assert.Equal(t, uint64(0x8000000200000009), compressed[9])
	assert.Equal(t, uint64(1), compressed[10])
	assert.Equal(t, []uint64{0x50000, 0x60000, 0x70000}, compressed[11:])

	assert.Equal(t, offsets, must.M1(Decompress(compressed)))
}

func TestCompressIncrementLimit(t *testing.T) {
	pattern := []uint64{0x50, 0x30, 0x90, 0x10, 0x70, 0x20, 0x80, 0x40}
	repeat := func(increment uint64) []uint64 {
		var offsets []uint64
		for k := range 3 {
			for _, p := range pattern {
				offsets = append(offsets, p+uint64(k)*increment)
			}
		}
		return offsets
	}

	t.Run("largest increment", func(t *testing.T) {
		offsets := repeat(MaxIncrement)
		compressed := Compress(offsets)
		require.Len(t, compressed, 10)
		assert.Equal(t, LoopMarker(8, 2), compressed[8])
		assert.Equal(t, MaxIncrement, compressed[9])
		assert.Equal(t, offsets, must.M1(Decompress(compressed)))
	})

	t.Run("increment over 32 bits", func(t *testing.T) {
		offsets := repeat(MaxIncrement + 1)
		assert.Equal(t, offsets, Compress(offsets))
	})

	t.Run("decreasing addresses", func(t *testing.T) {
		offsets := repeat(MaxIncrement)
		for ii, j := 0, len(offsets)-8; ii < j; ii, j = ii+8, j-8 {
			for k := range 8 {
				offsets[ii+k], offsets[j+k] = offsets[j+k], offsets[ii+k]
			}
		}
		assert.Equal(t, offsets, Compress(offsets))
	})
}

func TestCompressShortInputs(t *testing.T) {
	assert.Empty(t, Compress(nil))
	// 15 addresses can't hold two 8-address repetitions.
	offsets := make([]uint64, 15)
	for ii := range offsets {
		offsets[ii] = uint64(ii)
	}
	assert.Equal(t, offsets, Compress(offsets))
}

func TestCompressRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	for trial := range 20 {
		var offsets []uint64
		for range 1 + rng.IntN(6) {
			// A random pattern repeated a random number of times, followed by some noise.
			pattern := make([]uint64, 8+rng.IntN(8))
			for ii := range pattern {
				pattern[ii] = rng.Uint64N(1 << 40)
			}
			increment := rng.Uint64N(1 << 32)
			for k := range 1 + rng.IntN(5) {
				for _, p := range pattern {
					offsets = append(offsets, p+uint64(k)*increment)
				}
			}
			for range rng.IntN(5) {
				offsets = append(offsets, rng.Uint64N(1<<40))
			}
		}
		compressed := Compress(offsets)
		assert.LessOrEqualf(t, len(compressed), len(offsets), "trial %d", trial)
		require.Equalf(t, offsets, must.M1(Decompress(compressed)), "trial %d", trial)
	}
}

func progression(start, step uint64, n int) []uint64 {
	offsets := make([]uint64, n)
	for ii := range offsets {
		offsets[ii] = start + uint64(ii)*step
	}
	return offsets
}

func TestCompressForTilizer(t *testing.T) {
	t.Run("single progression", func(t *testing.T) {
		offsets := progression(0, 4, 10)
		compressed := CompressForTilizer(offsets, 1, 0)
		assert.Equal(t, []uint64{0, 4, TilizerMarker(8)}, compressed)
		assert.Equal(t, uint64(0x8008000000000000), compressed[2])
		assert.Equal(t, offsets, must.M1(Decompress(compressed)))
	})

	t.Run("every progression is encoded", func(t *testing.T) {
		offsets := append(progression(0, 1, 6), 1000)
		offsets = append(offsets, progression(2000, 8, 5)...)
		compressed := CompressForTilizer(offsets, 1, 0)
		assert.Equal(t, []uint64{
			0, 1, TilizerMarker(4),
			1000,
			2000, 2008, TilizerMarker(3)}, compressed)
		assert.Equal(t, offsets, must.M1(Decompress(compressed)))
	})

	t.Run("too short", func(t *testing.T) {
		offsets := []uint64{0, 1, 2, 3, 100, 300}
		assert.Equal(t, offsets, CompressForTilizer(offsets, 1, 0))
	})

	t.Run("capped by rows", func(t *testing.T) {
		offsets := progression(0x100, 2, 14)
		compressed := CompressForTilizer(offsets, 2, 6)
		assert.Equal(t, []uint64{
			0x100, 0x102, TilizerMarker(4),
			0x10c, 0x10e, TilizerMarker(4),
			0x118, 0x11a}, compressed)
		assert.Equal(t, offsets, must.M1(Decompress(compressed)))

		// rows is ignored for one dimension.
		assert.Len(t, CompressForTilizer(offsets, 1, 6), 3)
	})

	t.Run("capped by field width", func(t *testing.T) {
		offsets := progression(0, 1, MaxTilizerExtra+2+3)
		compressed := CompressForTilizer(offsets, 1, 0)
		require.Len(t, compressed, 6)
		assert.Equal(t, TilizerMarker(MaxTilizerExtra), compressed[2])
		assert.Equal(t, offsets, must.M1(Decompress(compressed)))
	})
}

func TestDecompressErrors(t *testing.T) {
	literals := progression(0, 1, 8)
	for _, tc := range []struct {
		name    string
		encoded []uint64
	}{
		{"loop before pattern", []uint64{1, 2, LoopMarker(8, 1), 1}},
		{"missing increment", append(literals[:8:8], LoopMarker(8, 1))},
		{"tilizer without literals", []uint64{5, TilizerMarker(3)}},
		{"empty marker", []uint64{LoopFlag}},
		{"both fields", append(literals[:8:8], LoopMarker(8, 1)|TilizerMarker(1), 1)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decompress(tc.encoded)
			require.Error(t, err)
		})
	}
}
