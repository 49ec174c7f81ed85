// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/tilesched/internal/workerspool"
	"github.com/gomlx/tilesched/pkg/core/scatter"
	"github.com/gomlx/tilesched/pkg/support/fsutil"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// readOffsets reads one address per line. Empty lines and lines starting with "#" are skipped.
func readOffsets(r io.Reader) ([]uint64, error) {
	var offsets []uint64
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		offset, err := strconv.ParseUint(line, 0, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
		if offset&scatter.LoopFlag != 0 {
			return nil, errors.Errorf("line %d: address 0x%x has the loop flag bit set", lineNum, offset)
		}
		offsets = append(offsets, offset)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading offsets")
	}
	return offsets, nil
}

// compression is the result of compressing one offsets file.
type compression struct {
	filePath         string
	offsets, encoded []uint64
	roundTrip        bool
	err              error
}

// compressFile reads and compresses the offsets in filePath, and checks the encoding decodes back.
func compressFile(filePath string) (c compression) {
	c.filePath, c.err = fsutil.ReplaceTildeInDir(filePath)
	if c.err != nil {
		return
	}
	f, err := os.Open(c.filePath)
	if err != nil {
		c.err = errors.Wrapf(err, "failed to open offsets file")
		return
	}
	c.offsets, c.err = readOffsets(f)
	_ = f.Close()
	if c.err != nil {
		return
	}

	if *flagTilizer {
		c.encoded = scatter.CompressForTilizer(c.offsets, *flagDim, *flagRows)
	} else {
		c.encoded = scatter.Compress(c.offsets)
	}
	var decoded []uint64
	decoded, c.err = scatter.Decompress(c.encoded)
	if c.err != nil {
		c.err = errors.WithMessage(c.err, "compressed offsets don't decode")
		return
	}
	c.roundTrip = slices.Equal(decoded, c.offsets)
	return
}

// compressFiles compresses the files concurrently with -workers, and reports them in order.
func compressFiles(filePaths []string) {
	for _, filePath := range filePaths {
		if !must.M1(fsutil.FileExists(must.M1(fsutil.ReplaceTildeInDir(filePath)))) {
			klog.Exitf("Offsets file %q not found.", filePath)
		}
	}
	results := make([]compression, len(filePaths))
	workerspool.New(*flagWorkers).Run(len(filePaths), func(ii int) {
		results[ii] = compressFile(filePaths[ii])
	})
	for _, c := range results {
		if c.err != nil {
			klog.Exitf("Failed to compress %q: %+v", c.filePath, c.err)
		}
		reportCompression(c)
	}
}

func reportCompression(c compression) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("Compression of %s", c.filePath)))
	table := newKeyValueTable()
	table.Row("# addresses", humanize.Comma(int64(len(c.offsets))))
	table.Row("# encoded values", humanize.Comma(int64(len(c.encoded))))
	table.Row("encoded size", humanize.Bytes(uint64(8*len(c.encoded))))
	if len(c.offsets) > 0 {
		table.Row("ratio", fmt.Sprintf("%.1f%%", 100*float64(len(c.encoded))/float64(len(c.offsets))))
	}
	table.Row("round trip", strconv.FormatBool(c.roundTrip))
	fmt.Println(table.Render())
	if !c.roundTrip {
		klog.Errorf("Decoding the compressed offsets of %q doesn't give back the original offsets", c.filePath)
	}

	if *flagPrint {
		for _, value := range c.encoded {
			fmt.Printf("0x%016x\n", value)
		}
	}
}
