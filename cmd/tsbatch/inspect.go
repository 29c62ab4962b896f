// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/cosnicolaou/tsbatch/chunkfile"
	"github.com/grailbio/base/must"
)

// inspect prints the header and per-batch layout of chunk files.
func inspect(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := handleSignals(ctx)
	defer cancel()
	for _, name := range args {
		rd, size, readerCleanup, err := openFileOrURL(ctx, name)
		if err != nil {
			return err
		}
		sc := chunkfile.NewScanner(rd)
		nbatch := 0
		for sc.Scan(ctx) {
			row := sc.Row()
			if nbatch == 0 {
				info := sc.Info()
				fmt.Printf("=== %v ===\n", name)
				fmt.Printf("Compression     : %v\n", info.Compression)
				fmt.Printf("Columns         : %v\n", len(info.Schema))
				fmt.Printf("Batches         : %v\n", info.Rows)
				fmt.Printf("Body Size       : %v (%v compressed file)\n", info.BodySize, size)
			}
			// The count and sequence columns are the last two of every
			// batch row.
			must.True(len(row) >= 2, "batch row too narrow")
			count, seq := row[len(row)-2], row[len(row)-1]
			compressed := 0
			for _, v := range row {
				compressed += len(v.Bytes)
			}
			fmt.Printf("batch %3d: rows %5d, sequence %6d, compressed bytes %7d\n",
				nbatch, count.Int, seq.Int, compressed)
			nbatch++
		}
		if err := sc.Err(); err != nil {
			readerCleanup(ctx)
			return err
		}
		readerCleanup(ctx)
	}
	return nil
}
