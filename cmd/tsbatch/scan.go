// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/cosnicolaou/tsbatch"
	"github.com/cosnicolaou/tsbatch/catalog"
	"github.com/cosnicolaou/tsbatch/chunkfile"
	_ "github.com/cosnicolaou/tsbatch/codec"
	"github.com/cosnicolaou/tsbatch/ingest"
)

func scanChunk(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := handleSignals(ctx)
	defer cancel()
	cl := values.(*scanFlags)

	catData, err := os.ReadFile(cl.Catalog)
	if err != nil {
		return err
	}
	cat, err := catalog.Load(catData)
	if err != nil {
		return err
	}
	chunk, err := cat.ChunkByRelID(cl.Chunk)
	if err != nil {
		return err
	}
	ht, err := cat.Hypertable(chunk.HypertableID)
	if err != nil {
		return err
	}
	info, err := ht.CompressionInfo()
	if err != nil {
		return err
	}
	cfg, err := ht.ScanConfig(chunk, cl.Reverse, cl.Merge)
	if err != nil {
		return err
	}

	rd, _, readerCleanup, err := openFileOrURL(ctx, args[0])
	if err != nil {
		return err
	}
	defer readerCleanup(ctx)

	sc, err := tsbatch.NewScanner(chunkfile.NewScanner(rd), info, cfg,
		tsbatch.Verbose(cl.Verbose))
	if err != nil {
		return err
	}
	defer sc.Close()

	if cl.Explain {
		for _, p := range sc.Explain() {
			fmt.Println(p)
		}
		return nil
	}

	cw := csv.NewWriter(os.Stdout)
	defer cw.Flush()
	for {
		row, err := sc.Next(ctx)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		fields, err := ingest.FormatRow(ht, row)
		if err != nil {
			return err
		}
		if err := cw.Write(fields); err != nil {
			return err
		}
	}
}
