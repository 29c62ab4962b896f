// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"cloudeng.io/errors"
	"github.com/cosnicolaou/tsbatch"
	"github.com/cosnicolaou/tsbatch/catalog"
	"github.com/cosnicolaou/tsbatch/chunkfile"
	"github.com/cosnicolaou/tsbatch/ingest"
	"github.com/grailbio/base/file"
	"github.com/schollz/progressbar/v2"
	"golang.org/x/crypto/ssh/terminal"
)

// progressReader counts bytes consumed from the input towards a progress
// bar.
type progressReader struct {
	rd  io.Reader
	bar *progressbar.ProgressBar
}

func (pr *progressReader) Read(buf []byte) (int, error) {
	n, err := pr.rd.Read(buf)
	if n > 0 && pr.bar != nil {
		pr.bar.Add(n)
	}
	return n, err
}

func copyCSV(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := handleSignals(ctx)
	defer cancel()
	cl := values.(*copyFlags)

	catData, err := os.ReadFile(cl.Catalog)
	if err != nil {
		return err
	}
	cat, err := catalog.Load(catData)
	if err != nil {
		return err
	}
	ht, err := cat.HypertableByName(cl.Hypertable)
	if err != nil {
		return err
	}

	rd, size, readerCleanup, err := openFileOrURL(ctx, args[0])
	if err != nil {
		return err
	}
	defer readerCleanup(ctx)

	var bar *progressbar.ProgressBar
	if cl.ProgressBar && terminal.IsTerminal(int(os.Stdout.Fd())) && size > 0 {
		bar = progressbar.NewOptions64(size,
			progressbar.OptionSetBytes64(size),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetPredictTime(true))
		bar.RenderBlank()
	}

	// Rows flushed from the copier's multi-insert buffers are compressed
	// into batch rows, collected per chunk and written out at the end.
	compressor, err := ingest.NewCompressor(ht, ingest.BatchRows(cl.BatchRows))
	if err != nil {
		return err
	}
	batches := map[int64][]tsbatch.CompressedRow{}
	flush := func(ctx context.Context, chunk *catalog.Chunk, rows []tsbatch.Row) error {
		compressed, err := compressor.CompressRows(rows)
		if err != nil {
			return err
		}
		batches[chunk.RelID] = append(batches[chunk.RelID], compressed...)
		return nil
	}
	copier, err := ingest.NewCopier(cat, ht, flush)
	if err != nil {
		return err
	}

	cr := csv.NewReader(&progressReader{rd: rd, bar: bar})
	cr.ReuseRecord = true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		row, err := ingest.ParseRow(ht, record)
		if err != nil {
			return err
		}
		if err := copier.Append(ctx, row); err != nil {
			return err
		}
	}
	if err := copier.Flush(ctx); err != nil {
		return err
	}
	if bar != nil {
		fmt.Fprintf(os.Stderr, "\n")
	}

	schema, err := ht.InputSchema()
	if err != nil {
		return err
	}
	errs := errors.M{}
	for relid, rows := range batches {
		errs.Append(writeChunkFile(ctx, chunkFileName(cl.OutputDir, relid), schema, cl.Compression, rows))
	}
	if err := errs.Err(); err != nil {
		return err
	}

	// Persist the chunks created during the copy.
	catData, err = cat.Save()
	if err != nil {
		return err
	}
	if err := os.WriteFile(cl.Catalog, catData, 0660); err != nil {
		return err
	}
	fmt.Printf("copied %v rows into %v chunks\n", copier.Rows(), len(batches))
	return nil
}

func writeChunkFile(ctx context.Context, name string, schema []tsbatch.Type, compression string, rows []tsbatch.CompressedRow) error {
	f, err := file.Create(ctx, name)
	if err != nil {
		return err
	}
	wr, err := chunkfile.NewWriter(f.Writer(ctx), schema, chunkfile.WithCompression(compression))
	if err != nil {
		f.Close(ctx)
		return err
	}
	for _, row := range rows {
		if err := wr.WriteRow(row); err != nil {
			f.Close(ctx)
			return err
		}
	}
	if err := wr.Close(); err != nil {
		f.Close(ctx)
		return err
	}
	return f.Close(ctx)
}
