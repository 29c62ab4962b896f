// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package ingest implements the bulk ingest path: rows are dispatched to
// their owning chunk, buffered per chunk in multi-insert buffers and
// handed to a flush function in batches; the package's Compressor turns
// flushed rows into the compressed batch rows the scan operator reads.
package ingest

import (
	"context"
	"fmt"

	"github.com/cosnicolaou/tsbatch"
	"github.com/cosnicolaou/tsbatch/catalog"
	"github.com/dchest/siphash"
)

// Multi-insert buffering limits: a chunk's buffer is flushed once it
// holds maxBufferedRows rows or maxBufferedBytes of row data, and at most
// maxChunkBuffers per-chunk buffers are retained at any time.
const (
	maxBufferedRows  = 1000
	maxBufferedBytes = 64 * 1024
	maxChunkBuffers  = 32
)

// Keys for the space-partition hash.
const (
	dispatchHashK0 = 0x74736261746368 // "tsbatch"
	dispatchHashK1 = 0x64697370617463
)

// FlushFunc receives a chunk's buffered rows whenever its buffer fills
// and once more when the copier is flushed.
type FlushFunc func(ctx context.Context, chunk *catalog.Chunk, rows []tsbatch.Row) error

type chunkBuffer struct {
	chunk *catalog.Chunk
	rows  []tsbatch.Row
	bytes int
}

// Copier buffers rows on their way into a hypertable's chunks, creating
// chunks as new time/space partitions are touched.
type Copier struct {
	cat     *catalog.Catalog
	ht      *catalog.Hypertable
	flush   FlushFunc
	partIdx int
	segIdx  []int
	bufs    map[int64]*chunkBuffer
	rows    uint64
}

// NewCopier returns a Copier appending to ht's chunks through flush.
func NewCopier(cat *catalog.Catalog, ht *catalog.Hypertable, flush FlushFunc) (*Copier, error) {
	partIdx := -1
	for i, col := range ht.Columns {
		if col.Name == ht.PartitionColumn {
			partIdx = i
		}
	}
	if partIdx < 0 {
		return nil, fmt.Errorf("hypertable %q has no partition column %q", ht.Name, ht.PartitionColumn)
	}
	var segIdx []int
	for _, name := range ht.Compression.SegmentBy {
		found := false
		for i, col := range ht.Columns {
			if col.Name == name {
				segIdx = append(segIdx, i)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("segment-by column %q not in hypertable %q", name, ht.Name)
		}
	}
	return &Copier{
		cat:     cat,
		ht:      ht,
		flush:   flush,
		partIdx: partIdx,
		segIdx:  segIdx,
		bufs:    make(map[int64]*chunkBuffer),
	}, nil
}

// spaceSlot hashes the row's segment-by values into one of the
// hypertable's space partitions.
func (c *Copier) spaceSlot(row tsbatch.Row) int {
	if c.ht.SpacePartitions <= 1 || len(c.segIdx) == 0 {
		return 0
	}
	var key []byte
	for _, i := range c.segIdx {
		v := row[i]
		switch {
		case v.Null:
			key = append(key, 0)
		case v.Bytes != nil:
			key = append(key, v.Bytes...)
		default:
			for b := 0; b < 8; b++ {
				key = append(key, byte(uint64(v.Int)>>(8*b)))
			}
		}
	}
	h := siphash.Hash(dispatchHashK0, dispatchHashK1, key)
	return int(h % uint64(c.ht.SpacePartitions))
}

// Append dispatches one row to its chunk's buffer, flushing buffers as
// the multi-insert limits are reached.
func (c *Copier) Append(ctx context.Context, row tsbatch.Row) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if len(row) != len(c.ht.Columns) {
		return fmt.Errorf("row has %d columns, hypertable %q has %d", len(row), c.ht.Name, len(c.ht.Columns))
	}
	at := row[c.partIdx]
	if at.Null {
		return fmt.Errorf("null partition column %q", c.ht.PartitionColumn)
	}
	slot := c.spaceSlot(row)
	chunk := c.cat.FindChunk(c.ht, at.Int, slot)
	if chunk == nil {
		chunk = c.cat.AddChunk(c.ht, at.Int, slot)
	}
	buf := c.bufs[chunk.RelID]
	if buf == nil {
		if len(c.bufs) >= maxChunkBuffers {
			if err := c.trim(ctx); err != nil {
				return err
			}
		}
		buf = &chunkBuffer{chunk: chunk}
		c.bufs[chunk.RelID] = buf
	}
	buf.rows = append(buf.rows, cloneRow(row))
	buf.bytes += rowBytes(row)
	c.rows++
	if len(buf.rows) >= maxBufferedRows || buf.bytes >= maxBufferedBytes {
		return c.flushBuffer(ctx, buf)
	}
	return nil
}

// trim flushes and drops the largest buffer so that at most
// maxChunkBuffers are retained.
func (c *Copier) trim(ctx context.Context) error {
	var largest *chunkBuffer
	for _, buf := range c.bufs {
		if largest == nil || buf.bytes > largest.bytes {
			largest = buf
		}
	}
	if largest == nil {
		return nil
	}
	if err := c.flushBuffer(ctx, largest); err != nil {
		return err
	}
	delete(c.bufs, largest.chunk.RelID)
	return nil
}

func (c *Copier) flushBuffer(ctx context.Context, buf *chunkBuffer) error {
	if len(buf.rows) == 0 {
		return nil
	}
	rows := buf.rows
	buf.rows = nil
	buf.bytes = 0
	return c.flush(ctx, buf.chunk, rows)
}

// Flush drains every remaining buffer.
func (c *Copier) Flush(ctx context.Context) error {
	for _, buf := range c.bufs {
		if err := c.flushBuffer(ctx, buf); err != nil {
			return err
		}
	}
	return nil
}

// Rows returns the number of rows appended so far.
func (c *Copier) Rows() uint64 { return c.rows }

func cloneRow(row tsbatch.Row) tsbatch.Row {
	out := make(tsbatch.Row, len(row))
	copy(out, row)
	for i := range out {
		if out[i].Bytes != nil {
			out[i].Bytes = append([]byte(nil), out[i].Bytes...)
		}
	}
	return out
}

func rowBytes(row tsbatch.Row) int {
	n := 0
	for _, v := range row {
		if v.Bytes != nil {
			n += len(v.Bytes) + 8
			continue
		}
		n += 8
	}
	return n
}
