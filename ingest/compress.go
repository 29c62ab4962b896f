// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package ingest

import (
	"fmt"
	"math"

	"github.com/cosnicolaou/tsbatch"
	"github.com/cosnicolaou/tsbatch/catalog"
	"github.com/cosnicolaou/tsbatch/codec"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// sequenceStep is the gap between consecutive batch sequence numbers of
// one segment, leaving room for later splits.
const sequenceStep = 10

// defaultBatchRows is the number of rows compressed into one batch.
const defaultBatchRows = 1000

type compressorOpts struct {
	batchRows int
}

// CompressorOption represents an option to NewCompressor.
type CompressorOption func(*compressorOpts)

// BatchRows sets the maximum number of rows per compressed batch.
func BatchRows(n int) CompressorOption {
	return func(o *compressorOpts) {
		o.batchRows = n
	}
}

// Compressor converts uncompressed rows into the rows of a chunk's
// compressed batch table: rows are grouped by the segment-by columns,
// ordered by the compression order-by and encoded column by column in
// batches. Sequence numbers are assigned per segment across calls.
type Compressor struct {
	ht        *catalog.Hypertable
	batchRows int
	types     []tsbatch.Type
	segIdx    []int
	keys      []tsbatch.SortKey
	seq       map[string]int64
}

// NewCompressor returns a Compressor for ht's compression settings.
func NewCompressor(ht *catalog.Hypertable, opts ...CompressorOption) (*Compressor, error) {
	o := compressorOpts{batchRows: defaultBatchRows}
	for _, fn := range opts {
		fn(&o)
	}
	if o.batchRows <= 0 {
		return nil, fmt.Errorf("batch rows must be positive: %d", o.batchRows)
	}
	types := make([]tsbatch.Type, len(ht.Columns))
	for i, col := range ht.Columns {
		t, err := ht.TypeOf(col.Name)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	var segIdx []int
	for _, name := range ht.Compression.SegmentBy {
		i := slices.IndexFunc(ht.Columns, func(c catalog.Column) bool { return c.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("segment-by column %q not in hypertable %q", name, ht.Name)
		}
		segIdx = append(segIdx, i)
	}
	keys, err := ht.SortKeys(false)
	if err != nil {
		return nil, err
	}
	return &Compressor{
		ht:        ht,
		batchRows: o.batchRows,
		types:     types,
		segIdx:    segIdx,
		keys:      keys,
		seq:       make(map[string]int64),
	}, nil
}

// CompressRows compresses rows into batch rows laid out per the
// hypertable's compressed schema: one datum per hypertable column
// (segment-by constant or compressed blob) followed by the row count and
// sequence number columns.
func (c *Compressor) CompressRows(rows []tsbatch.Row) ([]tsbatch.CompressedRow, error) {
	groups := make(map[string][]tsbatch.Row)
	for _, row := range rows {
		k := c.segmentKey(row)
		groups[k] = append(groups[k], row)
	}
	segKeys := maps.Keys(groups)
	slices.Sort(segKeys)
	var out []tsbatch.CompressedRow
	for _, k := range segKeys {
		group := groups[k]
		slices.SortStableFunc(group, c.compareRows)
		for len(group) > 0 {
			n := c.batchRows
			if n > len(group) {
				n = len(group)
			}
			batch, err := c.compressBatch(k, group[:n])
			if err != nil {
				return nil, err
			}
			out = append(out, batch)
			group = group[n:]
		}
	}
	return out, nil
}

func (c *Compressor) segmentKey(row tsbatch.Row) string {
	var key []byte
	for _, i := range c.segIdx {
		v := row[i]
		switch {
		case v.Null:
			key = append(key, 0)
		case c.types[i] == tsbatch.TypeBytes:
			key = append(key, 1)
			key = append(key, v.Bytes...)
		default:
			key = append(key, 2)
			bits := uint64(v.Int)
			if c.types[i] == tsbatch.TypeFloat64 {
				bits = math.Float64bits(v.Float)
			} else if c.types[i] == tsbatch.TypeBool && v.Bool {
				bits = 1
			}
			for b := 0; b < 8; b++ {
				key = append(key, byte(bits>>(8*b)))
			}
		}
		key = append(key, 0xff)
	}
	return string(key)
}

func (c *Compressor) compareRows(a, b tsbatch.Row) int {
	for _, k := range c.keys {
		va, vb := a[k.Attno-1], b[k.Attno-1]
		if va.Null || vb.Null {
			switch {
			case va.Null && vb.Null:
				continue
			case va.Null == k.NullsFirst:
				return -1
			default:
				return 1
			}
		}
		cv := k.Compare(va, vb)
		if k.Descending {
			cv = -cv
		}
		if cv != 0 {
			return cv
		}
	}
	return 0
}

func (c *Compressor) compressBatch(segKey string, rows []tsbatch.Row) (tsbatch.CompressedRow, error) {
	batch := make(tsbatch.CompressedRow, 0, len(c.types)+2)
	vals := make([]tsbatch.Datum, len(rows))
	for i, t := range c.types {
		if slices.Contains(c.segIdx, i) {
			batch = append(batch, rows[0][i])
			continue
		}
		for r, row := range rows {
			vals[r] = row[i]
		}
		blob, err := codec.Encode(codec.For(t), t, vals)
		if err != nil {
			return nil, err
		}
		batch = append(batch, tsbatch.BytesDatum(blob))
	}
	c.seq[segKey] += sequenceStep
	batch = append(batch, tsbatch.IntDatum(int64(len(rows))), tsbatch.IntDatum(c.seq[segKey]))
	return batch, nil
}
