// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package tsbatch

import (
	"github.com/cosnicolaou/tsbatch/internal/arena"
)

// batchState is the per-batch working set: a copy of the raw batch row,
// one iterator or cached constant per column descriptor, the remaining
// row counter and the output slot holding the most recently decoded row.
// All per-batch allocations go through the batch's arena, which is reset
// whenever the batch is opened or closed, so the decoder working set is
// bounded per batch regardless of how many batches are open at once.
type batchState struct {
	input     CompressedRow
	out       Row
	outEmpty  bool
	cols      []batchColumn
	remaining int64
	arena     arena.Arena
}

// batchColumn carries either a decompression iterator (compressed
// columns) or the cached per-batch constant (segment-by columns).
type batchColumn struct {
	iter DecompressionIterator
	cval Datum
}

func newBatchState(ncols, nout int) *batchState {
	return &batchState{
		out:      make(Row, nout),
		outEmpty: true,
		cols:     make([]batchColumn, ncols),
	}
}

// open binds the batch state to a raw batch row. The row is copied into
// the batch's arena so the child scan is free to reuse its buffers.
// Compressed columns get a decompression iterator dispatched on the
// algorithm id embedded in the blob; a null blob means the column was
// added after the batch was compressed and decodes as all-null.
func (b *batchState) open(row CompressedRow, descs []ColumnDescriptor, reverse bool) error {
	b.arena.Reset()
	b.input = b.cloneRow(row)
	b.outEmpty = true
	b.remaining = -1
	for i := range b.cols {
		b.cols[i] = batchColumn{}
	}
	for i, d := range descs {
		v := b.input[d.InputAttno-1]
		switch d.Kind {
		case SegmentConst:
			b.cols[i].cval = v
		case CompressedColumn:
			if v.Null {
				continue
			}
			it, err := NewIterator(v.Bytes, reverse)
			if err != nil {
				return err
			}
			b.cols[i].iter = it
		case RowCountColumn:
			if v.Null {
				return ErrNullRowCount
			}
			b.remaining = v.Int
		case SequenceNumColumn:
			// Only consulted by an external sort when materialized
			// through the normal compressed path.
		}
	}
	if b.remaining < 0 {
		return ErrNullRowCount
	}
	return nil
}

func (b *batchState) cloneRow(row CompressedRow) CompressedRow {
	if cap(b.input) >= len(row) {
		b.input = b.input[:len(row)]
	} else {
		b.input = make(CompressedRow, len(row))
	}
	copy(b.input, row)
	for i := range b.input {
		b.input[i].Bytes = b.arena.Copy(b.input[i].Bytes)
	}
	return b.input
}

// decodeNext materializes the next decoded row into the output slot. It
// returns false once the batch is exhausted, after verifying that every
// compressed stream ended in step with the row counter.
func (b *batchState) decodeNext(descs []ColumnDescriptor) (bool, error) {
	if b.remaining == 0 {
		if err := b.checkStreamsDone(descs); err != nil {
			return false, err
		}
		b.clearOutput()
		return false, nil
	}
	for i, d := range descs {
		switch d.Kind {
		case CompressedColumn:
			it := b.cols[i].iter
			if it == nil {
				b.out[d.OutputAttno-1] = NullDatum()
				continue
			}
			v, done, err := it.TryNext()
			if err != nil {
				return false, err
			}
			if done {
				// The codec ended before the counter: tolerated as
				// batch end.
				b.remaining = 0
				b.cols[i].iter = nil
				b.clearOutput()
				return false, nil
			}
			v.Bytes = b.arena.Copy(v.Bytes)
			b.out[d.OutputAttno-1] = v
		case SegmentConst:
			b.out[d.OutputAttno-1] = b.cols[i].cval
		case RowCountColumn:
			b.remaining--
		case SequenceNumColumn:
		}
	}
	b.outEmpty = false
	return true, nil
}

// checkStreamsDone probes every compressed stream once after the row
// counter reached zero. A stream that still yields a value means the
// batch metadata and the column streams have desynchronized.
func (b *batchState) checkStreamsDone(descs []ColumnDescriptor) error {
	for i, d := range descs {
		if d.Kind != CompressedColumn || b.cols[i].iter == nil {
			continue
		}
		_, done, err := b.cols[i].iter.TryNext()
		if err != nil {
			return err
		}
		if !done {
			return ErrCountDesync
		}
		b.cols[i].iter = nil
	}
	return nil
}

func (b *batchState) clearOutput() {
	for i := range b.out {
		b.out[i] = Datum{}
	}
	b.outEmpty = true
}

// close drops the batch's iterators and input row, clears the output slot
// and resets the arena. Closing an already closed batch has no effect.
func (b *batchState) close() {
	for i := range b.cols {
		b.cols[i] = batchColumn{}
	}
	b.input = nil
	b.remaining = 0
	b.clearOutput()
	b.arena.Reset()
}
