// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package tsbatch

import (
	"context"
	"fmt"
	"log"
)

// BatchSource is the child scan: a pull iterator yielding the raw rows of
// a chunk's compressed batch table. The row returned by Row is valid only
// until the next call to Scan; the operator copies what it retains.
type BatchSource interface {
	Scan(ctx context.Context) bool
	Row() CompressedRow
	Err() error
	// Rescan restarts the source from the first batch row.
	Rescan(ctx context.Context) error
	Close() error
}

// TableOIDAttno is the system attribute number referring to the owning
// table's oid. Decoded rows are virtual and carry no system columns, so
// projections referencing it are rewritten to the chunk relation id at
// construction.
const TableOIDAttno = -6

// ProjectionColumn is one entry of an optional output projection: either
// a 1-based output attno, or a literal constant.
type ProjectionColumn struct {
	Attno int
	Const *Datum
}

// Config is the operator's immutable configuration, produced by the
// planner.
type Config struct {
	// HypertableID and ChunkRelID are the catalog handles the
	// compression info was loaded for.
	HypertableID int32
	ChunkRelID   int64
	// Reverse selects the decompression direction within each batch.
	Reverse bool
	// Merge enables merge-append: batches are k-way-merged on SortKeys
	// instead of streamed one at a time.
	Merge bool
	// DecompressionMap maps each input column position to an output
	// attno, zero to ignore the input column, or one of the reserved
	// negative metadata attnos.
	DecompressionMap []int
	// SortKeys must be non-empty exactly when Merge is set.
	SortKeys []SortKey
	// Projection optionally rewrites the decoded row before it is
	// returned.
	Projection []ProjectionColumn
	// Filter optionally discards decoded rows; it applies only to the
	// non-merge path.
	Filter func(Row) bool
}

type scanState uint8

const (
	scanInit scanState = iota
	scanStreaming
	scanDone
)

type scannerOpts struct {
	poolSize     int
	heapCapacity int
	verbose      bool
}

// Option represents an option to NewScanner.
type Option func(o *scannerOpts)

// PoolSize sets the number of batch slots the pool is pre-filled with.
func PoolSize(n int) Option {
	return func(o *scannerOpts) { o.poolSize = n }
}

// HeapCapacity sets the merge heap's starting capacity.
func HeapCapacity(n int) Option {
	return func(o *scannerOpts) { o.heapCapacity = n }
}

// Verbose controls verbose logging for the scan.
func Verbose(v bool) Option {
	return func(o *scannerOpts) { o.verbose = v }
}

// Scanner streams decoded rows out of a chunk's compressed batches. It is
// a single-threaded, demand-driven iterator: each call to Next produces
// one row or reports end of stream. A returned row is valid only until
// the following call to Next.
type Scanner struct {
	cfg   Config
	src   BatchSource
	descs []ColumnDescriptor
	nout  int
	// countInput is the 1-based input position of the row count column,
	// used to filter empty batches before a pool slot is allocated.
	countInput int

	state   scanState
	pool    *batchPool
	heap    *slotHeap
	advance bool

	// Non-merge mode reuses a single batch slot.
	single     SlotNumber
	singleOpen bool

	projRow      Row
	heapCapacity int
	verbose      bool
	closed       bool
	err          error
}

// NewScanner constructs a scan operator over src. info is the
// catalog-derived description of the chunk's compressed layout and cfg
// the planner-produced configuration; both are immutable for the life of
// the operator.
func NewScanner(src BatchSource, info CompressionInfo, cfg Config, opts ...Option) (*Scanner, error) {
	o := scannerOpts{
		poolSize:     initialBatchCapacity,
		heapCapacity: defaultHeapCapacity,
	}
	for _, fn := range opts {
		fn(&o)
	}
	descs, nout, err := buildDescriptors(cfg.DecompressionMap, info)
	if err != nil {
		return nil, err
	}
	if cfg.Merge && len(cfg.SortKeys) == 0 {
		return nil, fmt.Errorf("merge-append requires sort keys")
	}
	if !cfg.Merge && len(cfg.SortKeys) > 0 {
		return nil, fmt.Errorf("sort keys supplied without merge-append")
	}
	for _, k := range cfg.SortKeys {
		if k.Attno < 1 || k.Attno > nout {
			return nil, fmt.Errorf("sort key attno %d outside output tuple [1, %d]", k.Attno, nout)
		}
		if k.Compare == nil {
			return nil, fmt.Errorf("sort key attno %d has no comparator", k.Attno)
		}
	}
	countInput := 0
	for _, d := range descs {
		if d.Kind == RowCountColumn {
			countInput = d.InputAttno
		}
	}
	s := &Scanner{
		cfg:          cfg,
		src:          src,
		descs:        descs,
		nout:         nout,
		countInput:   countInput,
		pool:         newBatchPool(descs, nout, o.poolSize),
		heapCapacity: o.heapCapacity,
		verbose:      o.verbose,
	}
	if err := s.rewriteProjection(); err != nil {
		return nil, err
	}
	if !cfg.Merge {
		s.single = s.pool.allocate()
	}
	return s, nil
}

// rewriteProjection replaces table-oid references with the literal chunk
// relation id. Decoded rows are virtual and have no system columns; a
// surviving table-oid reference would fail downstream.
func (s *Scanner) rewriteProjection() error {
	for i, p := range s.cfg.Projection {
		switch {
		case p.Const != nil:
		case p.Attno == TableOIDAttno:
			c := IntDatum(s.cfg.ChunkRelID)
			s.cfg.Projection[i].Const = &c
		case p.Attno < 1 || p.Attno > s.nout:
			return fmt.Errorf("unsupported column attno %d in projection", p.Attno)
		}
	}
	if s.cfg.Projection != nil {
		s.projRow = make(Row, len(s.cfg.Projection))
	}
	return nil
}

func (s *Scanner) trace(format string, args ...interface{}) {
	if s.verbose {
		log.Printf(format, args...)
	}
}

// Next returns the next decoded row, or nil at end of stream. The row is
// valid only until the following call to Next.
func (s *Scanner) Next(ctx context.Context) (Row, error) {
	if s.err != nil {
		return nil, s.err
	}
	select {
	case <-ctx.Done():
		s.err = ctx.Err()
		return nil, s.err
	default:
	}
	if s.state == scanDone {
		return nil, nil
	}
	var (
		row Row
		err error
	)
	if s.cfg.Merge {
		row, err = s.nextMerge(ctx)
	} else {
		row, err = s.nextSerial(ctx)
	}
	if err != nil {
		s.err = err
		return nil, err
	}
	if row == nil {
		s.trace("scan done: pool capacity %v", s.pool.capacity())
		s.state = scanDone
		return nil, nil
	}
	return s.project(row), nil
}

// nextSerial streams batches one at a time through a single reused batch
// slot, in child-scan order.
func (s *Scanner) nextSerial(ctx context.Context) (Row, error) {
	s.state = scanStreaming
	b := s.pool.get(s.single)
	for {
		if !s.singleOpen {
			if !s.src.Scan(ctx) {
				if err := s.src.Err(); err != nil {
					return nil, err
				}
				return nil, nil
			}
			row := s.src.Row()
			if err := s.checkRow(row); err != nil {
				return nil, err
			}
			if err := b.open(row, s.descs, s.cfg.Reverse); err != nil {
				return nil, err
			}
			s.singleOpen = true
		}
		ok, err := b.decodeNext(s.descs)
		if err != nil {
			return nil, err
		}
		if !ok {
			b.close()
			s.singleOpen = false
			continue
		}
		if s.cfg.Filter != nil && !s.cfg.Filter(b.out) {
			continue
		}
		return b.out, nil
	}
}

// checkRow validates that a raw batch row matches the decompression
// map's input layout.
func (s *Scanner) checkRow(row CompressedRow) error {
	if len(row) < len(s.cfg.DecompressionMap) {
		return fmt.Errorf("batch row has %d columns, decompression map describes %d", len(row), len(s.cfg.DecompressionMap))
	}
	return nil
}

func (s *Scanner) project(row Row) Row {
	if s.cfg.Projection == nil {
		return row
	}
	for i, p := range s.cfg.Projection {
		if p.Const != nil {
			s.projRow[i] = *p.Const
			continue
		}
		s.projRow[i] = row[p.Attno-1]
	}
	return s.projRow
}

// Rescan restarts the scan from the beginning. The merge heap is
// discarded rather than reused; the pool keeps its capacity.
func (s *Scanner) Rescan(ctx context.Context) error {
	if err := s.src.Rescan(ctx); err != nil {
		return err
	}
	s.pool.releaseAll()
	s.heap = nil
	s.advance = false
	s.singleOpen = false
	if !s.cfg.Merge {
		s.single = s.pool.allocate()
	}
	s.state = scanInit
	s.err = nil
	return nil
}

// Close releases every batch slot and closes the child scan. It is safe
// to call in an error state and more than once.
func (s *Scanner) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.state = scanDone
	s.pool.releaseAll()
	s.heap = nil
	s.advance = false
	s.singleOpen = false
	return s.src.Close()
}

// MergeAppend reports whether the operator merges batches on the sort
// keys.
func (s *Scanner) MergeAppend() bool { return s.cfg.Merge }

// Explain reports the operator's explain properties.
func (s *Scanner) Explain() []string {
	return []string{fmt.Sprintf("Per segment merge append: %v", s.cfg.Merge)}
}
