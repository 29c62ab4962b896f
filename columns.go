// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package tsbatch

import "fmt"

// ColumnKind classifies an input batch column.
type ColumnKind uint8

const (
	// SegmentConst columns hold a value that is constant across the
	// whole batch and is stored once in the batch row.
	SegmentConst ColumnKind = iota
	// CompressedColumn columns hold a compressed per-row stream.
	CompressedColumn
	// RowCountColumn is the batch metadata column holding the number of
	// rows encoded in the batch.
	RowCountColumn
	// SequenceNumColumn is the batch metadata column holding the batch
	// sequence number; it participates only in external sorts.
	SequenceNumColumn
)

func (k ColumnKind) String() string {
	switch k {
	case SegmentConst:
		return "segment-const"
	case CompressedColumn:
		return "compressed"
	case RowCountColumn:
		return "row-count"
	case SequenceNumColumn:
		return "sequence-number"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Reserved output attribute numbers in a decompression map. Zero entries
// mean "ignore this input column".
const (
	// CountColumnAttno marks the batch row-count metadata column.
	CountColumnAttno = -1
	// SequenceColumnAttno marks the batch sequence-number metadata
	// column.
	SequenceColumnAttno = -2
)

// ColumnDescriptor describes one input batch column: its classification,
// its 1-based position in the input (compressed) tuple, its 1-based
// position in the output (decoded) tuple and the decoded value type.
// Metadata columns have negative output positions and are not
// materialized. Descriptors are built once per operator and shared
// read-only by all batch states.
type ColumnDescriptor struct {
	Kind        ColumnKind
	OutputAttno int
	InputAttno  int
	Type        Type
}

// CompressionInfo is the catalog-derived description of a chunk's
// compressed layout that the operator needs to classify input columns.
type CompressionInfo struct {
	// InputNames names the compressed tuple's columns in input order.
	InputNames []string
	// SegmentBy lists the column names that are constant per batch.
	SegmentBy []string
	// OutputTypes holds the decoded value type of each output column,
	// indexed by output attno - 1.
	OutputTypes []Type
}

func (ci *CompressionInfo) isSegmentBy(name string) bool {
	for _, s := range ci.SegmentBy {
		if s == name {
			return true
		}
	}
	return false
}

// buildDescriptors translates a decompression map into a descriptor
// table. The map is an ordered sequence of output attnos, one per input
// column, with zero meaning the input column is ignored. Input attnos are
// assigned strictly from the 1-based position in the map, including
// skipped entries, so the child scan's tuple layout is preserved.
func buildDescriptors(decompressionMap []int, info CompressionInfo) ([]ColumnDescriptor, int, error) {
	if len(decompressionMap) == 0 {
		return nil, 0, fmt.Errorf("empty decompression map")
	}
	descs := make([]ColumnDescriptor, 0, len(decompressionMap))
	nout := 0
	haveCount := false
	for i, attno := range decompressionMap {
		input := i + 1
		switch {
		case attno == 0:
			continue
		case attno == CountColumnAttno:
			descs = append(descs, ColumnDescriptor{
				Kind:        RowCountColumn,
				OutputAttno: attno,
				InputAttno:  input,
				Type:        TypeInt64,
			})
			haveCount = true
		case attno == SequenceColumnAttno:
			descs = append(descs, ColumnDescriptor{
				Kind:        SequenceNumColumn,
				OutputAttno: attno,
				InputAttno:  input,
				Type:        TypeInt64,
			})
		case attno < 0:
			return nil, 0, fmt.Errorf("unknown metadata column attno %d in decompression map", attno)
		default:
			if attno > len(info.OutputTypes) {
				return nil, 0, fmt.Errorf("output attno %d exceeds output tuple width %d", attno, len(info.OutputTypes))
			}
			kind := CompressedColumn
			if input-1 < len(info.InputNames) && info.isSegmentBy(info.InputNames[input-1]) {
				kind = SegmentConst
			}
			descs = append(descs, ColumnDescriptor{
				Kind:        kind,
				OutputAttno: attno,
				InputAttno:  input,
				Type:        info.OutputTypes[attno-1],
			})
			if attno > nout {
				nout = attno
			}
		}
	}
	if !haveCount {
		return nil, 0, fmt.Errorf("decompression map has no row count column")
	}
	return descs, nout, nil
}
