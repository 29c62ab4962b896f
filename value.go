// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package tsbatch implements a scan operator over the compressed row
// batches of a time-series chunk. A chunk stores its rows as a sequence of
// independently compressed batches; the operator decodes them one column
// at a time and, when merge mode is enabled, k-way-merges the batches on a
// sort key so that its output satisfies a downstream ORDER BY without a
// separate sort step.
package tsbatch

import (
	"bytes"
	"fmt"
)

// Type identifies the value type of a column.
type Type uint8

const (
	TypeInt64 Type = iota + 1
	TypeFloat64
	TypeBool
	TypeBytes
)

func (t Type) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeBool:
		return "bool"
	case TypeBytes:
		return "bytes"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Datum is a single column value. The payload field to consult is
// determined by the column's Type; Null overrides the payload entirely.
type Datum struct {
	Int   int64
	Float float64
	Bool  bool
	Bytes []byte
	Null  bool
}

// NullDatum returns the null value.
func NullDatum() Datum { return Datum{Null: true} }

// IntDatum returns an int64 valued datum.
func IntDatum(v int64) Datum { return Datum{Int: v} }

// FloatDatum returns a float64 valued datum.
func FloatDatum(v float64) Datum { return Datum{Float: v} }

// BoolDatum returns a boolean valued datum.
func BoolDatum(v bool) Datum { return Datum{Bool: v} }

// BytesDatum returns a byte-string valued datum. The datum references b.
func BytesDatum(b []byte) Datum { return Datum{Bytes: b} }

// Row is a decoded tuple. Attribute numbers are 1-based, so attribute n
// lives at index n-1.
type Row []Datum

// CompressedRow is one raw row of a chunk's compressed batch table:
// segment-by columns carry their per-batch constant, compressed columns
// carry a blob whose first byte names the compression algorithm, and the
// metadata columns carry the batch row count and sequence number.
type CompressedRow []Datum

// Compare compares two non-null datums of type t, returning a negative,
// zero or positive value as for bytes.Compare. Null handling is the
// caller's concern (see SortKey).
func Compare(t Type, a, b Datum) int {
	switch t {
	case TypeInt64:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		}
		return 0
	case TypeFloat64:
		switch {
		case a.Float < b.Float:
			return -1
		case a.Float > b.Float:
			return 1
		}
		return 0
	case TypeBool:
		switch {
		case !a.Bool && b.Bool:
			return -1
		case a.Bool && !b.Bool:
			return 1
		}
		return 0
	case TypeBytes:
		return bytes.Compare(a.Bytes, b.Bytes)
	}
	return 0
}

// CompareFor returns a comparator closed over t, suitable for use in a
// SortKey.
func CompareFor(t Type) func(a, b Datum) int {
	return func(a, b Datum) int { return Compare(t, a, b) }
}
