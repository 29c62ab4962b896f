// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package chunkfile reads and writes the on-disk representation of a
// compressed chunk: the rows of its compressed batch table, serialized
// against a fixed column schema and block-compressed as a whole. The
// package's Scanner is the scan operator's child scan.
//
// Layout: the magic number and a version byte, the column schema (count
// and a type byte per column), the block compression name, the row count,
// the uncompressed body size and the compressed body. Rows are serialized
// back to back in the body, one presence byte and a type-driven payload
// per column.
package chunkfile

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cosnicolaou/tsbatch"
)

// FileMagic identifies a chunk file.
var FileMagic = []byte{'T', 'S', 'B', 'C'}

const fileVersion = 1

func appendDatum(buf []byte, t tsbatch.Type, v tsbatch.Datum) ([]byte, error) {
	if v.Null {
		return append(buf, 0), nil
	}
	buf = append(buf, 1)
	switch t {
	case tsbatch.TypeInt64:
		return binary.AppendVarint(buf, v.Int), nil
	case tsbatch.TypeFloat64:
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float)), nil
	case tsbatch.TypeBool:
		if v.Bool {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case tsbatch.TypeBytes:
		buf = binary.AppendUvarint(buf, uint64(len(v.Bytes)))
		return append(buf, v.Bytes...), nil
	}
	return nil, fmt.Errorf("cannot serialize values of type %v", t)
}

func readDatum(buf []byte, t tsbatch.Type) (tsbatch.Datum, []byte, error) {
	if len(buf) == 0 {
		return tsbatch.Datum{}, nil, fmt.Errorf("truncated row")
	}
	present := buf[0]
	buf = buf[1:]
	if present == 0 {
		return tsbatch.NullDatum(), buf, nil
	}
	switch t {
	case tsbatch.TypeInt64:
		v, used := binary.Varint(buf)
		if used <= 0 {
			return tsbatch.Datum{}, nil, fmt.Errorf("truncated int64 value")
		}
		return tsbatch.IntDatum(v), buf[used:], nil
	case tsbatch.TypeFloat64:
		if len(buf) < 8 {
			return tsbatch.Datum{}, nil, fmt.Errorf("truncated float64 value")
		}
		return tsbatch.FloatDatum(math.Float64frombits(binary.LittleEndian.Uint64(buf))), buf[8:], nil
	case tsbatch.TypeBool:
		return tsbatch.BoolDatum(buf[0] != 0), buf[1:], nil
	case tsbatch.TypeBytes:
		n, used := binary.Uvarint(buf)
		if used <= 0 {
			return tsbatch.Datum{}, nil, fmt.Errorf("truncated bytes length")
		}
		buf = buf[used:]
		if uint64(len(buf)) < n {
			return tsbatch.Datum{}, nil, fmt.Errorf("truncated bytes value")
		}
		return tsbatch.BytesDatum(buf[:n:n]), buf[n:], nil
	}
	return tsbatch.Datum{}, nil, fmt.Errorf("cannot deserialize values of type %v", t)
}

