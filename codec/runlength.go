// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/cosnicolaou/tsbatch"
)

// The runlength codec stores runs of equal values as a uvarint repeat
// count followed by the value. Booleans and low-cardinality tag columns
// compress well.

func encodeRunLength(t tsbatch.Type, vals []tsbatch.Datum) ([]byte, error) {
	body := []byte{byte(t)}
	for i := 0; i < len(vals); {
		j := i + 1
		for j < len(vals) && sameValue(t, vals[i], vals[j]) {
			j++
		}
		body = binary.AppendUvarint(body, uint64(j-i))
		var err error
		body, err = appendValue(body, t, vals[i])
		if err != nil {
			return nil, err
		}
		i = j
	}
	return body, nil
}

func sameValue(t tsbatch.Type, a, b tsbatch.Datum) bool {
	switch t {
	case tsbatch.TypeInt64:
		return a.Int == b.Int
	case tsbatch.TypeFloat64:
		return a.Float == b.Float
	case tsbatch.TypeBool:
		return a.Bool == b.Bool
	case tsbatch.TypeBytes:
		return bytes.Equal(a.Bytes, b.Bytes)
	}
	return false
}

type runLengthDecoder struct {
	typ  tsbatch.Type
	rd   byteReader
	val  tsbatch.Datum
	left uint64
}

func newRunLengthDecoder(body []byte) (valueDecoder, error) {
	rd := byteReader{buf: body}
	tb, err := rd.byte()
	if err != nil {
		return nil, err
	}
	return &runLengthDecoder{typ: tsbatch.Type(tb), rd: rd}, nil
}

func (d *runLengthDecoder) next() (tsbatch.Datum, error) {
	if d.left == 0 {
		n, err := d.rd.uvarint()
		if err != nil {
			return tsbatch.Datum{}, err
		}
		v, err := readValue(&d.rd, d.typ)
		if err != nil {
			return tsbatch.Datum{}, err
		}
		d.left, d.val = n, v
	}
	d.left--
	return d.val, nil
}
