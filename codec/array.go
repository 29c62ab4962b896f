// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cosnicolaou/tsbatch"
)

// The array codec stores values uncompressed: a type byte followed by the
// values in their natural variable-length encoding. It is the fallback
// for types no specialized codec covers.

func encodeArray(t tsbatch.Type, vals []tsbatch.Datum) ([]byte, error) {
	body := []byte{byte(t)}
	for _, v := range vals {
		var err error
		body, err = appendValue(body, t, v)
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

func appendValue(body []byte, t tsbatch.Type, v tsbatch.Datum) ([]byte, error) {
	switch t {
	case tsbatch.TypeInt64:
		return binary.AppendVarint(body, v.Int), nil
	case tsbatch.TypeFloat64:
		return binary.LittleEndian.AppendUint64(body, math.Float64bits(v.Float)), nil
	case tsbatch.TypeBool:
		if v.Bool {
			return append(body, 1), nil
		}
		return append(body, 0), nil
	case tsbatch.TypeBytes:
		body = binary.AppendUvarint(body, uint64(len(v.Bytes)))
		return append(body, v.Bytes...), nil
	}
	return nil, fmt.Errorf("cannot encode values of type %v", t)
}

type arrayDecoder struct {
	typ tsbatch.Type
	rd  byteReader
}

func newArrayDecoder(body []byte) (valueDecoder, error) {
	rd := byteReader{buf: body}
	tb, err := rd.byte()
	if err != nil {
		return nil, err
	}
	return &arrayDecoder{typ: tsbatch.Type(tb), rd: rd}, nil
}

func (d *arrayDecoder) next() (tsbatch.Datum, error) {
	return readValue(&d.rd, d.typ)
}

func readValue(rd *byteReader, t tsbatch.Type) (tsbatch.Datum, error) {
	switch t {
	case tsbatch.TypeInt64:
		v, err := rd.varint()
		if err != nil {
			return tsbatch.Datum{}, err
		}
		return tsbatch.IntDatum(v), nil
	case tsbatch.TypeFloat64:
		b, err := rd.bytes(8)
		if err != nil {
			return tsbatch.Datum{}, err
		}
		return tsbatch.FloatDatum(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
	case tsbatch.TypeBool:
		b, err := rd.byte()
		if err != nil {
			return tsbatch.Datum{}, err
		}
		return tsbatch.BoolDatum(b != 0), nil
	case tsbatch.TypeBytes:
		n, err := rd.uvarint()
		if err != nil {
			return tsbatch.Datum{}, err
		}
		b, err := rd.bytes(int(n))
		if err != nil {
			return tsbatch.Datum{}, err
		}
		return tsbatch.BytesDatum(b), nil
	}
	return tsbatch.Datum{}, fmt.Errorf("cannot decode values of type %v", t)
}
