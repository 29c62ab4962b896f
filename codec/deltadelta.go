// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/cosnicolaou/tsbatch"
)

// The deltadelta codec encodes int64 values as the delta of consecutive
// deltas, zigzag-varint packed. Timestamps sampled at a fixed interval
// collapse to a run of zeros.

func encodeDeltaDelta(t tsbatch.Type, vals []tsbatch.Datum) ([]byte, error) {
	if t != tsbatch.TypeInt64 {
		return nil, fmt.Errorf("deltadelta requires int64 values, got %v", t)
	}
	var body []byte
	var prev, prevDelta int64
	for i, v := range vals {
		switch i {
		case 0:
			body = binary.AppendVarint(body, v.Int)
		case 1:
			prevDelta = v.Int - prev
			body = binary.AppendVarint(body, prevDelta)
		default:
			delta := v.Int - prev
			body = binary.AppendVarint(body, delta-prevDelta)
			prevDelta = delta
		}
		prev = v.Int
	}
	return body, nil
}

type deltaDeltaDecoder struct {
	rd    byteReader
	pos   int
	prev  int64
	delta int64
}

func newDeltaDeltaDecoder(body []byte) (valueDecoder, error) {
	return &deltaDeltaDecoder{rd: byteReader{buf: body}}, nil
}

func (d *deltaDeltaDecoder) next() (tsbatch.Datum, error) {
	v, err := d.rd.varint()
	if err != nil {
		return tsbatch.Datum{}, err
	}
	switch d.pos {
	case 0:
		d.prev = v
	case 1:
		d.delta = v
		d.prev += v
	default:
		d.delta += v
		d.prev += d.delta
	}
	d.pos++
	return tsbatch.IntDatum(d.prev), nil
}
