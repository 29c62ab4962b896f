// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package codec

import (
	"fmt"
	"math"
	mathbits "math/bits"

	"github.com/cosnicolaou/tsbatch"
	"github.com/cosnicolaou/tsbatch/internal/bitstream"
)

// The gorilla codec XORs consecutive float64 bit patterns and stores only
// the meaningful bits, reusing the previous leading/trailing-zero window
// when it still fits. A value equal to its predecessor costs a single
// bit.

func encodeGorilla(t tsbatch.Type, vals []tsbatch.Datum) ([]byte, error) {
	if t != tsbatch.TypeFloat64 {
		return nil, fmt.Errorf("gorilla requires float64 values, got %v", t)
	}
	var w bitstream.Writer
	var prev uint64
	leading, trailing := -1, -1
	for i, v := range vals {
		cur := math.Float64bits(v.Float)
		if i == 0 {
			w.WriteBits(cur, 64)
			prev = cur
			continue
		}
		xor := prev ^ cur
		prev = cur
		if xor == 0 {
			w.WriteBit(false)
			continue
		}
		w.WriteBit(true)
		lz := mathbits.LeadingZeros64(xor)
		if lz > 31 {
			lz = 31
		}
		tz := mathbits.TrailingZeros64(xor)
		if leading >= 0 && lz >= leading && tz >= trailing {
			// Window reuse.
			w.WriteBit(false)
			w.WriteBits(xor>>trailing, uint(64-leading-trailing))
			continue
		}
		leading, trailing = lz, tz
		sig := 64 - leading - trailing
		w.WriteBit(true)
		w.WriteBits(uint64(leading), 5)
		w.WriteBits(uint64(sig-1), 6)
		w.WriteBits(xor>>trailing, uint(sig))
	}
	return w.Bytes(), nil
}

type gorillaDecoder struct {
	rd       *bitstream.Reader
	pos      int
	prev     uint64
	leading  int
	trailing int
}

func newGorillaDecoder(body []byte) (valueDecoder, error) {
	return &gorillaDecoder{rd: bitstream.NewReader(body)}, nil
}

func (d *gorillaDecoder) next() (tsbatch.Datum, error) {
	if d.pos == 0 {
		d.prev = d.rd.ReadBits64(64)
		d.pos++
		if err := d.rd.Err(); err != nil {
			return tsbatch.Datum{}, err
		}
		return tsbatch.FloatDatum(math.Float64frombits(d.prev)), nil
	}
	d.pos++
	if !d.rd.ReadBit() {
		if err := d.rd.Err(); err != nil {
			return tsbatch.Datum{}, err
		}
		return tsbatch.FloatDatum(math.Float64frombits(d.prev)), nil
	}
	if d.rd.ReadBit() {
		d.leading = d.rd.ReadBits(5)
		d.trailing = 64 - d.leading - (d.rd.ReadBits(6) + 1)
	}
	sig := 64 - d.leading - d.trailing
	xor := d.rd.ReadBits64(uint(sig)) << d.trailing
	if err := d.rd.Err(); err != nil {
		return tsbatch.Datum{}, err
	}
	d.prev ^= xor
	return tsbatch.FloatDatum(math.Float64frombits(d.prev)), nil
}
