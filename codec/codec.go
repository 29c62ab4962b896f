// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package codec implements the column compression codecs understood by
// the tsbatch scan operator and the encoders the ingest path uses to
// produce them. Each codec registers itself with the operator's codec
// registry at process start; the operator dispatches on the algorithm id
// stored in the first byte of every compressed column blob.
//
// Every blob shares a common framing: the algorithm id, a uvarint value
// count, a validity bitmap (one bit per value, set for non-null) and a
// codec-specific body encoding the non-null values in order.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cosnicolaou/tsbatch"
)

// Algorithm ids. The id is the first byte of a compressed column blob.
const (
	Array      tsbatch.Algorithm = 1
	DeltaDelta tsbatch.Algorithm = 2
	Gorilla    tsbatch.Algorithm = 3
	RunLength  tsbatch.Algorithm = 4
)

func init() {
	tsbatch.RegisterAlgorithm(Array, "array", func(payload []byte, reverse bool) (tsbatch.DecompressionIterator, error) {
		return newIterator(payload, reverse, newArrayDecoder)
	})
	tsbatch.RegisterAlgorithm(DeltaDelta, "deltadelta", func(payload []byte, reverse bool) (tsbatch.DecompressionIterator, error) {
		return newIterator(payload, reverse, newDeltaDeltaDecoder)
	})
	tsbatch.RegisterAlgorithm(Gorilla, "gorilla", func(payload []byte, reverse bool) (tsbatch.DecompressionIterator, error) {
		return newIterator(payload, reverse, newGorillaDecoder)
	})
	tsbatch.RegisterAlgorithm(RunLength, "runlength", func(payload []byte, reverse bool) (tsbatch.DecompressionIterator, error) {
		return newIterator(payload, reverse, newRunLengthDecoder)
	})
}

// For returns the algorithm the ingest path uses by default for a column
// of type t.
func For(t tsbatch.Type) tsbatch.Algorithm {
	switch t {
	case tsbatch.TypeInt64:
		return DeltaDelta
	case tsbatch.TypeFloat64:
		return Gorilla
	case tsbatch.TypeBool:
		return RunLength
	default:
		return Array
	}
}

// Encode encodes vals as a compressed column blob, algorithm id byte
// included.
func Encode(a tsbatch.Algorithm, t tsbatch.Type, vals []tsbatch.Datum) ([]byte, error) {
	nonNull := make([]tsbatch.Datum, 0, len(vals))
	for _, v := range vals {
		if !v.Null {
			nonNull = append(nonNull, v)
		}
	}
	blob := []byte{byte(a)}
	blob = binary.AppendUvarint(blob, uint64(len(vals)))
	validity := make([]byte, (len(vals)+7)/8)
	for i, v := range vals {
		if !v.Null {
			validity[i/8] |= 1 << (i % 8)
		}
	}
	blob = append(blob, validity...)
	var (
		body []byte
		err  error
	)
	switch a {
	case Array:
		body, err = encodeArray(t, nonNull)
	case DeltaDelta:
		body, err = encodeDeltaDelta(t, nonNull)
	case Gorilla:
		body, err = encodeGorilla(t, nonNull)
	case RunLength:
		body, err = encodeRunLength(t, nonNull)
	default:
		err = fmt.Errorf("cannot encode with algorithm %v", a)
	}
	if err != nil {
		return nil, err
	}
	return append(blob, body...), nil
}

// valueDecoder yields the successive non-null values of a blob's body.
type valueDecoder interface {
	next() (tsbatch.Datum, error)
}

// iterator interleaves nulls from the validity bitmap with the body
// decoder's values, in encoded order.
type iterator struct {
	n        int
	pos      int
	validity []byte
	dec      valueDecoder
}

func (it *iterator) TryNext() (tsbatch.Datum, bool, error) {
	if it.pos >= it.n {
		return tsbatch.Datum{}, true, nil
	}
	i := it.pos
	it.pos++
	if it.validity[i/8]&(1<<(i%8)) == 0 {
		return tsbatch.NullDatum(), false, nil
	}
	v, err := it.dec.next()
	return v, false, err
}

// reverseIterator yields a fully decoded batch column backwards. Reverse
// iteration requires the full forward decode since the codecs are
// delta-style.
type reverseIterator struct {
	vals []tsbatch.Datum
	i    int
}

func (it *reverseIterator) TryNext() (tsbatch.Datum, bool, error) {
	if it.i < 0 {
		return tsbatch.Datum{}, true, nil
	}
	v := it.vals[it.i]
	it.i--
	return v, false, nil
}

func newIterator(payload []byte, reverse bool, mk func(body []byte) (valueDecoder, error)) (tsbatch.DecompressionIterator, error) {
	n64, used := binary.Uvarint(payload)
	if used <= 0 {
		return nil, fmt.Errorf("truncated compressed column header")
	}
	n := int(n64)
	payload = payload[used:]
	vb := (n + 7) / 8
	if len(payload) < vb {
		return nil, fmt.Errorf("truncated validity bitmap: %d values, %d bytes", n, len(payload))
	}
	dec, err := mk(payload[vb:])
	if err != nil {
		return nil, err
	}
	fwd := &iterator{n: n, validity: payload[:vb], dec: dec}
	if !reverse {
		return fwd, nil
	}
	vals := make([]tsbatch.Datum, 0, n)
	for {
		v, done, err := fwd.TryNext()
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		vals = append(vals, v)
	}
	return &reverseIterator{vals: vals, i: len(vals) - 1}, nil
}

// byteReader is a cursor over a codec body.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) uvarint() (uint64, error) {
	v, used := binary.Uvarint(r.buf[r.pos:])
	if used <= 0 {
		return 0, io.ErrUnexpectedEOF
	}
	r.pos += used
	return v, nil
}

func (r *byteReader) varint() (int64, error) {
	v, used := binary.Varint(r.buf[r.pos:])
	if used <= 0 {
		return 0, io.ErrUnexpectedEOF
	}
	r.pos += used
	return v, nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}
