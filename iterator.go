// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package tsbatch

import "fmt"

// Algorithm identifies a compression codec. The algorithm id is stored as
// the first byte of every compressed column blob.
type Algorithm uint8

// DecompressionIterator is a pull iterator over the decoded values of one
// compressed column of one batch. Iterators are finite, forward-only and
// not restartable: once done is returned true no further calls may be
// made. An iterator constructed with the opposite direction over the same
// blob yields the reverse sequence.
type DecompressionIterator interface {
	// TryNext returns the next decoded value. done is true once the
	// stream is exhausted, in which case the returned datum is
	// meaningless.
	TryNext() (v Datum, done bool, err error)
}

// IteratorFactory constructs a DecompressionIterator over the payload of
// a compressed column blob (the bytes following the algorithm id byte).
// reverse requests the reverse of the encoded order.
type IteratorFactory func(payload []byte, reverse bool) (DecompressionIterator, error)

type registeredAlgorithm struct {
	name string
	fn   IteratorFactory
}

var algorithms [256]registeredAlgorithm

// RegisterAlgorithm registers a codec implementation for the supplied
// algorithm id. Registration happens at process start (typically from the
// codec package's init); it is not safe to call once iterators are being
// constructed. Registering the same id twice panics.
func RegisterAlgorithm(a Algorithm, name string, fn IteratorFactory) {
	if algorithms[a].fn != nil {
		panic(fmt.Sprintf("compression algorithm %d (%s) already registered", a, algorithms[a].name))
	}
	algorithms[a] = registeredAlgorithm{name: name, fn: fn}
}

func (a Algorithm) String() string {
	if r := algorithms[a]; r.fn != nil {
		return r.name
	}
	return fmt.Sprintf("algorithm(%d)", uint8(a))
}

// NewIterator constructs a decompression iterator for a compressed column
// blob, dispatching on the algorithm id in the blob's first byte.
func NewIterator(blob []byte, reverse bool) (DecompressionIterator, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty compressed column blob")
	}
	r := algorithms[blob[0]]
	if r.fn == nil {
		return nil, fmt.Errorf("unknown compression algorithm: %d", blob[0])
	}
	return r.fn(blob[1:], reverse)
}
