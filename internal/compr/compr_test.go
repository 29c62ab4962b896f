// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package compr

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	gen := rand.New(rand.NewSource(0x1234))
	data := make([]byte, 64*1024)
	for i := range data {
		// Compressible but not trivial: a 4 KiB block of random nibbles
		// repeated throughout, so both entropy coding (zstd) and match
		// finding alone (s2) can shrink it.
		if i < 4096 {
			data[i] = byte(gen.Intn(16))
		} else {
			data[i] = data[i-4096]
		}
	}
	for _, name := range []string{"zstd", "s2"} {
		comp := Compression(name)
		dec := Decompression(name)
		if comp == nil || dec == nil {
			t.Fatalf("%v: not registered", name)
		}
		if got := comp.Name(); got != name {
			t.Errorf("Name: %v, want %v", got, name)
		}
		compressed := comp.Compress(data, nil)
		if len(compressed) >= len(data) {
			t.Errorf("%v: did not compress: %v -> %v", name, len(data), len(compressed))
		}
		out := make([]byte, len(data))
		if err := dec.Decompress(compressed, out); err != nil {
			t.Fatalf("%v: Decompress: %v", name, err)
		}
		if !bytes.Equal(out, data) {
			t.Errorf("%v: round trip mismatch", name)
		}
		// A wrongly sized destination is an error.
		if err := dec.Decompress(compressed, make([]byte, len(data)-1)); err == nil {
			t.Errorf("%v: short destination accepted", name)
		}
	}
}

func TestUnknown(t *testing.T) {
	if Compression("lzma") != nil || Decompression("lzma") != nil {
		t.Errorf("unknown algorithm returned an implementation")
	}
}
