// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package internal

import "math/rand"

// Seed for the pseudorandom generator, shared by tests that need to
// agree on generated data.
const fixedRandSeed = 0x1234

// GenPredictableInt64s generates a monotonic int64 series with
// deterministic jitter, starting from a fixed known seed.
func GenPredictableInt64s(n int, start, step int64) []int64 {
	gen := rand.New(rand.NewSource(fixedRandSeed))
	out := make([]int64, n)
	v := start
	for i := range out {
		out[i] = v
		v += step + gen.Int63n(step+1)
	}
	return out
}

// GenPredictableFloats generates a slowly varying float64 series
// starting from a fixed known seed.
func GenPredictableFloats(n int) []float64 {
	gen := rand.New(rand.NewSource(fixedRandSeed))
	out := make([]float64, n)
	v := 20.0
	for i := range out {
		out[i] = v
		v += gen.Float64() - 0.5
	}
	return out
}

// GenPredictableBytes generates random byte strings starting with a
// fixed known seed.
func GenPredictableBytes(n, size int) [][]byte {
	gen := rand.New(rand.NewSource(fixedRandSeed))
	out := make([][]byte, n)
	for i := range out {
		b := make([]byte, size)
		for j := range b {
			b[j] = byte(gen.Intn(256))
		}
		out[i] = b
	}
	return out
}
