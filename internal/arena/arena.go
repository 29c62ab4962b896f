// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package arena implements a region allocator whose lifetime is bounded
// by one compressed batch: everything allocated from an arena is freed at
// once by Reset.
package arena

const (
	initialChunkSize = 4 * 1024
	maxChunkSize     = 256 * 1024
)

// Arena is a bump allocator backed by a chain of byte chunks. The zero
// value is ready to use.
type Arena struct {
	cur  []byte
	used int
	full [][]byte
	next int
}

// Alloc returns n bytes of zeroed scratch space owned by the arena.
func (a *Arena) Alloc(n int) []byte {
	if a.used+n > len(a.cur) {
		a.grow(n)
	}
	b := a.cur[a.used : a.used+n : a.used+n]
	a.used += n
	return b
}

// Copy copies b into the arena and returns the copy.
func (a *Arena) Copy(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := a.Alloc(len(b))
	copy(c, b)
	return c
}

func (a *Arena) grow(n int) {
	if a.cur != nil {
		a.full = append(a.full, a.cur)
	}
	if a.next == 0 {
		a.next = initialChunkSize
	}
	for a.next < n {
		a.next *= 2
	}
	a.cur = make([]byte, a.next)
	a.used = 0
	if a.next < maxChunkSize {
		a.next *= 2
	}
}

// Reset frees everything allocated from the arena, retaining the most
// recent chunk for reuse.
func (a *Arena) Reset() {
	for i := range a.cur[:a.used] {
		a.cur[i] = 0
	}
	a.used = 0
	a.full = nil
}
