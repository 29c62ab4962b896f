// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package tsbatch

import (
	"math/rand"
	"sort"
	"testing"
)

// heapSorted drains a slotHeap built over vals, returning ids in heap
// order.
func heapSorted(vals map[SlotNumber]int, order []SlotNumber, capacity int) []SlotNumber {
	// Inverted comparator, as the merge driver uses: the heap surfaces
	// the smallest value.
	cmp := func(a, b SlotNumber) int { return vals[b] - vals[a] }
	h := newSlotHeap(capacity, cmp)
	for _, id := range order {
		h.addUnordered(id)
	}
	h.build()
	var out []SlotNumber
	for !h.empty() {
		out = append(out, h.peek())
		h.removeTop()
	}
	return out
}

func TestSlotHeapOrdering(t *testing.T) {
	gen := rand.New(rand.NewSource(0x1234))
	for round := 0; round < 10; round++ {
		n := 1 + gen.Intn(100)
		vals := map[SlotNumber]int{}
		var order []SlotNumber
		for i := 0; i < n; i++ {
			vals[SlotNumber(i)] = gen.Intn(50)
			order = append(order, SlotNumber(i))
		}
		got := heapSorted(vals, order, 4)
		if len(got) != n {
			t.Fatalf("drained %v ids, want %v", len(got), n)
		}
		for i := 1; i < n; i++ {
			if vals[got[i-1]] > vals[got[i]] {
				t.Fatalf("round %v: heap order violated at %v", round, i)
			}
		}
	}
}

func TestSlotHeapReplaceTop(t *testing.T) {
	vals := map[SlotNumber]int{0: 1, 1: 5, 2: 9}
	cmp := func(a, b SlotNumber) int { return vals[b] - vals[a] }
	h := newSlotHeap(0, cmp)
	for id := range vals {
		h.addUnordered(id)
	}
	h.build()
	if got := h.peek(); got != 0 {
		t.Fatalf("top %v, want 0", got)
	}
	// Advancing the top batch to a larger value sifts it down.
	vals[0] = 7
	h.replaceTop()
	if got := h.peek(); got != 1 {
		t.Errorf("top %v, want 1", got)
	}
}

func TestSlotHeapGrowth(t *testing.T) {
	vals := map[SlotNumber]int{}
	var order []SlotNumber
	for i := 0; i < 2*defaultHeapCapacity+1; i++ {
		vals[SlotNumber(i)] = i
		order = append(order, SlotNumber(i))
	}
	got := heapSorted(vals, order, 0)
	if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }) {
		t.Errorf("heap order violated after growth: %v", got)
	}
}

func TestCompareKeyNulls(t *testing.T) {
	asc := SortKey{Attno: 1, Compare: CompareFor(TypeInt64)}
	null, one := NullDatum(), IntDatum(1)
	for _, tc := range []struct {
		name       string
		key        SortKey
		a, b       Datum
		want       int
	}{
		{"nulls last, null vs value", asc, null, one, 1},
		{"nulls last, value vs null", asc, one, null, -1},
		{"null vs null", asc, null, null, 0},
		{"nulls first, null vs value", SortKey{Attno: 1, Compare: CompareFor(TypeInt64), NullsFirst: true}, null, one, -1},
		{"descending values", SortKey{Attno: 1, Compare: CompareFor(TypeInt64), Descending: true}, IntDatum(2), one, -1},
	} {
		got := compareKey(tc.key, tc.a, tc.b)
		if (got < 0) != (tc.want < 0) || (got == 0) != (tc.want == 0) {
			t.Errorf("%v: got %v, want sign of %v", tc.name, got, tc.want)
		}
	}
}
