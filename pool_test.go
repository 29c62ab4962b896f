// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package tsbatch

import "testing"

func poolDescs() ([]ColumnDescriptor, int) {
	descs, nout, err := buildDescriptors(testMap, testInfo)
	if err != nil {
		panic(err)
	}
	return descs, nout
}

// checkPoolInvariant verifies that the free set and the live set
// partition [0, capacity).
func checkPoolInvariant(t *testing.T, p *batchPool, live map[SlotNumber]bool) {
	t.Helper()
	for i := 0; i < p.capacity(); i++ {
		free := p.free.test(i)
		if free == live[SlotNumber(i)] {
			t.Fatalf("slot %v: free=%v, live=%v", i, free, live[SlotNumber(i)])
		}
	}
}

func TestPoolAllocateRelease(t *testing.T) {
	descs, nout := poolDescs()
	p := newBatchPool(descs, nout, 4)
	if got, want := p.capacity(), 4; got != want {
		t.Fatalf("capacity %v, want %v", got, want)
	}
	live := map[SlotNumber]bool{}
	// Allocation returns the lowest free id.
	for i := 0; i < 4; i++ {
		id := p.allocate()
		if got, want := id, SlotNumber(i); got != want {
			t.Errorf("allocate %v, want %v", got, want)
		}
		live[id] = true
		checkPoolInvariant(t, p, live)
	}
	p.release(1)
	delete(live, 1)
	checkPoolInvariant(t, p, live)
	if got, want := p.allocate(), SlotNumber(1); got != want {
		t.Errorf("allocate after release: %v, want %v", got, want)
	}
	live[1] = true
	checkPoolInvariant(t, p, live)
}

func TestPoolGrowthStep(t *testing.T) {
	descs, nout := poolDescs()
	p := newBatchPool(descs, nout, 2)
	a, b := p.allocate(), p.allocate()
	// Pool exhausted: the next allocation grows by the step constant and
	// existing slot ids remain valid.
	sa, sb := p.get(a), p.get(b)
	c := p.allocate()
	if got, want := p.capacity(), 2+initialBatchCapacity; got != want {
		t.Errorf("capacity %v, want %v", got, want)
	}
	if got, want := c, SlotNumber(2); got != want {
		t.Errorf("allocate %v, want %v", got, want)
	}
	if p.get(a) != sa || p.get(b) != sb {
		t.Errorf("growth moved existing slots")
	}
}

func TestPoolReleaseIdempotent(t *testing.T) {
	descs, nout := poolDescs()
	p := newBatchPool(descs, nout, 2)
	id := p.allocate()
	p.release(id)
	p.release(id)
	checkPoolInvariant(t, p, map[SlotNumber]bool{})
	if got, want := p.allocate(), id; got != want {
		t.Errorf("allocate %v, want %v", got, want)
	}
}

func TestPoolReleaseAll(t *testing.T) {
	descs, nout := poolDescs()
	p := newBatchPool(descs, nout, 3)
	for i := 0; i < 3; i++ {
		p.allocate()
	}
	p.releaseAll()
	checkPoolInvariant(t, p, map[SlotNumber]bool{})
	if got, want := p.capacity(), 3; got != want {
		t.Errorf("capacity %v, want %v (pool must not shrink)", got, want)
	}
}

func TestFreeSetLowest(t *testing.T) {
	f := make(freeSet, 2)
	if got := f.lowest(); got != -1 {
		t.Errorf("empty set lowest %v, want -1", got)
	}
	f.set(70)
	f.set(3)
	if got := f.lowest(); got != 3 {
		t.Errorf("lowest %v, want 3", got)
	}
	f.clear(3)
	if got := f.lowest(); got != 70 {
		t.Errorf("lowest %v, want 70", got)
	}
}
