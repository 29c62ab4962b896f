// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package tsbatch

import (
	"context"
	"fmt"
)

// defaultHeapCapacity is the merge heap's starting capacity; the heap
// doubles whenever an insert finds it full.
const defaultHeapCapacity = 32

// SortKey describes one column of the requested output order. Compare is
// applied to the attribute at Attno of two decoded rows and must return a
// negative, zero or positive value for the column's natural ascending
// order; Descending and NullsFirst adjust it to the query's ORDER BY.
type SortKey struct {
	Attno      int
	Compare    func(a, b Datum) int
	Descending bool
	NullsFirst bool
}

// compareKey orders two datums under a single sort key.
func compareKey(k SortKey, a, b Datum) int {
	if a.Null || b.Null {
		switch {
		case a.Null && b.Null:
			return 0
		case a.Null:
			if k.NullsFirst {
				return -1
			}
			return 1
		default:
			if k.NullsFirst {
				return 1
			}
			return -1
		}
	}
	c := k.Compare(a, b)
	if k.Descending {
		return -c
	}
	return c
}

// slotHeap is a binary heap of batch slot numbers. The comparator result
// is the inverse of the user sort order, and the heap keeps the largest
// element per that comparator on top, so the top slot is the batch whose
// current decoded row is smallest under the query ORDER BY. The heap owns
// no tuples, only slot numbers; ids are inserted unordered and ordered in
// linear time by build.
type slotHeap struct {
	ids []SlotNumber
	cmp func(a, b SlotNumber) int
}

func newSlotHeap(capacity int, cmp func(a, b SlotNumber) int) *slotHeap {
	if capacity <= 0 {
		capacity = defaultHeapCapacity
	}
	return &slotHeap{ids: make([]SlotNumber, 0, capacity), cmp: cmp}
}

// addUnordered appends an id without restoring heap order; call build
// once all ids are added. Capacity doubles when the heap is full.
func (h *slotHeap) addUnordered(id SlotNumber) {
	if len(h.ids) == cap(h.ids) {
		grown := make([]SlotNumber, len(h.ids), 2*cap(h.ids))
		copy(grown, h.ids)
		h.ids = grown
	}
	h.ids = append(h.ids, id)
}

// build establishes the heap property over all ids in linear time.
func (h *slotHeap) build() {
	for i := len(h.ids)/2 - 1; i >= 0; i-- {
		h.siftDown(i)
	}
}

func (h *slotHeap) empty() bool { return len(h.ids) == 0 }

func (h *slotHeap) peek() SlotNumber { return h.ids[0] }

// replaceTop restores the heap property after the top slot's current row
// changed.
func (h *slotHeap) replaceTop() { h.siftDown(0) }

func (h *slotHeap) removeTop() {
	n := len(h.ids) - 1
	h.ids[0] = h.ids[n]
	h.ids = h.ids[:n]
	if n > 0 {
		h.siftDown(0)
	}
}

func (h *slotHeap) siftDown(i int) {
	for {
		left := 2*i + 1
		if left >= len(h.ids) {
			return
		}
		largest := left
		if right := left + 1; right < len(h.ids) && h.cmp(h.ids[right], h.ids[left]) > 0 {
			largest = right
		}
		if h.cmp(h.ids[i], h.ids[largest]) >= 0 {
			return
		}
		h.ids[i], h.ids[largest] = h.ids[largest], h.ids[i]
		i = largest
	}
}

// compareSlots orders two pool slots by applying the sort keys to their
// current decoded rows and inverting the sign, so the heap surfaces the
// smallest row under the query order. Both slots must hold a non-empty
// decoded row.
func (s *Scanner) compareSlots(a, b SlotNumber) int {
	ba, bb := s.pool.get(a), s.pool.get(b)
	if ba.outEmpty || bb.outEmpty {
		panic(fmt.Sprintf("merge comparator applied to empty batch output (slots %d, %d)", a, b))
	}
	for _, k := range s.cfg.SortKeys {
		if c := compareKey(k, ba.out[k.Attno-1], bb.out[k.Attno-1]); c != 0 {
			return -c
		}
	}
	return 0
}

// initMerge pulls every batch row from the child scan, opens a batch
// state per batch, decodes the first row of each and builds the merge
// heap. Batches whose row count is zero are filtered before a pool slot
// is allocated.
func (s *Scanner) initMerge(ctx context.Context) error {
	for s.src.Scan(ctx) {
		row := s.src.Row()
		if err := s.checkRow(row); err != nil {
			return err
		}
		cnt := row[s.countInput-1]
		if cnt.Null {
			return ErrNullRowCount
		}
		if cnt.Int == 0 {
			continue
		}
		id := s.pool.allocate()
		b := s.pool.get(id)
		if err := b.open(row, s.descs, s.cfg.Reverse); err != nil {
			s.pool.release(id)
			return err
		}
		ok, err := b.decodeNext(s.descs)
		if err != nil {
			s.pool.release(id)
			return err
		}
		if !ok {
			s.pool.release(id)
			continue
		}
		if s.heap == nil {
			s.heap = newSlotHeap(s.heapCapacity, s.compareSlots)
		}
		s.heap.addUnordered(id)
	}
	if err := s.src.Err(); err != nil {
		return err
	}
	if s.heap != nil {
		s.heap.build()
	}
	return nil
}

// nextMerge returns the globally smallest undelivered row across all open
// batches. The top batch is advanced lazily on the following call so the
// returned slot stays stable until then.
func (s *Scanner) nextMerge(ctx context.Context) (Row, error) {
	if s.state == scanInit {
		if err := s.initMerge(ctx); err != nil {
			return nil, err
		}
		s.state = scanStreaming
	}
	if s.advance {
		s.advance = false
		top := s.heap.peek()
		b := s.pool.get(top)
		ok, err := b.decodeNext(s.descs)
		if err != nil {
			return nil, err
		}
		if ok {
			s.heap.replaceTop()
		} else {
			s.heap.removeTop()
			s.pool.release(top)
		}
	}
	if s.heap == nil || s.heap.empty() {
		return nil, nil
	}
	s.advance = true
	return s.pool.get(s.heap.peek()).out, nil
}
