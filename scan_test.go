// scan_test.go: unit tests for the lazy per-chain scan cursor
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import "testing"

// buildChain links three fresh slots head->mid->tail in store s and returns
// their indices in head-to-tail order.
func buildChain(t *testing.T, s *store[int, string, struct{}]) (head, mid, tail uint32) {
	t.Helper()
	var idxs [3]uint32
	for i, k := range []int{1, 2, 3} {
		h := s.hash(k)
		_, idx, _ := s.insert(newEntry[int, string, struct{}](k, h, "v", struct{}{}, cidWindow))
		idxs[i] = idx
	}
	// Link as a chain: idxs[0] (head) -> idxs[1] -> idxs[2] (tail).
	e0, _ := s.getIndex(idxs[0])
	e1, _ := s.getIndex(idxs[1])
	e2, _ := s.getIndex(idxs[2])
	e0.tail = idxs[1]
	e1.head = idxs[0]
	e1.tail = idxs[2]
	e2.head = idxs[1]
	return idxs[0], idxs[1], idxs[2]
}

func TestScanCursor_WalksToTailThenStops(t *testing.T) {
	s := newStore[int, string, struct{}](4)
	head, mid, tail := buildChain(t, s)

	var visited []uint32
	c := newScanCursor[int, string, struct{}]()
	c.setScanFn(func(e *entry[int, string, struct{}]) {
		idx := s.indexFromEntry(e)
		visited = append(visited, idx)
	})
	c.startScan(head)
	if !c.isRunning() {
		t.Fatal("cursor should start running from a non-empty head")
	}

	c.applyNext(s) // touches head
	c.applyNext(s) // touches mid
	c.applyNext(s) // touches tail, then stops (tail.tail == noSlot)

	if len(visited) != 3 || visited[0] != head || visited[1] != mid || visited[2] != tail {
		t.Fatalf("visited = %v, want [%d %d %d]", visited, head, mid, tail)
	}
	if c.isRunning() {
		t.Error("cursor should stop once it walks off the tail")
	}
}

func TestScanCursor_CheckAndNextAdvancesPastCurrent(t *testing.T) {
	s := newStore[int, string, struct{}](4)
	head, mid, _ := buildChain(t, s)

	c := newScanCursor[int, string, struct{}]()
	c.startScan(head)

	c.checkAndNext(s, head)
	if c.last != mid {
		t.Errorf("checkAndNext should advance the cursor off the unlinked slot; last=%d want %d", c.last, mid)
	}

	// A checkAndNext for an index the cursor is NOT sitting on is a no-op.
	c.checkAndNext(s, 9999)
	if c.last != mid {
		t.Errorf("checkAndNext on an unrelated index should not move the cursor; last=%d want %d", c.last, mid)
	}
}

func TestScanCursor_StopOnEmptyHead(t *testing.T) {
	c := newScanCursor[int, string, struct{}]()
	c.startScan(noSlot)
	if c.isRunning() {
		t.Error("starting a scan on an empty chain should not run")
	}
}

func TestScanCursor_ApplyRawDoesNotMoveCursor(t *testing.T) {
	s := newStore[int, string, struct{}](4)
	head, _, _ := buildChain(t, s)

	var touched int
	c := newScanCursor[int, string, struct{}]()
	c.setScanFn(func(e *entry[int, string, struct{}]) { touched++ })
	c.startScan(head)

	e, _ := s.getIndex(head)
	c.applyRaw(e)
	if touched != 1 {
		t.Errorf("applyRaw should invoke the callback once, got %d", touched)
	}
	if c.last != head {
		t.Errorf("applyRaw must not move the cursor; last=%d want %d", c.last, head)
	}
}
