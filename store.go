// store.go: fixed-capacity, index-stable associative container
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

// Package mnemosyne implements a single-threaded, in-memory cache core built
// around one shared, index-stable backing store and three composable
// admission/eviction policies — LRU, SLRU and S-W-TinyLFU — that can all
// live on top of the same store at once, distinguished only by the tag each
// policy stamps on the slots it owns.
//
// Callers are expected to external-serialize access: nothing here takes a
// lock, spawns a goroutine, or blocks.
package mnemosyne

import (
	"unsafe"

	"github.com/dolthub/maphash"
)

// store is a fixed-capacity, open-addressed map from K to entry[K,V,M] that
// hands out stable slot indices. An entry obtained from insert/get remains
// valid at the same index for as long as the slot stays occupied — the
// store never grows and never reshuffles live entries.
type store[K comparable, V any, M any] struct {
	slots  []entry[K, V, M]
	used   int
	hasher maphash.Hasher[K]
}

func newStore[K comparable, V any, M any](capacity int) *store[K, V, M] {
	if capacity < 1 {
		capacity = 1
	}
	return &store[K, V, M]{
		slots:  make([]entry[K, V, M], capacity),
		hasher: maphash.NewHasher[K](),
	}
}

func (s *store[K, V, M]) capacity() int { return len(s.slots) }
func (s *store[K, V, M]) len() int      { return s.used }

func (s *store[K, V, M]) hash(key K) uint64 {
	return s.hasher.Hash(key)
}

// getFull looks a key up using the hasher, returning its slot index and a
// pointer to the live entry, or ok=false if the key is absent.
func (s *store[K, V, M]) getFull(key K) (idx uint32, e *entry[K, V, M], ok bool) {
	h := s.hash(key)
	cap64 := uint64(len(s.slots))
	start := h % cap64
	for i := uint64(0); i < cap64; i++ {
		at := (start + i) % cap64
		slot := &s.slots[at]
		if !slot.alive() {
			return 0, nil, false
		}
		if slot.hash == h && slot.key == key {
			return uint32(at), slot, true
		}
	}
	return 0, nil, false
}

// getIndex returns the entry at idx, or ok=false if idx is out of range or
// the slot is empty.
func (s *store[K, V, M]) getIndex(idx uint32) (*entry[K, V, M], bool) {
	if int(idx) >= len(s.slots) {
		return nil, false
	}
	slot := &s.slots[idx]
	if !slot.alive() {
		return nil, false
	}
	return slot, true
}

// indexFromEntry is the inverse of getIndex: given a pointer returned by
// this store, recover its slot index. The pointer must have come from this
// store; that precondition is the caller's responsibility, matching the
// source library's unsafe `index_from_entry`.
func (s *store[K, V, M]) indexFromEntry(e *entry[K, V, M]) uint32 {
	base := unsafe.Pointer(&s.slots[0])
	ep := unsafe.Pointer(e)
	width := unsafe.Sizeof(s.slots[0])
	return uint32((uintptr(ep) - uintptr(base)) / width)
}

// insert places newEntry into the table. It never grows and never
// reshuffles a live neighbor: at most one existing slot is overwritten, and
// its prior live contents (if any) are handed back as clash.
//
// The target slot is chosen by probing, starting at hash%capacity, for
// either an empty slot or a slot whose occupant carries the same full hash
// (a "strong" collision — by construction the same key, since this store
// never stores two live entries under equal hashes for distinct keys without
// one evicting the other). If the whole table is scanned without finding
// either, and the table is already at capacity, a second pass looks for any
// slot whose occupant's hash reduces to the same value modulo capacity; if
// no occupant does, the home slot (hash%capacity) is overwritten. Either way
// a (rare) non-LRU eviction is traded for the guarantee that insert never
// fails.
func (s *store[K, V, M]) insert(newEntry entry[K, V, M]) (clash *entry[K, V, M], idx uint32, stored *entry[K, V, M]) {
	cap64 := uint64(len(s.slots))
	h := newEntry.hash
	start := h % cap64

	target, found := s.probe(start, func(slot *entry[K, V, M]) bool {
		return !slot.alive() || slot.hash == h
	})

	if !found && s.used >= len(s.slots) {
		weak := h % cap64
		target, found = s.probe(start, func(slot *entry[K, V, M]) bool {
			return !slot.alive() || slot.hash%cap64 == weak
		})
		if !found {
			// Every residue differs: force the collision onto the home slot.
			target = uint32(start)
		}
	}

	slot := &s.slots[target]
	if !slot.alive() {
		*slot = newEntry
		s.used++
		return nil, target, slot
	}

	old := *slot
	*slot = newEntry
	return &old, target, slot
}

// probe scans the table starting at start (wrapping), returning the first
// index for which match reports true.
func (s *store[K, V, M]) probe(start uint64, match func(*entry[K, V, M]) bool) (uint32, bool) {
	cap64 := uint64(len(s.slots))
	for i := uint64(0); i < cap64; i++ {
		at := (start + i) % cap64
		if match(&s.slots[at]) {
			return uint32(at), true
		}
	}
	return 0, false
}

// remove clears the slot backing e and returns its former contents. If the
// slot was already empty, it returns a zero-valued entry.
func (s *store[K, V, M]) remove(e *entry[K, V, M]) entry[K, V, M] {
	return s.removeIdx(s.indexFromEntry(e))
}

func (s *store[K, V, M]) removeIdx(idx uint32) entry[K, V, M] {
	if int(idx) >= len(s.slots) {
		var zero entry[K, V, M]
		return zero
	}
	slot := &s.slots[idx]
	if !slot.alive() {
		var zero entry[K, V, M]
		return zero
	}
	old := *slot
	slot.reset()
	s.used--
	return old
}

// clear empties every slot in place, touching only the tag.
func (s *store[K, V, M]) clear() {
	for i := range s.slots {
		s.slots[i].id = emptyTag
		s.slots[i].head = noSlot
		s.slots[i].tail = noSlot
	}
	s.used = 0
}
