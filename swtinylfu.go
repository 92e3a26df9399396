// swtinylfu.go: Scan-Window-TinyLFU — a Window LRU admission-gating into an SLRU
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import (
	"math/rand"
	"strings"
)

// swtlfuCore composes a Window LRU (cache-id Window, ~1% of total) and an
// SLRU Core (Probation + Protected, ~99%) sharing one store. Every live
// slot's tag is packed: low bits cache-id, next bit generation, remaining
// bits a frequency counter maintained by a lazy, generation-based halving
// walk instead of a periodic full sweep.
type swtlfuCore[K comparable, V any, M any] struct {
	window *lruCore[K, V, M]
	slru   *slruCore[K, V, M]

	total            int
	generation       uint32
	insertsThisEpoch int
	salt1, salt2     uint32

	userFn          scanFunc[K, V, M]
	userScanRunning bool
}

func newSWTLFUCore[K comparable, V any, M any](windowEntries, probationEntries, protectedEntries int) *swtlfuCore[K, V, M] {
	wc := &swtlfuCore[K, V, M]{
		window: newLRUCore[K, V, M](windowEntries, cidWindow),
		slru:   newSLRUCore[K, V, M](probationEntries, protectedEntries),
		total:  windowEntries + probationEntries + protectedEntries,
		salt1:  rand.Uint32(),
		salt2:  rand.Uint32(),
	}
	wc.window.setScanFn(wc.scanCallback)
	wc.slru.setScanFn(wc.scanCallback)
	wc.window.startScan()
	wc.slru.startScan()
	return wc
}

func (wc *swtlfuCore[K, V, M]) Len() int      { return wc.window.Len() + wc.slru.Len() }
func (wc *swtlfuCore[K, V, M]) Capacity() int { return wc.total }

func (wc *swtlfuCore[K, V, M]) setScanFn(f scanFunc[K, V, M]) { wc.userFn = f }
func (wc *swtlfuCore[K, V, M]) startScan()                    { wc.userScanRunning = true }
func (wc *swtlfuCore[K, V, M]) isScanRunning() bool           { return wc.userScanRunning }

// scanCallback is installed as the scan function on both the Window LRU and
// the SLRU. It halves a stale-generation entry's counter amortized across
// ordinary traffic, then optionally chains to a caller-installed scan fn.
func (wc *swtlfuCore[K, V, M]) scanCallback(e *entry[K, V, M]) {
	cid := packedCid(e.id)
	gen := packedGen(e.id)
	counter := packedCounter(e.id)
	if gen != wc.generation {
		e.id = makePackedTag(cid, wc.generation, counter/2)
	}
	if wc.userScanRunning && wc.userFn != nil {
		wc.userFn(e)
	}
}

func (wc *swtlfuCore[K, V, M]) restamp(s *store[K, V, M], idx uint32, cid tag, counter uint32) {
	e, ok := s.getIndex(idx)
	if !ok {
		return
	}
	e.id = makePackedTag(cid, wc.generation, counter)
}

func (wc *swtlfuCore[K, V, M]) counterAt(s *store[K, V, M], idx uint32) uint32 {
	e, ok := s.getIndex(idx)
	if !ok {
		return 0
	}
	return packedCounter(e.id)
}

func (wc *swtlfuCore[K, V, M]) cidAt(s *store[K, V, M], idx uint32) tag {
	e, ok := s.getIndex(idx)
	if !ok {
		return cidNone
	}
	return packedCid(e.id)
}

// sampleAux derives two auxiliary sample indices from tailIdx by XORing in
// the instance's two salts, deduplicating against tailIdx and each other.
func (wc *swtlfuCore[K, V, M]) sampleAux(tailIdx uint32) (uint32, uint32) {
	capU := uint32(wc.total)
	a := (tailIdx ^ wc.salt1) % capU
	if a == tailIdx {
		a = (a + 1) % capU
	}
	b := (tailIdx ^ wc.salt2) % capU
	for b == tailIdx || b == a {
		b = (b + 1) % capU
	}
	return a, b
}

// admit runs the sampled-three admission contest for a Window-tail
// eviction: the lowest-counter sample among {tailIdx, two salted
// auxiliaries} loses. If a Window-resident slot loses, the Window-tail is
// simply dropped. Otherwise the Window-tail is admitted into Probation.
func (wc *swtlfuCore[K, V, M]) admit(s *store[K, V, M], tailIdx uint32) lruResult {
	a, b := wc.sampleAux(tailIdx)

	victim := tailIdx
	victimCounter := wc.counterAt(s, tailIdx)
	for _, idx := range [2]uint32{a, b} {
		if c := wc.counterAt(s, idx); c < victimCounter {
			victim = idx
			victimCounter = c
		}
	}

	if victim == tailIdx || wc.cidAt(s, victim) == cidWindow {
		return lruResult{kind: lruOldTail, tailIdx: tailIdx}
	}

	priorCounter := wc.counterAt(s, tailIdx)
	res := wc.slru.probation.absorbExisting(s, tailIdx)
	wc.restamp(s, tailIdx, cidProbation, priorCounter)
	return res
}

// detachForeign unlinks a forced-collision victim from whichever segment
// actually owns it, using the pre-overwrite snapshot — used when the slot
// the store handed us belonged to a different segment than the one about
// to claim it.
func (wc *swtlfuCore[K, V, M]) detachForeign(s *store[K, V, M], idx uint32, clash *entry[K, V, M], owner tag) {
	switch owner {
	case cidWindow:
		wc.window.removeSharedSnapshot(s, idx, clash)
	case cidProbation:
		wc.slru.probation.removeSharedSnapshot(s, idx, clash)
	case cidProtected:
		wc.slru.protected.removeSharedSnapshot(s, idx, clash)
	}
}

func (wc *swtlfuCore[K, V, M]) maybeFlipGeneration() {
	wc.insertsThisEpoch++
	if wc.insertsThisEpoch >= wc.total {
		wc.insertsThisEpoch = 0
		wc.generation ^= 1
	}
}

// insertShared dispatches a just-placed entry per S-W-TinyLFU's admission
// and promotion rules. clash is the store's snapshot of whatever occupied
// newIdx before, if anything.
func (wc *swtlfuCore[K, V, M]) insertShared(s *store[K, V, M], clash *entry[K, V, M], newIdx uint32, newKey K) lruResult {
	wc.maybeFlipGeneration()

	sameKey := clash != nil && clash.key == newKey
	var cid tag
	var priorCounter uint32
	if clash != nil {
		cid = packedCid(clash.id)
		priorCounter = packedCounter(clash.id)
	}

	if sameKey && cid == cidWindow {
		wc.window.removeSharedSnapshot(s, newIdx, clash)
		res := wc.slru.insertShared(s, nil, newIdx, newKey)
		wc.restamp(s, newIdx, cidProbation, priorCounter+1)
		return res
	}
	if sameKey && (cid == cidProbation || cid == cidProtected) {
		res := wc.slru.insertShared(s, clash, newIdx, newKey)
		wc.restamp(s, newIdx, cidProtected, priorCounter+1)
		return res
	}

	// Brand-new key for us. A non-nil, different-key clash is a
	// forced-collision victim that must be detached from its real chain
	// before the Window claims this slot.
	var windowClash *entry[K, V, M]
	if clash != nil {
		if cid == cidWindow {
			windowClash = clash
		} else {
			wc.detachForeign(s, newIdx, clash, cid)
		}
	}
	res := wc.window.insertShared(s, windowClash, newIdx)
	wc.restamp(s, newIdx, cidWindow, 1)
	if res.kind == lruOldTail {
		return wc.admit(s, res.tailIdx)
	}
	return res
}

// onGet dispatches the on-get hook and a single amortized scan step to
// whichever segment owns e, incrementing e's own frequency counter
// directly (the lazy walk only halves stale counters elsewhere; it does
// not count hits).
func (wc *swtlfuCore[K, V, M]) onGet(s *store[K, V, M], idx uint32, e *entry[K, V, M], hooks Hooks[V, M]) {
	switch packedCid(e.id) {
	case cidWindow:
		wc.window.touch(e, hooks)
		wc.window.scan.applyNext(s)
		if !wc.window.isScanRunning() {
			wc.window.startScan()
		}
	case cidProbation, cidProtected:
		wc.slru.onGet(s, e, hooks)
		if !wc.slru.isScanRunning() {
			wc.slru.startScan()
		}
	}
	wc.bump(s, idx)
}

// bump increments the touched entry's own counter, halving it first if its
// generation is stale — covers entries the lazy walk has not reached yet.
func (wc *swtlfuCore[K, V, M]) bump(s *store[K, V, M], idx uint32) {
	e, ok := s.getIndex(idx)
	if !ok {
		return
	}
	cid := packedCid(e.id)
	counter := packedCounter(e.id)
	if packedGen(e.id) != wc.generation {
		counter /= 2
	}
	if counter < counterMax {
		counter++
	}
	e.id = makePackedTag(cid, wc.generation, counter)
}

func (wc *swtlfuCore[K, V, M]) removeShared(s *store[K, V, M], idx uint32, e *entry[K, V, M]) {
	switch packedCid(e.id) {
	case cidWindow:
		wc.window.removeShared(s, idx, e)
	case cidProbation, cidProtected:
		wc.slru.removeShared(s, idx, e)
	}
}

func (wc *swtlfuCore[K, V, M]) clearShared() {
	wc.window.clearShared()
	wc.slru.clearShared()
	wc.generation = 0
	wc.insertsThisEpoch = 0
	wc.window.startScan()
	wc.slru.startScan()
}

// splitStandard computes the 1% window / 20% probation / 80% protected
// split of total, flooring every segment at 1 slot.
func splitStandard(total int) (window, probation, protected int) {
	window = int(float64(total) * 0.01)
	if window < 1 {
		window = 1
	}
	main := total - window
	x := int(float64(main) * 0.2)
	if x == 0 {
		if main <= 2 {
			probation, protected = 1, 1
		} else {
			probation, protected = 1, main-1
		}
		return
	}
	return window, x, main - x
}

// WTinyLFU is a standalone Scan-Window-TinyLFU cache: the public façade
// pairing one swtlfuCore with its own private store.
type WTinyLFU[K comparable, V any, M any] struct {
	store *store[K, V, M]
	core  *swtlfuCore[K, V, M]
	hooks Hooks[V, M]
	log   Logger
}

// NewWTinyLFU builds a cache with explicit segment sizes.
func NewWTinyLFU[K comparable, V any, M any](windowEntries, probationEntries, protectedEntries int) (*WTinyLFU[K, V, M], error) {
	v := ValidateWTinyLFUSize(windowEntries, probationEntries, protectedEntries)
	if !v.IsValid {
		return nil, errInvalidSize("wtinylfu", windowEntries+probationEntries+protectedEntries, strings.Join(v.Warnings, "; "))
	}
	total := windowEntries + probationEntries + protectedEntries
	return &WTinyLFU[K, V, M]{
		store: newStore[K, V, M](total),
		core:  newSWTLFUCore[K, V, M](windowEntries, probationEntries, protectedEntries),
	}, nil
}

// NewWTinyLFUStandard builds a cache of totalEntries slots using the
// standard 1% / 20% / 80% window/probation/protected split, each segment
// floored at 1 slot (so totalEntries must be at least 3).
func NewWTinyLFUStandard[K comparable, V any, M any](totalEntries int) (*WTinyLFU[K, V, M], error) {
	if totalEntries < 3 {
		return nil, errInvalidSize("totalEntries", totalEntries, "must be >= 3 so window/probation/protected each keep a slot")
	}
	w, p, q := splitStandard(totalEntries)
	return NewWTinyLFU[K, V, M](w, p, q)
}

func (c *WTinyLFU[K, V, M]) WithHooks(h Hooks[V, M]) *WTinyLFU[K, V, M] {
	c.hooks = h
	return c
}

func (c *WTinyLFU[K, V, M]) WithLogger(l Logger) *WTinyLFU[K, V, M] {
	c.log = l
	return c
}

// WithSalts pins the two admission-sampling salts, overriding the
// randomly generated defaults. Tests use this to make the sampled-three
// admission contest reproducible.
func (c *WTinyLFU[K, V, M]) WithSalts(a, b uint32) *WTinyLFU[K, V, M] {
	c.core.salt1, c.core.salt2 = a, b
	return c
}

func (c *WTinyLFU[K, V, M]) Capacity() int { return c.core.Capacity() }
func (c *WTinyLFU[K, V, M]) Len() int      { return c.core.Len() }

func (c *WTinyLFU[K, V, M]) Insert(key K, value V) InsertOutcome[K, V, M] {
	var zero M
	return c.InsertWithMeta(key, value, zero)
}

func (c *WTinyLFU[K, V, M]) InsertWithMeta(key K, value V, meta M) InsertOutcome[K, V, M] {
	h := c.store.hash(key)
	ne := newEntry[K, V, M](key, h, value, meta, cidNone)
	clash, idx, stored := c.store.insert(ne)
	res := c.core.insertShared(c.store, clash, idx, key)
	callOnInsert(c.hooks, stored, clash)

	out := InsertOutcome[K, V, M]{}
	switch res.kind {
	case lruOldEntry:
		out.Kind = OldEntry
		if clash != nil {
			out.Clash = removedFrom(*clash)
		}
	case lruOldTail:
		out.Kind = OldTail
		evicted := c.store.removeIdx(res.tailIdx)
		out.Evicted = removedFrom(evicted)
		if clash != nil {
			out.Clash = removedFrom(*clash)
		}
		logEvict(c.log, "wtinylfu", evicted.key)
	default:
		if clash != nil {
			out.Kind = OldEntry
			out.Clash = removedFrom(*clash)
			logClash(c.log, "wtinylfu", clash.key)
		} else {
			out.Kind = Success
		}
	}
	return out
}

func (c *WTinyLFU[K, V, M]) Get(key K) (V, M, bool) {
	idx, e, ok := c.store.getFull(key)
	if !ok {
		var zv V
		var zm M
		return zv, zm, false
	}
	c.core.onGet(c.store, idx, e, c.hooks)
	return e.value, e.meta, true
}

func (c *WTinyLFU[K, V, M]) GetMut(key K) (*V, *M, bool) {
	idx, e, ok := c.store.getFull(key)
	if !ok {
		return nil, nil, false
	}
	c.core.onGet(c.store, idx, e, c.hooks)
	return &e.value, &e.meta, true
}

func (c *WTinyLFU[K, V, M]) Remove(key K) (V, M, bool) {
	idx, e, ok := c.store.getFull(key)
	if !ok {
		var zv V
		var zm M
		return zv, zm, false
	}
	c.core.removeShared(c.store, idx, e)
	removed := c.store.removeIdx(idx)
	return removed.value, removed.meta, true
}

func (c *WTinyLFU[K, V, M]) Contains(key K) bool {
	_, _, ok := c.store.getFull(key)
	return ok
}

func (c *WTinyLFU[K, V, M]) Clear() {
	c.core.clearShared()
	c.store.clear()
}
