// cacheid_test.go: unit tests for the packed cache-id/generation/counter tag
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import "testing"

func TestPackedTag_RoundTrips(t *testing.T) {
	cases := []struct {
		cid     tag
		gen     uint32
		counter uint32
	}{
		{cidWindow, 0, 0},
		{cidProbation, 1, 1},
		{cidProtected, 0, 12345},
		{cidProtected, 1, counterMax},
	}
	for _, c := range cases {
		packed := makePackedTag(c.cid, c.gen, c.counter)
		if got := packedCid(packed); got != c.cid {
			t.Errorf("packedCid(%v) = %v, want %v", packed, got, c.cid)
		}
		if got := packedGen(packed); got != c.gen {
			t.Errorf("packedGen(%v) = %v, want %v", packed, got, c.gen)
		}
		if got := packedCounter(packed); got != c.counter {
			t.Errorf("packedCounter(%v) = %v, want %v", packed, got, c.counter)
		}
	}
}

func TestPackedTag_CounterSaturates(t *testing.T) {
	packed := makePackedTag(cidWindow, 0, counterMax+1000)
	if got := packedCounter(packed); got != counterMax {
		t.Errorf("counter should saturate at counterMax; got %d, want %d", got, counterMax)
	}
}

func TestPackedTag_NeverEqualsEmptyTag(t *testing.T) {
	for _, cid := range []tag{cidWindow, cidProbation, cidProtected} {
		packed := makePackedTag(cid, 0, 0)
		if packed == emptyTag {
			t.Errorf("a live packed tag for cid=%v must never equal emptyTag", cid)
		}
	}
}
