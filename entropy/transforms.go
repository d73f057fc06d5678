// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package entropy

import "math"

// A transform rewrites the current log into one or more candidate logs and
// tries them against the search state. minLen is the smallest log length
// for which the transform is meaningful; candidates is regenerated from
// the current length after every accepted edit, so transforms targeting
// positions that no longer exist are never produced.
type transform struct {
	name   string
	minLen int
	apply  func(st shrinkState) bool
}

// chunkSizes returns the chunk sizes to try for a log of length n,
// largest first: coarse edits first, fine edits last.
func chunkSizes(n int) []int {
	var asc []int
	for _, s := range []int{1, 2, 3, 4} {
		if s <= n {
			asc = append(asc, s)
		}
	}
	for s := 8; s <= n; s *= 2 {
		asc = append(asc, s)
	}
	desc := make([]int, len(asc))
	for i, s := range asc {
		desc[len(asc)-1-i] = s
	}
	return desc
}

// candidates enumerates the full ordered transform list for a log of
// length n. Chunk positions are walked from the tail: later choices
// usually encode leaf values and delete more cheaply.
func candidates(n int) []transform {
	var list []transform
	for _, size := range chunkSizes(n) {
		size := size
		for start := n - size; start >= 0; start-- {
			c := Chunk{Start: start, Size: size}
			list = append(list, transform{
				name:   "delete-chunk",
				minLen: c.End(),
				apply:  func(st shrinkState) bool { return deleteChunk(st, c) },
			})
		}
	}
	for _, size := range chunkSizes(n) {
		size := size
		for start := n - size; start >= 0; start-- {
			c := Chunk{Start: start, Size: size}
			list = append(list, transform{
				name:   "zero-chunk",
				minLen: c.End(),
				apply:  func(st shrinkState) bool { return zeroChunk(st, c) },
			})
		}
	}
	for _, size := range chunkSizes(n) {
		size := size
		if size < 2 {
			continue
		}
		for start := n - size; start >= 0; start-- {
			c := Chunk{Start: start, Size: size}
			list = append(list, transform{
				name:   "sort-chunk",
				minLen: c.End(),
				apply:  func(st shrinkState) bool { return sortChunk(st, c) },
			})
		}
	}
	for _, size := range chunkSizes(n) {
		size := size
		for start := n - 2*size; start >= 0; start-- {
			a := Chunk{Start: start, Size: size}
			b := Chunk{Start: start + size, Size: size}
			list = append(list, transform{
				name:   "swap-chunks",
				minLen: b.End(),
				apply:  func(st shrinkState) bool { return swapChunks(st, a, b) },
			})
		}
	}
	for i := n - 1; i >= 0; i-- {
		i := i
		list = append(list, transform{
			name:   "minimize-choice",
			minLen: i + 1,
			apply:  func(st shrinkState) bool { return minimizeChoice(st, i) },
		})
	}
	for i := n - 3; i >= 0; i-- {
		i := i
		list = append(list, transform{
			name:   "minimize-float",
			minLen: i + 3,
			apply:  func(st shrinkState) bool { return minimizeFloat(st, i) },
		})
	}
	for i := n - 2; i >= 0; i-- {
		i := i
		list = append(list, transform{
			name:   "redistribute",
			minLen: i + 2,
			apply:  func(st shrinkState) bool { return redistribute(st, i) },
		})
	}
	for i := n - 2; i >= 0; i-- {
		i := i
		list = append(list, transform{
			name:   "decrement-together",
			minLen: i + 2,
			apply:  func(st shrinkState) bool { return decrementTogether(st, i) },
		})
	}
	return list
}

// deleteChunk removes c, first together with a best-effort decrement of the
// immediately preceding choice. The decrement keeps length-prefixed
// structures self-consistent when the preceding choice is a count; if it is
// not, the plain deletion is tried anyway.
func deleteChunk(st shrinkState, c Chunk) bool {
	if c.Start > 0 && st.get(c.Start-1) > 0 {
		cand := st.edit()
		cand.DeleteChunk(c)
		cand.Set(c.Start-1, st.get(c.Start-1)-1)
		if st.try(cand) {
			return true
		}
	}
	cand := st.edit()
	cand.DeleteChunk(c)
	return st.try(cand)
}

func zeroChunk(st shrinkState, c Chunk) bool {
	allZero := true
	for i := c.Start; i < c.End(); i++ {
		if st.get(i) != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return false
	}
	cand := st.edit()
	cand.ReplaceChunkWithZero(c)
	return st.try(cand)
}

func sortChunk(st shrinkState, c Chunk) bool {
	sorted := true
	for i := c.Start + 1; i < c.End(); i++ {
		if st.get(i-1) > st.get(i) {
			sorted = false
			break
		}
	}
	if sorted {
		return false
	}
	cand := st.edit()
	cand.SortChunk(c)
	return st.try(cand)
}

func swapChunks(st shrinkState, a, b Chunk) bool {
	// Only worth trying when the swap moves smaller values forward.
	simpler := false
	for i := 0; i < a.Size; i++ {
		x, y := st.get(a.Start+i), st.get(b.Start+i)
		if x != y {
			simpler = y < x
			break
		}
	}
	if !simpler {
		return false
	}
	cand := st.edit()
	cand.SwapChunks(a, b)
	return st.try(cand)
}

func trySet(st shrinkState, i int, v uint64) bool {
	cand := st.edit()
	cand.Set(i, v)
	return st.try(cand)
}

// minimizeChoice drives a single choice toward zero: zero first, then a
// binary search for the smallest value that still fails.
func minimizeChoice(st shrinkState, i int) bool {
	v := st.get(i)
	if v == 0 {
		return false
	}
	if trySet(st, i, 0) {
		return true
	}
	accepted := false
	lo, hi := uint64(0), v
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if trySet(st, i, mid) {
			hi = mid
			accepted = true
		} else {
			lo = mid
		}
	}
	return accepted
}

// Floating point values are recorded as a pair of 32-bit halves of the
// magnitude's IEEE754 bit pattern plus a trailing 0/1 sign choice (see
// gen.Float64). minimizeFloat shrinks within that 3-element window:
// ordinary single-choice edits do not respect the bit layout.
func minimizeFloat(st shrinkState, i int) bool {
	hi, lo, sign := st.get(i), st.get(i+1), st.get(i+2)
	if hi > math.MaxUint32 || lo > math.MaxUint32 || sign > 1 {
		return false
	}
	f := floatFromHalves(hi, lo)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	if sign != 0 && trySet(st, i+2, 0) {
		return true
	}
	// Drop the fractional part: integer-valued floats simplify further.
	if trunc := math.Trunc(f); trunc != f {
		if tryFloat(st, i, trunc) {
			return true
		}
	}
	// Binary search the whole value toward zero.
	whole := uint64(math.Trunc(f))
	if whole == 0 {
		return false
	}
	if tryFloat(st, i, 0) {
		return true
	}
	accepted := false
	lo64, hi64 := uint64(0), whole
	for hi64-lo64 > 1 {
		mid := lo64 + (hi64-lo64)/2
		if tryFloat(st, i, float64(mid)) {
			hi64 = mid
			accepted = true
		} else {
			lo64 = mid
		}
	}
	return accepted
}

func floatFromHalves(hi, lo uint64) float64 {
	return math.Float64frombits((hi<<32 | lo) &^ (1 << 63))
}

func tryFloat(st shrinkState, i int, f float64) bool {
	bits := math.Float64bits(f)
	cand := st.edit()
	if !cand.ReplaceMany([]Replacement{
		{Index: i, Value: bits >> 32},
		{Index: i + 1, Value: bits & math.MaxUint32},
	}) {
		return false
	}
	return st.try(cand)
}

// redistribute transfers weight from a choice to its successor, optionally
// incrementing the receiving side to probe the adjacent bucket. Weighted
// choices are not monotonically simpler when moved toward zero alone, so
// decreasing one position while growing its neighbour reaches shapes the
// single-choice transform cannot.
func redistribute(st shrinkState, i int) bool {
	a, b := st.get(i), st.get(i+1)
	for d := a; d > 0; d /= 2 {
		if b > math.MaxUint64-d-1 {
			continue
		}
		for _, bump := range []uint64{0, 1} {
			cand := st.edit()
			cand.ReplaceMany([]Replacement{
				{Index: i, Value: a - d},
				{Index: i + 1, Value: b + d + bump},
			})
			if st.try(cand) {
				return true
			}
		}
	}
	return false
}

// decrementTogether lowers a pair of adjacent choices in lockstep, for
// bucket-selector + magnitude pairs that a single-position decrement
// cannot simplify independently.
func decrementTogether(st shrinkState, i int) bool {
	a, b := st.get(i), st.get(i+1)
	for _, by := range []uint64{4, 2, 1} {
		if a < by || b < by {
			continue
		}
		cand := st.edit()
		cand.ReplaceMany([]Replacement{
			{Index: i, Value: a - by},
			{Index: i + 1, Value: b - by},
		})
		if st.try(cand) {
			return true
		}
	}
	return false
}
