// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package entropy implements the recorded-choice engine behind fuzz trials:
// the log of bounded random choices consumed while generating one value,
// the live/replay choice sources that produce those choices, and the
// shrinker that searches for a simpler log still reproducing a failure.
package entropy

import (
	"fmt"
	"sort"
	"strings"
)

// MaxLen caps the number of choices a single generation may consume.
// A generator that recurses without bound hits the cap and is rejected
// instead of looping forever.
const MaxLen = 65536

// Log is the ordered sequence of choices behind one generated value.
// It is consumed from the front during replay and grown at the back during
// live generation. The backing buffer plus head index give amortized O(1)
// for both, which matters because shrinking rebuilds logs on nearly every
// step.
type Log struct {
	buf  []uint64
	head int
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// LogOf returns a log holding the given choices, oldest first.
func LogOf(vals ...uint64) *Log {
	buf := make([]uint64, len(vals))
	copy(buf, vals)
	return &Log{buf: buf}
}

// Len returns the number of choices not yet consumed.
func (lg *Log) Len() int {
	return len(lg.buf) - lg.head
}

// Append records one choice at the back. The MaxLen cap is enforced by the
// live source, not here.
func (lg *Log) Append(v uint64) {
	lg.buf = append(lg.buf, v)
}

// Next removes and returns the front choice. It is used only by replay
// consumption; live generation never reads the log back.
func (lg *Log) Next() (uint64, bool) {
	if lg.head >= len(lg.buf) {
		return 0, false
	}
	v := lg.buf[lg.head]
	lg.head++
	return v, true
}

// Get returns the i-th unconsumed choice, or false if i is out of range.
func (lg *Log) Get(i int) (uint64, bool) {
	if i < 0 || i >= lg.Len() {
		return 0, false
	}
	return lg.buf[lg.head+i], true
}

// Set overwrites the i-th unconsumed choice. Out-of-range writes are
// ignored: shrink transforms routinely target positions that no longer
// exist after an earlier edit shortened the log.
func (lg *Log) Set(i int, v uint64) {
	if i < 0 || i >= lg.Len() {
		return
	}
	lg.buf[lg.head+i] = v
}

// Replacement is one index→value write applied by ReplaceMany.
type Replacement struct {
	Index int
	Value uint64
}

// ReplaceMany applies a batch of writes atomically: either every index is
// in range and all writes land, or the log is left untouched. Swap and
// redistribute transforms rely on never observing a half-applied state.
func (lg *Log) ReplaceMany(writes []Replacement) bool {
	for _, w := range writes {
		if w.Index < 0 || w.Index >= lg.Len() {
			return false
		}
	}
	for _, w := range writes {
		lg.buf[lg.head+w.Index] = w.Value
	}
	return true
}

// Chunk describes a contiguous sub-range of a log targeted by a shrink
// transform. It is a descriptor only and is never stored in the log.
type Chunk struct {
	Start int
	Size  int
}

// End returns the index one past the last position of the chunk.
func (c Chunk) End() int {
	return c.Start + c.Size
}

func (lg *Log) inBounds(c Chunk) bool {
	return c.Start >= 0 && c.Size > 0 && c.End() <= lg.Len()
}

// DeleteChunk removes the chunk from the log. Deleting a chunk that falls
// outside the current bounds is a no-op.
func (lg *Log) DeleteChunk(c Chunk) {
	if !lg.inBounds(c) {
		return
	}
	s, e := lg.head+c.Start, lg.head+c.End()
	lg.buf = append(lg.buf[:s], lg.buf[e:]...)
}

// ReplaceChunkWithZero zeroes every choice in the chunk, driving values
// toward their canonical minimum without changing the log length.
func (lg *Log) ReplaceChunkWithZero(c Chunk) {
	if !lg.inBounds(c) {
		return
	}
	for i := lg.head + c.Start; i < lg.head+c.End(); i++ {
		lg.buf[i] = 0
	}
}

// SortChunk sorts the chunk ascending, keeping length and the multiset of
// values intact.
func (lg *Log) SortChunk(c Chunk) {
	if !lg.inBounds(c) {
		return
	}
	vals := lg.buf[lg.head+c.Start : lg.head+c.End()]
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
}

// SwapChunks exchanges the contents of two equal-size, non-overlapping
// chunks. Anything else is a no-op.
func (lg *Log) SwapChunks(a, b Chunk) {
	if !lg.inBounds(a) || !lg.inBounds(b) || a.Size != b.Size {
		return
	}
	if a.Start > b.Start {
		a, b = b, a
	}
	if a.End() > b.Start {
		return
	}
	for i := 0; i < a.Size; i++ {
		x, y := lg.head+a.Start+i, lg.head+b.Start+i
		lg.buf[x], lg.buf[y] = lg.buf[y], lg.buf[x]
	}
}

// Compare orders logs by simplicity: shorter first, then lexicographically
// by contents. This is the acceptance criterion for shrink candidates.
func (lg *Log) Compare(other *Log) int {
	n, m := lg.Len(), other.Len()
	if n != m {
		if n < m {
			return -1
		}
		return 1
	}
	for i := 0; i < n; i++ {
		a, b := lg.buf[lg.head+i], other.buf[other.head+i]
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Equal reports whether two logs hold identical unconsumed sequences.
func (lg *Log) Equal(other *Log) bool {
	return lg.Compare(other) == 0
}

// Clone returns an independent copy of the unconsumed part of the log.
func (lg *Log) Clone() *Log {
	buf := make([]uint64, lg.Len())
	copy(buf, lg.buf[lg.head:])
	return &Log{buf: buf}
}

// Values returns a copy of the unconsumed choices, oldest first.
func (lg *Log) Values() []uint64 {
	buf := make([]uint64, lg.Len())
	copy(buf, lg.buf[lg.head:])
	return buf
}

func (lg *Log) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := lg.head; i < len(lg.buf); i++ {
		if i != lg.head {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%v", lg.buf[i])
	}
	sb.WriteByte(']')
	return sb.String()
}
