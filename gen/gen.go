// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package gen provides generator combinators over the engine's
// bounded-choice contract.
//
// A generator builds a value by issuing a sequence of bounded choice
// requests to an entropy.Source. Structurally identical generators issue
// choices in the same order for the same value shape, which is what makes
// deterministic replay of an edited entropy log meaningful.
package gen

import (
	"fmt"
	"math"

	"github.com/falsify/falsify/entropy"
)

// Gen generates one value from a choice source.
type Gen[T any] func(entropy.Source) T

// Const always returns v and consumes no choices.
func Const[T any](v T) Gen[T] {
	return func(entropy.Source) T {
		return v
	}
}

// Uint64n generates an integer in [0, bound], recorded as a single choice.
func Uint64n(bound uint64) Gen[uint64] {
	return func(s entropy.Source) uint64 {
		return s.Draw(bound)
	}
}

// IntRange generates an integer in [min, max].
func IntRange(min, max int) Gen[int] {
	if min > max {
		panic(fmt.Sprintf("gen: IntRange %v > %v", min, max))
	}
	span := uint64(max) - uint64(min)
	return func(s entropy.Source) int {
		return min + int(s.Draw(span))
	}
}

// Bool generates a boolean; false is the simpler value.
func Bool() Gen[bool] {
	return func(s entropy.Source) bool {
		return s.Draw(1) == 1
	}
}

// Byte generates a single byte.
func Byte() Gen[byte] {
	return func(s entropy.Source) byte {
		return byte(s.Draw(math.MaxUint8))
	}
}

// SliceOf generates a slice of length [0, maxLen]. The length is recorded
// as a count choice immediately before the elements, so that shrinking can
// delete an element together with a decrement of the count.
func SliceOf[T any](maxLen int, elem Gen[T]) Gen[[]T] {
	return SliceOfN(0, maxLen, elem)
}

// SliceOfN generates a slice of length [minLen, maxLen].
func SliceOfN[T any](minLen, maxLen int, elem Gen[T]) Gen[[]T] {
	if minLen < 0 || minLen > maxLen {
		panic(fmt.Sprintf("gen: SliceOfN bad range [%v, %v]", minLen, maxLen))
	}
	return func(s entropy.Source) []T {
		n := minLen + int(s.Draw(uint64(maxLen-minLen)))
		out := make([]T, n)
		for i := range out {
			out[i] = elem(s)
		}
		return out
	}
}

// String generates a printable ASCII string of length [0, maxLen],
// length-prefixed like SliceOf.
func String(maxLen int) Gen[string] {
	return func(s entropy.Source) string {
		n := int(s.Draw(uint64(maxLen)))
		out := make([]byte, n)
		for i := range out {
			out[i] = byte(' ' + s.Draw('~'-' '))
		}
		return string(out)
	}
}

// OneOf picks one of the given generators with equal probability. The
// selector is recorded as one choice ahead of the payload.
func OneOf[T any](gens ...Gen[T]) Gen[T] {
	if len(gens) == 0 {
		panic("gen: OneOf called with no generators")
	}
	return func(s entropy.Source) T {
		return gens[s.Draw(uint64(len(gens)-1))](s)
	}
}

// Frequency picks a generator with probability proportional to its weight.
// The recorded choice is a point inside the cumulative weight range, so a
// small decrement can land in the adjacent bucket.
func Frequency[T any](weights []uint64, gens []Gen[T]) Gen[T] {
	if len(weights) != len(gens) || len(gens) == 0 {
		panic("gen: Frequency weights and generators must be non-empty and same length")
	}
	var total uint64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		panic("gen: Frequency total weight is zero")
	}
	return func(s entropy.Source) T {
		point := s.Draw(total - 1)
		var cum uint64
		for i, w := range weights {
			cum += w
			if point < cum {
				return gens[i](s)
			}
		}
		return gens[len(gens)-1](s)
	}
}

// Map transforms generated values.
func Map[T, U any](g Gen[T], fn func(T) U) Gen[U] {
	return func(s entropy.Source) U {
		return fn(g(s))
	}
}

// Map2 combines two generators.
func Map2[A, B, C any](ga Gen[A], gb Gen[B], fn func(A, B) C) Gen[C] {
	return func(s entropy.Source) C {
		a := ga(s)
		b := gb(s)
		return fn(a, b)
	}
}

// maxFilterRetries bounds resampling before a Filter gives up on the
// current generation attempt.
const maxFilterRetries = 100

// Filter resamples until pred passes, then rejects the whole attempt if
// too many candidates were discarded. Outside of shrinking the trial loop
// resamples a rejected attempt; during shrinking the candidate is skipped.
func Filter[T any](g Gen[T], pred func(T) bool) Gen[T] {
	return func(s entropy.Source) T {
		for i := 0; i < maxFilterRetries; i++ {
			if v := g(s); pred(v) {
				return v
			}
		}
		entropy.Reject("filter exhausted")
		panic("unreachable")
	}
}
