// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package gen

import (
	"math"

	"github.com/falsify/falsify/entropy"
)

// Float64 generates a finite float64. The value is recorded as exactly
// three choices: the high and low 32-bit halves of the magnitude's IEEE754
// bit pattern, then a 0/1 sign. The shrinker's float transform depends on
// this window shape; changing the encoding breaks float simplification.
func Float64() Gen[float64] {
	return func(s entropy.Source) float64 {
		hi := s.Draw(math.MaxUint32)
		lo := s.Draw(math.MaxUint32)
		sign := s.Draw(1)
		f := math.Float64frombits((hi<<32 | lo) &^ (1 << 63))
		if math.IsNaN(f) || math.IsInf(f, 0) {
			// Rescale the exponent into the finite range; the mantissa
			// bits are kept so replay of the same window stays stable.
			bits := (hi<<32|lo)&^(1<<63)&^(uint64(0x7FF)<<52) | uint64(1023)<<52
			f = math.Float64frombits(bits)
		}
		if sign == 1 {
			f = -f
		}
		return f
	}
}

// Float64Range generates a finite float64 in [min, max] by clamping
// Float64 output into the range. The triplet encoding is preserved.
func Float64Range(min, max float64) Gen[float64] {
	if min > max || math.IsNaN(min) || math.IsNaN(max) {
		panic("gen: Float64Range bad range")
	}
	return Map(Float64(), func(f float64) float64 {
		if f < min {
			return min
		}
		if f > max {
			return max
		}
		return f
	})
}
