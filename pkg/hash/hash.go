// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package hash provides the seed derivation used to hand every trial an
// independent, reproducible sub-seed.
package hash

const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

// Label derives the seed for a labeled subtree by hashing the label with
// FNV-1a and folding in the unmodified incoming seed. Re-running one
// labeled trial in isolation therefore reproduces the same sub-seed it
// received as part of the full run. The exact algorithm is a
// reproducibility contract; replacing it with a different hash means
// prior runs stop matching bit-for-bit.
func Label(seed uint64, label string) uint64 {
	h := uint64(fnvOffset)
	for i := 0; i < len(label); i++ {
		h ^= uint64(label[i])
		h *= fnvPrime
	}
	return (h ^ seed) * fnvPrime
}

// Split advances a seed and derives an independent sub-seed from it:
// next threads onward through the tree walk, sub seeds one fuzz trial.
// splitmix64 finalizer.
func Split(seed uint64) (next, sub uint64) {
	next = seed + 0x9e3779b97f4a7c15
	z := next
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return next, z ^ (z >> 31)
}
