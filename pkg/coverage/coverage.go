// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package coverage counts how generated values distribute across
// user-defined labels and evaluates distribution requirements against
// those counts, growing the sample adaptively until a requirement is
// confidently satisfied or violated.
package coverage

import (
	"fmt"
	"sort"
	"strings"
)

// Label is a named predicate over generated values.
type Label[T any] struct {
	Name  string
	Match func(T) bool
}

// Requirement is what a trial demands from one label's distribution.
type Requirement int

const (
	// Zero demands that no generated value matches.
	Zero Requirement = iota
	// MoreThanZero demands that at least one generated value matches.
	MoreThanZero
	// AtLeast demands that at least Percent of generated values match.
	AtLeast
)

func (r Requirement) String() string {
	switch r {
	case Zero:
		return "exactly zero"
	case MoreThanZero:
		return "more than zero"
	case AtLeast:
		return "at least"
	default:
		return fmt.Sprintf("Requirement(%d)", int(r))
	}
}

// Expectation attaches a requirement to a label.
type Expectation[T any] struct {
	Label       Label[T]
	Requirement Requirement
	Percent     float64 // for AtLeast, in [0, 100]
}

// ExpectZero requires that label never matches.
func ExpectZero[T any](label Label[T]) Expectation[T] {
	return Expectation[T]{Label: label, Requirement: Zero}
}

// ExpectSome requires that label matches at least once.
func ExpectSome[T any](label Label[T]) Expectation[T] {
	return Expectation[T]{Label: label, Requirement: MoreThanZero}
}

// ExpectAtLeast requires that label matches at least percent of the time.
func ExpectAtLeast[T any](label Label[T], percent float64) Expectation[T] {
	return Expectation[T]{Label: label, Requirement: AtLeast, Percent: percent}
}

// bucket keys are the sorted matching label names joined with keySep;
// label names are validated upstream to be non-blank and unique, the
// separator just needs to never occur in them.
const keySep = "\x1f"

type bucket struct {
	names []string
	count int64
}

// Tracker accumulates per-label-set occurrence counts over the trials of
// one fuzz test. It is owned by a single trial loop and is not safe for
// concurrent use.
type Tracker[T any] struct {
	labels  []Label[T]
	buckets map[string]*bucket
	total   int64
}

// NewTracker returns a tracker over the given labels.
func NewTracker[T any](labels []Label[T]) *Tracker[T] {
	return &Tracker[T]{
		labels:  labels,
		buckets: make(map[string]*bucket),
	}
}

// Observe evaluates every label against v and increments the count keyed
// by the set of simultaneously matching labels (the empty set if none).
func (t *Tracker[T]) Observe(v T) {
	var names []string
	for _, l := range t.labels {
		if l.Match(v) {
			names = append(names, l.Name)
		}
	}
	sort.Strings(names)
	key := strings.Join(names, keySep)
	b := t.buckets[key]
	if b == nil {
		b = &bucket{names: names}
		t.buckets[key] = b
	}
	b.count++
	t.total++
}

// Total returns the number of observed values.
func (t *Tracker[T]) Total() int64 {
	return t.total
}

// Count returns the folded count for a single label: occurrences where the
// label matched alone plus every bucket keyed by a label-set containing
// it. Combination buckets are additive annotations, not separate totals,
// so folding only ever increases the count.
func (t *Tracker[T]) Count(label string) int64 {
	var n int64
	for _, b := range t.buckets {
		for _, name := range b.names {
			if name == label {
				n += b.count
				break
			}
		}
	}
	return n
}

// alone returns the count of the bucket where label matched by itself.
func (t *Tracker[T]) alone(label string) int64 {
	if b := t.buckets[label]; b != nil {
		return b.count
	}
	return 0
}

// inCombination reports whether label occurs in any multi-label bucket
// with a nonzero count.
func (t *Tracker[T]) inCombination(label string) bool {
	for _, b := range t.buckets {
		if len(b.names) < 2 || b.count == 0 {
			continue
		}
		for _, name := range b.names {
			if name == label {
				return true
			}
		}
	}
	return false
}
