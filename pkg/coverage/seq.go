// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package coverage

import (
	"fmt"
	"math"
)

// Verdict is the outcome of one evaluation checkpoint.
type Verdict int

const (
	// Satisfied: every requirement holds within confidence.
	Satisfied Verdict = iota
	// Violated: some requirement definitively fails.
	Violated
	// Undecided: more samples are needed; the caller doubles the
	// additional sample size and re-evaluates.
	Undecided
)

// DistributionError is a structured distribution violation, distinguishable
// from a predicate failure so a host can render it differently.
type DistributionError struct {
	Label       string
	Requirement Requirement
	Actual      float64 // percent
	Required    float64 // percent
	Samples     int64
}

func (e *DistributionError) Error() string {
	switch e.Requirement {
	case Zero:
		return fmt.Sprintf("label %q: required exactly zero matches, got %.1f%% over %v samples",
			e.Label, e.Actual, e.Samples)
	case MoreThanZero:
		return fmt.Sprintf("label %q: required more than zero matches, got none over %v samples",
			e.Label, e.Samples)
	default:
		return fmt.Sprintf("label %q: required at least %.1f%%, got %.1f%% over %v samples",
			e.Label, e.Required, e.Actual, e.Samples)
	}
}

// zCritical is the normal quantile for the Wilson score bounds, tuned so
// the sequential test's false accept/reject rate is on the order of 1e-9.
const zCritical = 5.9978

// Eval evaluates all expectations against the accumulated counts.
// Zero/MoreThanZero are checked directly against the counts; AtLeast uses
// Wilson score bounds, so a borderline rate stays Undecided until enough
// samples accumulate.
func (t *Tracker[T]) Eval(exps []Expectation[T]) (Verdict, []error) {
	verdict := Satisfied
	var errs []error
	for _, e := range exps {
		count := t.Count(e.Label.Name)
		actual := 0.0
		if t.total > 0 {
			actual = 100 * float64(count) / float64(t.total)
		}
		switch e.Requirement {
		case Zero:
			if count > 0 {
				verdict = Violated
				errs = append(errs, &DistributionError{
					Label:       e.Label.Name,
					Requirement: Zero,
					Actual:      actual,
					Samples:     t.total,
				})
			}
		case MoreThanZero:
			if count == 0 {
				verdict = Violated
				errs = append(errs, &DistributionError{
					Label:       e.Label.Name,
					Requirement: MoreThanZero,
					Samples:     t.total,
				})
			}
		case AtLeast:
			p := e.Percent / 100
			low, high := wilson(count, t.total)
			switch {
			case low >= p:
				// satisfied within confidence
			case high < p:
				verdict = Violated
				errs = append(errs, &DistributionError{
					Label:       e.Label.Name,
					Requirement: AtLeast,
					Actual:      actual,
					Required:    e.Percent,
					Samples:     t.total,
				})
			default:
				if verdict == Satisfied {
					verdict = Undecided
				}
			}
		}
	}
	if verdict == Violated {
		return Violated, errs
	}
	return verdict, nil
}

// wilson returns the Wilson score interval for k successes in n samples at
// the zCritical confidence level.
func wilson(k, n int64) (low, high float64) {
	if n == 0 {
		return 0, 1
	}
	z := zCritical
	nf, kf := float64(n), float64(k)
	center := (kf + z*z/2) / (nf + z*z)
	offset := z / (nf + z*z) * math.Sqrt(kf*(nf-kf)/nf+z*z/4)
	return center - offset, center + offset
}
