// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package runner orchestrates fuzz trials: repeated generation and
// predicate evaluation, shrinking of the first failure into a minimal
// counterexample, coverage accounting, and seed distribution over a tree
// of named trials.
package runner

import (
	"fmt"
	"math/rand"

	"github.com/falsify/falsify/entropy"
	"github.com/falsify/falsify/gen"
	"github.com/falsify/falsify/pkg/coverage"
	"github.com/falsify/falsify/pkg/log"
	"github.com/falsify/falsify/pkg/stat"
)

var (
	statTrials = stat.New("trials", "fuzz trials executed",
		stat.Rate{}, stat.Prometheus("falsify_trials_total"))
	statRejects = stat.New("gen rejects", "generation attempts discarded and resampled",
		stat.Rate{}, stat.Prometheus("falsify_gen_rejects_total"))
	statShrinkEvals = stat.New("shrink evals", "predicate evaluations spent shrinking",
		stat.Rate{})
	statShrunk = stat.New("shrunk", "failures reduced to a minimal counterexample")
	statLogLen = stat.New("entropy per trial", "choices consumed per generated value",
		stat.Distribution{})
)

// Failure is one pass/fail outcome's fail side: a description, the rendered
// minimal counterexample for fuzz failures, and an optional structured
// reason (e.g. *coverage.DistributionError).
type Failure struct {
	Description    string
	Counterexample string
	Reason         error
}

// Result is the outcome of running one trial.
type Result struct {
	Name     string
	Failures []Failure
	Report   string // distribution report, when coverage is enabled
	Skipped  bool
}

// Ok reports whether the trial passed.
func (r Result) Ok() bool {
	return !r.Skipped && len(r.Failures) == 0
}

// CoverageMode selects what the trial loop does with label counts.
type CoverageMode int

const (
	// CoverageOff collects nothing.
	CoverageOff CoverageMode = iota
	// CoverageReport runs exactly the configured trial count and renders
	// the accumulated counts; it never causes failure.
	CoverageReport
	// CoverageChecked evaluates the distribution requirements after the
	// configured trial count, growing the sample adaptively until they
	// are confidently satisfied or violated.
	CoverageChecked
)

// Property describes one fuzz trial: a generator, a predicate, and the
// optional coverage configuration.
type Property[T any] struct {
	Gen   gen.Gen[T]
	Check func(T) error

	Labels []coverage.Label[T]
	Expect []coverage.Expectation[T]
	Mode   CoverageMode

	// Runs overrides the suite-wide run count when positive.
	Runs int
	// Render formats the minimal counterexample; %v by default.
	Render func(T) string
}

// Fuzz creates a fuzz trial from a property.
func Fuzz[T any](name string, p Property[T]) Tree {
	return &fuzzNode{name: name, run: p.run}
}

// maxGenAttempts bounds consecutive rejected generation attempts before
// the trial reports a failure instead of resampling forever.
const maxGenAttempts = 100

// maxCoverageSamples bounds the sequential procedure for requirements that
// sit exactly on their threshold and would otherwise never decide.
const maxCoverageSamples = 1 << 20

func (p Property[T]) run(seed uint64, defaultRuns int) ([]Failure, string) {
	runs := defaultRuns
	if p.Runs > 0 {
		runs = p.Runs
	}
	render := p.Render
	if render == nil {
		render = func(v T) string { return fmt.Sprintf("%v", v) }
	}
	tracker := coverage.NewTracker(p.trackedLabels())
	rnd := rand.New(rand.NewSource(int64(seed)))

	one := func() (Failure, bool) {
		v, logOf, err := p.generate(rnd)
		if err != nil {
			return Failure{Description: err.Error(), Reason: err}, false
		}
		statTrials.Add(1)
		statLogLen.Add(logOf.Len())
		tracker.Observe(v)
		cerr := checkValue(p.Check, v)
		if cerr == nil {
			return Failure{}, true
		}
		log.Logf(1, "trial seed=%v failed: %v, shrinking from %v choices", seed, cerr, logOf.Len())
		failed := func(v T) bool {
			statShrinkEvals.Add(1)
			return checkValue(p.Check, v) != nil
		}
		minV, minLog := entropy.Shrink(p.Gen, failed, v, logOf)
		statShrunk.Add(1)
		minErr := checkValue(p.Check, minV)
		if minErr == nil {
			// The shrinker must preserve failure; not doing so means the
			// predicate is flaky, report the original.
			minErr = cerr
		}
		log.Logf(2, "shrunk to %v choices: %v", minLog.Len(), minLog)
		return Failure{
			Description:    minErr.Error(),
			Counterexample: render(minV),
			Reason:         minErr,
		}, false
	}

	for i := 0; i < runs; i++ {
		if failure, ok := one(); !ok {
			return []Failure{failure}, p.report(tracker)
		}
	}

	if p.Mode == CoverageChecked {
		// The doubling counter is explicit loop state, never shared
		// across trials.
		for extra := 1; ; extra *= 2 {
			verdict, errs := tracker.Eval(p.Expect)
			if verdict == coverage.Satisfied {
				break
			}
			if verdict == coverage.Violated || tracker.Total() >= maxCoverageSamples {
				var failures []Failure
				for _, err := range errs {
					failures = append(failures, Failure{Description: err.Error(), Reason: err})
				}
				if len(failures) == 0 {
					failures = []Failure{{Description: fmt.Sprintf(
						"distribution undecided after %v samples", tracker.Total())}}
				}
				return failures, p.report(tracker)
			}
			log.Logf(2, "distribution undecided after %v samples, running %v more",
				tracker.Total(), extra)
			for j := 0; j < extra; j++ {
				if failure, ok := one(); !ok {
					return []Failure{failure}, p.report(tracker)
				}
			}
		}
	}
	return nil, p.report(tracker)
}

func (p Property[T]) report(tracker *coverage.Tracker[T]) string {
	if p.Mode == CoverageOff {
		return ""
	}
	return tracker.Report()
}

// trackedLabels merges explicit labels with the ones referenced by
// expectations, keeping declaration order.
func (p Property[T]) trackedLabels() []coverage.Label[T] {
	labels := append([]coverage.Label[T]{}, p.Labels...)
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		seen[l.Name] = true
	}
	for _, e := range p.Expect {
		if !seen[e.Label.Name] {
			seen[e.Label.Name] = true
			labels = append(labels, e.Label)
		}
	}
	return labels
}

// generate draws one value through a live source, resampling locally
// rejected attempts (filter exhaustion, entropy cap).
func (p Property[T]) generate(rnd *rand.Rand) (T, *entropy.Log, error) {
	var lastErr error
	for attempt := 0; attempt < maxGenAttempts; attempt++ {
		src := entropy.NewLive(rand.NewSource(rnd.Int63()))
		v, err := entropy.Run(p.Gen, src)
		if err == nil {
			return v, src.Log(), nil
		}
		statRejects.Add(1)
		lastErr = err
	}
	var zero T
	return zero, nil, fmt.Errorf("failed to generate a value in %v attempts: %w",
		maxGenAttempts, lastErr)
}

// checkValue evaluates the predicate, converting a panic into a failure
// embedding the underlying fault. Predicate faults never crash the suite.
func checkValue[T any](check func(T) error, v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predicate panicked: %v", r)
		}
	}()
	return check(v)
}

// callSafe runs a unit trial body with the same panic conversion.
func callSafe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trial panicked: %v", r)
		}
	}()
	return fn()
}
