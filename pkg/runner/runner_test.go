// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package runner

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falsify/falsify/gen"
	"github.com/falsify/falsify/pkg/coverage"
)

func okFuzz(name string) Tree {
	return Fuzz(name, Property[int]{
		Gen:   gen.IntRange(0, 100),
		Check: func(int) error { return nil },
	})
}

func TestDistributeClassification(t *testing.T) {
	opts := Options{Runs: 10}
	tests := []struct {
		name string
		root Tree
		kind Kind
	}{
		{
			name: "plain",
			root: Batch(okFuzz("a"), Unit("b", func() error { return nil })),
			kind: SuitePlain,
		},
		{
			name: "skip",
			root: Batch(okFuzz("a"), Skip(okFuzz("b"))),
			kind: SuiteSkipping,
		},
		{
			name: "only",
			root: Batch(okFuzz("a"), Only(okFuzz("b"))),
			kind: SuiteOnly,
		},
		{
			name: "only wins over skip",
			root: Batch(Skip(okFuzz("a")), Only(okFuzz("b")), okFuzz("c")),
			kind: SuiteOnly,
		},
		{
			name: "blank trial name",
			root: Batch(okFuzz("  ")),
			kind: SuiteInvalid,
		},
		{
			name: "blank group name",
			root: Group("", okFuzz("a")),
			kind: SuiteInvalid,
		},
		{
			name: "duplicate name",
			root: Batch(okFuzz("a"), okFuzz("a")),
			kind: SuiteInvalid,
		},
		{
			name: "duplicate group name",
			root: Batch(Group("g", okFuzz("a")), Group("g", okFuzz("b"))),
			kind: SuiteInvalid,
		},
		{
			name: "group name clashes with trial name",
			root: Batch(Group("g", okFuzz("a")), okFuzz("g")),
			kind: SuiteInvalid,
		},
		{
			name: "same leaf name in different groups",
			root: Batch(Group("g1", okFuzz("a")), Group("g2", okFuzz("a"))),
			kind: SuitePlain,
		},
		{
			name: "same label nested along one path",
			root: Group("g", Group("g", okFuzz("a"))),
			kind: SuitePlain,
		},
		{
			name: "only marker with no trials",
			root: Batch(okFuzz("a"), Only(Group("empty"))),
			kind: SuitePlain,
		},
		{
			name: "skip marker with no trials",
			root: Batch(okFuzz("a"), Skip(Batch())),
			kind: SuitePlain,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			plan := Distribute(test.root, 1, opts)
			assert.Equal(t, test.kind, plan.Kind)
			if test.kind == SuiteInvalid {
				assert.NotEmpty(t, plan.Message)
				assert.Empty(t, plan.Trials)
			}
		})
	}
}

func TestDuplicateGroupNames(t *testing.T) {
	// Two sibling groups with the same label would derive identical
	// subtree seeds and feed their trials identical inputs.
	plan := Distribute(Batch(
		Group("g", okFuzz("a")),
		Group("g", okFuzz("b")),
	), 1, Options{Runs: 1})
	require.Equal(t, SuiteInvalid, plan.Kind)
	assert.Contains(t, plan.Message, `duplicate group name "g"`)
	assert.Empty(t, plan.Trials)
}

func TestOnlyEmptySubtreeRunsEverything(t *testing.T) {
	plan := Distribute(Batch(
		okFuzz("a"),
		Only(Group("empty")),
		okFuzz("b"),
	), 1, Options{Runs: 1})
	require.Equal(t, SuitePlain, plan.Kind)
	require.Len(t, plan.Trials, 2)
	for _, trial := range plan.Trials {
		assert.False(t, trial.Skipped, "%v must run", trial.Name)
	}
}

func TestDistributeInvalidRuns(t *testing.T) {
	for _, runs := range []int{0, -1} {
		plan := Distribute(okFuzz("a"), 1, Options{Runs: runs})
		assert.Equal(t, SuiteInvalid, plan.Kind)
		assert.Contains(t, plan.Message, "run count")
	}
}

func TestDistributeOnlySkipsRest(t *testing.T) {
	plan := Distribute(Batch(
		okFuzz("a"),
		Only(okFuzz("b")),
		Skip(okFuzz("c")),
	), 1, Options{Runs: 5})
	require.Equal(t, SuiteOnly, plan.Kind)
	skipped := map[string]bool{}
	for _, trial := range plan.Trials {
		skipped[trial.Name] = trial.Skipped
	}
	want := map[string]bool{"a": true, "b": false, "c": true}
	if diff := cmp.Diff(want, skipped); diff != "" {
		t.Fatalf("skipped set mismatch (-want +got):\n%v", diff)
	}
}

// seedRecorder builds a fuzz leaf that records the seed it was assigned.
func seedRecorder(name string, out map[string]uint64) Tree {
	return &fuzzNode{name: name, run: func(seed uint64, runs int) ([]Failure, string) {
		out[name] = seed
		return nil, ""
	}}
}

// collectSeeds distributes and runs every trial, skip marks included, so
// the recorder maps capture the full seed assignment.
func collectSeeds(t *testing.T, root Tree) {
	t.Helper()
	plan := Distribute(root, 12345, Options{Runs: 1})
	require.NotEqual(t, SuiteInvalid, plan.Kind, plan.Message)
	for _, trial := range plan.Trials {
		trial.Skipped = false
		trial.Run()
	}
}

func TestSeedAssignmentStable(t *testing.T) {
	// Seeds assigned to labeled subtrees must not depend on what else runs:
	// isolating one group with Only, or deleting an unrelated sibling group,
	// must reproduce the exact per-trial seeds of the full run.
	full := map[string]uint64{}
	collectSeeds(t, Batch(
		Group("fast", seedRecorder("x", full), seedRecorder("y", full)),
		Group("slow", seedRecorder("z", full)),
	))
	require.Len(t, full, 3)
	assert.NotEqual(t, full["x"], full["y"])
	assert.NotEqual(t, full["x"], full["z"])

	isolated := map[string]uint64{}
	collectSeeds(t, Batch(
		Group("fast", seedRecorder("x", isolated), seedRecorder("y", isolated)),
		Only(Group("slow", seedRecorder("z", isolated))),
	))
	assert.Equal(t, full, isolated)

	trimmed := map[string]uint64{}
	collectSeeds(t, Batch(
		Group("fast", seedRecorder("x", trimmed), seedRecorder("y", trimmed)),
	))
	assert.Equal(t, full["x"], trimmed["x"])
	assert.Equal(t, full["y"], trimmed["y"])
}

func TestSeedAssignmentSiblingOrder(t *testing.T) {
	// Unlabeled sibling fuzz trials split consecutive seeds, so dropping
	// the first one changes the second's seed; grouping restores stability.
	a := map[string]uint64{}
	collectSeeds(t, Batch(seedRecorder("x", a), seedRecorder("y", a)))
	b := map[string]uint64{}
	collectSeeds(t, Batch(seedRecorder("y", b)))
	assert.NotEqual(t, a["y"], b["y"])
}

func TestTrialNames(t *testing.T) {
	plan := Distribute(Batch(
		Group("outer", Group("inner", okFuzz("leaf")), okFuzz("mid")),
		okFuzz("top"),
	), 1, Options{Runs: 1})
	require.Equal(t, SuitePlain, plan.Kind)
	var names []string
	for _, trial := range plan.Trials {
		names = append(names, trial.Name)
	}
	want := []string{"outer / inner / leaf", "outer / mid", "top"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("trial names mismatch (-want +got):\n%v", diff)
	}
}

func run1(t *testing.T, root Tree, runs int) []Result {
	t.Helper()
	return Execute(Distribute(root, 99, Options{Runs: runs}))
}

func TestFuzzShrinksToMinimal(t *testing.T) {
	tree := Fuzz("large values fail", Property[int]{
		Gen: gen.IntRange(0, 10000),
		Check: func(v int) error {
			if v >= 10 {
				return fmt.Errorf("got %v, want below 10", v)
			}
			return nil
		},
	})
	results := run1(t, tree, 200)
	require.Len(t, results, 1)
	require.Len(t, results[0].Failures, 1)
	// The minimal still-failing input is the boundary itself.
	assert.Equal(t, "10", results[0].Failures[0].Counterexample)
	assert.Contains(t, results[0].Failures[0].Description, "got 10")
}

func TestFuzzPasses(t *testing.T) {
	results := run1(t, okFuzz("all good"), 100)
	require.Len(t, results, 1)
	assert.True(t, results[0].Ok())
	assert.Empty(t, results[0].Failures)
	assert.Empty(t, results[0].Report)
}

func TestPredicatePanicBecomesFailure(t *testing.T) {
	tree := Fuzz("panics", Property[int]{
		Gen:   gen.IntRange(0, 100),
		Check: func(v int) error { panic("boom") },
	})
	results := run1(t, tree, 10)
	require.Len(t, results, 1)
	require.Len(t, results[0].Failures, 1)
	assert.Contains(t, results[0].Failures[0].Description, "predicate panicked: boom")
}

func TestUnitTrial(t *testing.T) {
	failErr := errors.New("unit failed")
	results := run1(t, Batch(
		Unit("passes", func() error { return nil }),
		Unit("fails", func() error { return failErr }),
		Unit("panics", func() error { panic("unit boom") }),
	), 1)
	require.Len(t, results, 3)
	assert.True(t, results[0].Ok())
	require.Len(t, results[1].Failures, 1)
	assert.ErrorIs(t, results[1].Failures[0].Reason, failErr)
	require.Len(t, results[2].Failures, 1)
	assert.Contains(t, results[2].Failures[0].Description, "trial panicked: unit boom")
}

func TestGenerationExhaustion(t *testing.T) {
	tree := Fuzz("impossible filter", Property[int]{
		Gen:   gen.Filter(gen.IntRange(0, 100), func(int) bool { return false }),
		Check: func(int) error { return nil },
	})
	results := run1(t, tree, 10)
	require.Len(t, results, 1)
	require.Len(t, results[0].Failures, 1)
	assert.Contains(t, results[0].Failures[0].Description, "failed to generate a value")
	assert.Empty(t, results[0].Failures[0].Counterexample)
}

func TestRunsOverride(t *testing.T) {
	count := 0
	tree := Fuzz("counting", Property[int]{
		Gen:   gen.IntRange(0, 100),
		Check: func(int) error { count++; return nil },
		Runs:  7,
	})
	run1(t, tree, 100)
	assert.Equal(t, 7, count)
}

func evenLabel() coverage.Label[int] {
	return coverage.Label[int]{Name: "even", Match: func(v int) bool { return v%2 == 0 }}
}

func TestCoverageReportMode(t *testing.T) {
	tree := Fuzz("report", Property[int]{
		Gen:    gen.IntRange(0, 100),
		Check:  func(int) error { return nil },
		Labels: []coverage.Label[int]{evenLabel()},
		Mode:   CoverageReport,
	})
	results := run1(t, tree, 100)
	require.Len(t, results, 1)
	assert.True(t, results[0].Ok())
	assert.Contains(t, results[0].Report, "even")
	assert.Contains(t, results[0].Report, "%")
}

func TestCoverageCheckedSatisfied(t *testing.T) {
	// Roughly half the values are even, comfortably above 30%.
	tree := Fuzz("checked", Property[int]{
		Gen:    gen.IntRange(0, 100),
		Check:  func(int) error { return nil },
		Expect: []coverage.Expectation[int]{coverage.ExpectAtLeast(evenLabel(), 30)},
		Mode:   CoverageChecked,
	})
	results := run1(t, tree, 100)
	require.Len(t, results, 1)
	assert.True(t, results[0].Ok(), "failures: %+v", results[0].Failures)
	assert.NotEmpty(t, results[0].Report)
}

func TestCoverageCheckedViolated(t *testing.T) {
	never := coverage.Label[int]{Name: "huge", Match: func(v int) bool { return v > 100 }}
	tree := Fuzz("checked", Property[int]{
		Gen:    gen.IntRange(0, 100),
		Check:  func(int) error { return nil },
		Expect: []coverage.Expectation[int]{coverage.ExpectAtLeast(never, 30)},
		Mode:   CoverageChecked,
	})
	results := run1(t, tree, 100)
	require.Len(t, results, 1)
	require.Len(t, results[0].Failures, 1)
	var derr *coverage.DistributionError
	require.ErrorAs(t, results[0].Failures[0].Reason, &derr)
	assert.Equal(t, "huge", derr.Label)
	assert.NotEmpty(t, results[0].Report)
}

func TestCoverageCheckedZero(t *testing.T) {
	negative := coverage.Label[int]{Name: "negative", Match: func(v int) bool { return v < 0 }}
	tree := Fuzz("checked", Property[int]{
		Gen:    gen.IntRange(0, 100),
		Check:  func(int) error { return nil },
		Expect: []coverage.Expectation[int]{coverage.ExpectZero(negative)},
		Mode:   CoverageChecked,
	})
	results := run1(t, tree, 100)
	require.Len(t, results, 1)
	assert.True(t, results[0].Ok(), "failures: %+v", results[0].Failures)
}

func TestSkippedTrialDoesNotRun(t *testing.T) {
	ran := false
	results := run1(t, Batch(
		Skip(Unit("skipped", func() error { ran = true; return nil })),
		Unit("kept", func() error { return nil }),
	), 1)
	require.Len(t, results, 2)
	assert.True(t, results[0].Skipped)
	assert.False(t, results[0].Ok())
	assert.False(t, ran)
	assert.True(t, results[1].Ok())
}

func TestExecuteParallel(t *testing.T) {
	var trees []Tree
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("trial %v", i)
		if i%3 == 0 {
			trees = append(trees, Fuzz(name, Property[int]{
				Gen: gen.IntRange(0, 1000),
				Check: func(v int) error {
					if v >= 500 {
						return errors.New("too big")
					}
					return nil
				},
			}))
		} else {
			trees = append(trees, okFuzz(name))
		}
	}
	root := Batch(trees...)
	sequential := Execute(Distribute(root, 7, Options{Runs: 50}))
	parallel := ExecuteParallel(Distribute(root, 7, Options{Runs: 50}), 4)
	require.Len(t, parallel, len(sequential))
	for i := range sequential {
		assert.Equal(t, sequential[i].Name, parallel[i].Name)
		assert.Equal(t, sequential[i].Failures, parallel[i].Failures)
	}
}

func TestExecuteInvalidPlan(t *testing.T) {
	for _, exec := range []func(*Plan) []Result{
		Execute,
		func(p *Plan) []Result { return ExecuteParallel(p, 4) },
	} {
		results := exec(Distribute(okFuzz(""), 1, Options{Runs: 1}))
		require.Len(t, results, 1)
		require.Len(t, results[0].Failures, 1)
		assert.Contains(t, results[0].Failures[0].Description, "blank")
	}
}

func TestKindString(t *testing.T) {
	kinds := map[Kind]string{
		SuitePlain:    "Plain",
		SuiteOnly:     "Only",
		SuiteSkipping: "Skipping",
		SuiteInvalid:  "Invalid",
	}
	for k, want := range kinds {
		assert.Equal(t, want, k.String())
	}
	assert.True(t, strings.HasPrefix(Kind(42).String(), "Kind("))
}
