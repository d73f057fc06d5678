// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package runner

import (
	"golang.org/x/sync/errgroup"
)

// Execute runs the plan's trials in order. Invalid plans produce a single
// failed result carrying the configuration error, reported before any
// trial executes.
func Execute(plan *Plan) []Result {
	if plan.Kind == SuiteInvalid {
		return invalidResults(plan)
	}
	results := make([]Result, len(plan.Trials))
	for i, t := range plan.Trials {
		results[i] = t.Run()
	}
	return results
}

// ExecuteParallel runs up to procs trials concurrently. Trials are
// independent: each owns its entropy log, choice source and coverage
// counters, and sibling order only matters for seed assignment, which
// Distribute has already fixed.
func ExecuteParallel(plan *Plan, procs int) []Result {
	if plan.Kind == SuiteInvalid {
		return invalidResults(plan)
	}
	if procs < 1 {
		procs = 1
	}
	results := make([]Result, len(plan.Trials))
	var eg errgroup.Group
	eg.SetLimit(procs)
	for i, t := range plan.Trials {
		i, t := i, t
		eg.Go(func() error {
			results[i] = t.Run()
			return nil
		})
	}
	eg.Wait()
	return results
}

func invalidResults(plan *Plan) []Result {
	return []Result{{
		Name:     "suite",
		Failures: []Failure{{Description: plan.Message}},
	}}
}
