// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package runner

import (
	"fmt"
	"strings"

	"github.com/falsify/falsify/pkg/hash"
)

// Tree is one node of a trial tree: a unit trial, a fuzz trial, a labeled
// group, a skip/only marker, or a batch of children. The tree is built by
// the host's description API and traversed here exactly once to assign
// seeds and classify the runnable set.
type Tree interface {
	node()
}

type batchNode struct {
	children []Tree
}

type labelNode struct {
	label string
	child Tree
}

type markNode struct {
	skip  bool // otherwise only
	child Tree
}

type unitNode struct {
	name string
	run  func() error
}

type fuzzNode struct {
	name string
	run  func(seed uint64, runs int) ([]Failure, string)
}

func (*batchNode) node() {}
func (*labelNode) node() {}
func (*markNode) node()  {}
func (*unitNode) node()  {}
func (*fuzzNode) node()  {}

// Batch groups children without introducing a label or affecting seeds.
func Batch(children ...Tree) Tree {
	return &batchNode{children: children}
}

// Group labels a subtree. The label derives the seed for everything nested
// under it; the sibling continuation resumes from the unlabeled seed.
func Group(label string, children ...Tree) Tree {
	return &labelNode{label: label, child: Batch(children...)}
}

// Skip marks a subtree as skipped. It is still walked for seed purposes.
func Skip(child Tree) Tree {
	return &markNode{skip: true, child: child}
}

// Only restricts the run to the marked subtrees.
func Only(child Tree) Tree {
	return &markNode{child: child}
}

// Unit creates a trial that consumes no seed.
func Unit(name string, fn func() error) Tree {
	return &unitNode{name: name, run: func() error {
		return callSafe(fn)
	}}
}

// Kind classifies a distributed suite.
type Kind int

const (
	SuitePlain Kind = iota
	SuiteOnly
	SuiteSkipping
	SuiteInvalid
)

func (k Kind) String() string {
	switch k {
	case SuitePlain:
		return "Plain"
	case SuiteOnly:
		return "Only"
	case SuiteSkipping:
		return "Skipping"
	case SuiteInvalid:
		return "Invalid"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Trial is one runnable (or skipped) leaf of the distributed suite.
type Trial struct {
	Name    string
	Skipped bool
	run     func() Result
}

// Run executes the trial's zero-argument action.
func (t *Trial) Run() Result {
	if t.Skipped {
		return Result{Name: t.Name, Skipped: true}
	}
	return t.run()
}

// Plan is the outcome of distributing seeds over a trial tree.
type Plan struct {
	Kind    Kind
	Message string // for SuiteInvalid
	Trials  []*Trial
}

// Options configures seed distribution.
type Options struct {
	// Runs is the default per-fuzz-trial run count. Values below 1 are
	// rejected before any trial executes.
	Runs int
}

// Distribute walks the trial tree once, left to right, threading an
// evolving seed: unit trials consume nothing, each fuzz trial splits off
// one independent sub-seed, and group labels derive their subtree seed by
// hashing the label with the unmodified incoming seed. Which trials are
// later filtered to run does not affect the assignment, so isolating one
// labeled trial reproduces the seed it received as part of the full run.
func Distribute(root Tree, seed uint64, opts Options) *Plan {
	if opts.Runs < 1 {
		return &Plan{
			Kind:    SuiteInvalid,
			Message: fmt.Sprintf("run count must be at least 1, got %v", opts.Runs),
		}
	}
	w := &walker{
		runs:  opts.Runs,
		names: make(map[string]bool),
	}
	w.walk(root, seed)
	if w.invalid != "" {
		return &Plan{Kind: SuiteInvalid, Message: w.invalid}
	}
	plan := &Plan{Kind: SuitePlain, Trials: w.trials}
	switch {
	case len(w.only) > 0:
		// A marker wrapping a subtree with no trials contributes nothing
		// to the only set and must not affect classification.
		plan.Kind = SuiteOnly
		for _, t := range w.trials {
			t.Skipped = !w.only[t]
		}
	case w.anySkip:
		// All non-skip-marked trials still run, but the overall run is
		// incomplete.
		plan.Kind = SuiteSkipping
	}
	return plan
}

type walker struct {
	runs    int
	path    []string
	trials  []*Trial
	names   map[string]bool
	only    map[*Trial]bool
	anySkip bool
	inSkip  int
	inOnly  int
	invalid string
}

// walk visits t and returns the seed the sibling continuation resumes from.
func (w *walker) walk(t Tree, seed uint64) uint64 {
	if w.invalid != "" {
		return seed
	}
	switch n := t.(type) {
	case *batchNode:
		for _, c := range n.children {
			seed = w.walk(c, seed)
		}
		return seed
	case *labelNode:
		if !w.checkName(n.label, "group") {
			return seed
		}
		w.path = append(w.path, n.label)
		w.walk(n.child, hash.Label(seed, n.label))
		w.path = w.path[:len(w.path)-1]
		return seed
	case *markNode:
		if n.skip {
			w.inSkip++
			seed = w.walk(n.child, seed)
			w.inSkip--
		} else {
			w.inOnly++
			seed = w.walk(n.child, seed)
			w.inOnly--
		}
		return seed
	case *unitNode:
		if !w.checkName(n.name, "trial") {
			return seed
		}
		w.add(n.name, nil, n.run)
		return seed
	case *fuzzNode:
		if !w.checkName(n.name, "trial") {
			return seed
		}
		next, sub := hash.Split(seed)
		run := n.run
		runs := w.runs
		w.add(n.name, func(name string) Result {
			failures, report := run(sub, runs)
			return Result{Name: name, Failures: failures, Report: report}
		}, nil)
		return next
	default:
		panic(fmt.Sprintf("unknown tree node %T", t))
	}
}

func (w *walker) checkName(name, kind string) bool {
	if strings.TrimSpace(name) == "" {
		w.invalid = fmt.Sprintf("blank %v name", kind)
		return false
	}
	// Group and trial names share one namespace: two sibling groups with
	// the same label would derive identical subtree seeds and re-run the
	// same inputs, so a repeated full path is a configuration error.
	full := strings.Join(append(w.path, name), " / ")
	if w.names[full] {
		w.invalid = fmt.Sprintf("duplicate %v name %q", kind, full)
		return false
	}
	w.names[full] = true
	return true
}

func (w *walker) add(name string, fuzz func(string) Result, unit func() error) {
	full := strings.Join(append(w.path, name), " / ")
	trial := &Trial{Name: full, Skipped: w.inSkip > 0}
	if trial.Skipped {
		w.anySkip = true
	}
	if fuzz != nil {
		trial.run = func() Result { return fuzz(full) }
	} else {
		trial.run = func() Result {
			res := Result{Name: full}
			if err := unit(); err != nil {
				res.Failures = []Failure{{Description: err.Error(), Reason: err}}
			}
			return res
		}
	}
	if w.inOnly > 0 {
		if w.only == nil {
			w.only = make(map[*Trial]bool)
		}
		w.only[trial] = true
	}
	w.trials = append(w.trials, trial)
}
