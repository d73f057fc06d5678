// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package entropy

// Shrink minimizes a failing (value, log) pair into an equivalent simpler
// pair using the failure predicate failed. It iteratively replays the
// generator against transformed logs and asks failed whether the produced
// value still reproduces the original failure. If it does and the consumed
// log is strictly simpler, the transformation is committed and the process
// continues. The result is a local fixed point: no enumerated transform
// yields a further acceptable simplification.
func Shrink[T any](gen func(Source) T, failed func(T) bool, val T, log *Log) (T, *Log) {
	ctx := &shrinkCtx[T]{
		gen:    gen,
		failed: failed,
		val:    val,
		log:    log.Clone(),
	}
	for {
		accepted := false
		// The candidate list depends on the log's length and contents, so
		// it is regenerated after every accepted transform. Candidates
		// whose minimum required length no longer holds are simply never
		// produced from the shorter log.
		for _, tr := range candidates(ctx.log.Len()) {
			if tr.minLen > ctx.log.Len() {
				continue
			}
			if tr.apply(ctx) {
				accepted = true
				break
			}
		}
		if !accepted {
			return ctx.val, ctx.log
		}
	}
}

type shrinkCtx[T any] struct {
	gen    func(Source) T
	failed func(T) bool
	val    T
	log    *Log
}

// shrinkState is the narrow view of the search state that transforms
// operate through.
type shrinkState interface {
	length() int
	get(i int) uint64
	// edit returns a fresh copy of the current log for a transform to
	// mutate into a candidate.
	edit() *Log
	// try replays the generator against the candidate log. It accepts, and
	// reports true, only if generation succeeds, the value still fails,
	// and the consumed log is strictly simpler than the current one.
	try(cand *Log) bool
}

func (ctx *shrinkCtx[T]) length() int {
	return ctx.log.Len()
}

func (ctx *shrinkCtx[T]) get(i int) uint64 {
	v, _ := ctx.log.Get(i)
	return v
}

func (ctx *shrinkCtx[T]) edit() *Log {
	return ctx.log.Clone()
}

func (ctx *shrinkCtx[T]) try(cand *Log) bool {
	src := NewReplay(cand)
	v, err := Run(ctx.gen, src)
	if err != nil {
		// Rejected candidates (usually replay overrun) are skipped,
		// never escalated.
		return false
	}
	consumed := src.Consumed()
	if consumed.Compare(ctx.log) >= 0 {
		return false
	}
	if !ctx.failed(v) {
		return false
	}
	ctx.val = v
	ctx.log = consumed
	return true
}
