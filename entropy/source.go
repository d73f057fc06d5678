// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package entropy

import (
	"math"
	"math/rand"
)

// Source produces the next bounded choice on demand. A generator built on
// top of Source must issue choices in the same order for the same value
// shape; that determinism is what makes replaying an edited log meaningful.
type Source interface {
	// Draw returns a choice in [0, bound]. It may abort the current
	// generation attempt by panicking with *RejectError; use Run to drive
	// a generator and observe rejection as an error.
	Draw(bound uint64) uint64
}

// RejectError aborts one generation attempt. It is local to the attempt:
// during fresh generation the trial loop resamples, during shrinking the
// candidate is skipped. It is never an engine fault.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string {
	return "generation rejected: " + e.Reason
}

// Reject aborts the current generation attempt with the given reason.
// Generator combinators call it when filtering discards too many
// candidates.
func Reject(reason string) {
	panic(&RejectError{Reason: reason})
}

// LiveSource draws fresh choices from a seeded random stream and records
// every draw in an accumulating log.
type LiveSource struct {
	rnd *rand.Rand
	log *Log
}

// NewLive returns a live source drawing from rs.
func NewLive(rs rand.Source) *LiveSource {
	return &LiveSource{
		rnd: rand.New(rs),
		log: NewLog(),
	}
}

func (s *LiveSource) Draw(bound uint64) uint64 {
	if s.log.Len() >= MaxLen {
		Reject("exceeded entropy cap")
	}
	v := randUint64n(s.rnd, bound)
	s.log.Append(v)
	return v
}

// Log returns the choices recorded so far.
func (s *LiveSource) Log() *Log {
	return s.log
}

func randUint64n(rnd *rand.Rand, bound uint64) uint64 {
	switch {
	case bound == 0:
		return 0
	case bound < math.MaxInt64:
		return uint64(rnd.Int63n(int64(bound + 1)))
	case bound == math.MaxUint64:
		return rnd.Uint64()
	default:
		// Rejection sampling, accepts with probability >= 1/2.
		for {
			if v := rnd.Uint64(); v <= bound {
				return v
			}
		}
	}
}

// ReplaySource feeds a generator from a fixed, previously recorded log.
// Recorded values above the requested bound are clamped, never
// re-randomized, so an edited log still replays deterministically.
type ReplaySource struct {
	log      *Log
	consumed *Log
}

// NewReplay returns a replay source over a copy of log.
func NewReplay(log *Log) *ReplaySource {
	return &ReplaySource{
		log:      log.Clone(),
		consumed: NewLog(),
	}
}

func (s *ReplaySource) Draw(bound uint64) uint64 {
	v, ok := s.log.Next()
	if !ok {
		// Frequent and expected during shrinking: transformed logs are
		// often too short for the generator's structure.
		Reject("overrun")
	}
	if v > bound {
		v = bound
	}
	s.consumed.Append(v)
	return v
}

// Consumed returns the prefix actually consumed so far, with clamping
// applied. After a successful replay this is the canonical log for the
// produced value and may be shorter than the input log.
func (s *ReplaySource) Consumed() *Log {
	return s.consumed.Clone()
}

// Run drives gen with src and converts rejection panics into an error, so
// one generation attempt has exactly two outcomes: a value, or a
// *RejectError explaining why the attempt was discarded. Any other panic
// propagates.
func Run[T any](gen func(Source) T, src Source) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rej, ok := r.(*RejectError); ok {
				err = rej
				return
			}
			panic(r)
		}
	}()
	val = gen(src)
	return val, nil
}
