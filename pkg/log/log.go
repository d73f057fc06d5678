// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides functionality similar to the standard log package
// with some extensions:
//   - verbosity levels
//   - global verbosity setting shared by all engine packages
//   - an io.Writer adapter that logs at a fixed verbosity
package log

import (
	"flag"
	golog "log"
	"sync/atomic"
)

var flagV = flag.Int("falsify.vv", 0, "verbosity of engine logging")

// Trial loops run concurrently, so the override is atomic.
var verbosityOverride atomic.Int64

func init() {
	verbosityOverride.Store(-1)
}

// SetVerbosity overrides the -falsify.vv flag programmatically.
func SetVerbosity(v int) {
	verbosityOverride.Store(int64(v))
}

func verbosity() int {
	if v := verbosityOverride.Load(); v >= 0 {
		return int(v)
	}
	return *flagV
}

// V reports whether messages at verbosity v are currently emitted.
func V(v int) bool {
	return v <= verbosity()
}

// Logf writes a message if the current verbosity is at least v.
func Logf(v int, msg string, args ...interface{}) {
	if V(v) {
		golog.Printf(msg, args...)
	}
}

func Fatalf(msg string, args ...interface{}) {
	golog.Fatalf(msg, args...)
}

// VerboseWriter is an io.Writer that forwards everything written to it to
// Logf at the given verbosity.
type VerboseWriter int

func (w VerboseWriter) Write(data []byte) (int, error) {
	Logf(int(w), "%s", data)
	return len(data), nil
}
