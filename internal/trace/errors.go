// SPDX-License-Identifier: MPL-2.0

package trace

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTrace is the sentinel wrapped by MalformedTraceError.
	ErrMalformedTrace = errors.New("malformed trace")
	// ErrExhaustedTrace is the sentinel wrapped by ExhaustedTraceError.
	ErrExhaustedTrace = errors.New("trace exhausted")
)

type (
	// MalformedTraceError is returned when a trace document cannot be parsed or a
	// record breaks the record invariants.
	MalformedTraceError struct {
		// Path is the trace file, when known.
		Path string
		// Index is the offending record, or -1 for document-level problems.
		Index int
		// Reason describes the problem.
		Reason string
	}

	// ExhaustedTraceError is returned when a replay asks for more calls than the
	// trace can answer. It means the run and the recording disagree on the
	// number of calls and is never retried.
	ExhaustedTraceError struct {
		// Calls is the number of calls served before exhaustion.
		Calls int
		// Records is the length of the trace.
		Records int
	}
)

// Error implements the error interface.
func (e *MalformedTraceError) Error() string {
	prefix := "malformed trace"
	if e.Path != "" {
		prefix += " " + e.Path
	}
	if e.Index >= 0 {
		return fmt.Sprintf("%s: record %d: %s", prefix, e.Index, e.Reason)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Reason)
}

// Unwrap returns ErrMalformedTrace for errors.Is() compatibility.
func (e *MalformedTraceError) Unwrap() error { return ErrMalformedTrace }

// Error implements the error interface.
func (e *ExhaustedTraceError) Error() string {
	return fmt.Sprintf("got more calls than found in the recording (requested call %d, recording length %d)",
		e.Calls+1, e.Records)
}

// Unwrap returns ErrExhaustedTrace for errors.Is() compatibility.
func (e *ExhaustedTraceError) Unwrap() error { return ErrExhaustedTrace }
