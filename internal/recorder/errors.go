// SPDX-License-Identifier: MPL-2.0

package recorder

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreplayedEntries is the sentinel wrapped by UnreplayedEntriesError.
	ErrUnreplayedEntries = errors.New("recorded entries were not replayed")
	// ErrParamsMismatch is the sentinel wrapped by ParamsMismatchError.
	ErrParamsMismatch = errors.New("call parameters do not match the recording")
	// ErrRecordedFailure is the sentinel wrapped by RecordedFailure.
	ErrRecordedFailure = errors.New("recorded failure")
	// ErrPersistRecording is returned when a recorded call cannot be written to disk.
	ErrPersistRecording = errors.New("failed to persist recording")
)

type (
	// UnreplayedEntriesError is returned when a replayed run ends before the
	// recording was fully served.
	UnreplayedEntriesError struct {
		// Path is the trace file.
		Path string
		// Calls is the number of calls the run made.
		Calls int
		// NextRecord is the index of the first record that was not fully served.
		NextRecord int
		// Records is the length of the trace.
		Records int
	}

	// ParamsMismatchError is returned by strict replay when the live call does not
	// carry the parameters stored in the record that answers it.
	ParamsMismatchError struct {
		Index    int
		Recorded string
		Live     string
	}

	// RecordedFailure is a failure captured during recording and raised again
	// during replay. Failures with an exit code are replayed as
	// *remote.CommandError instead.
	RecordedFailure struct {
		Message string
	}
)

// Error implements the error interface.
func (e *UnreplayedEntriesError) Error() string {
	return fmt.Sprintf("not all the entries in the record %s were replayed: %d calls made, stopped at record %d of %d",
		e.Path, e.Calls, e.NextRecord+1, e.Records)
}

// Unwrap returns ErrUnreplayedEntries for errors.Is() compatibility.
func (e *UnreplayedEntriesError) Unwrap() error { return ErrUnreplayedEntries }

// Error implements the error interface.
func (e *ParamsMismatchError) Error() string {
	return fmt.Sprintf("call parameters do not match record %d\nrecorded:\n%s\nlive:\n%s", e.Index, e.Recorded, e.Live)
}

// Unwrap returns ErrParamsMismatch for errors.Is() compatibility.
func (e *ParamsMismatchError) Unwrap() error { return ErrParamsMismatch }

// Error implements the error interface.
func (e *RecordedFailure) Error() string { return e.Message }

// Unwrap returns ErrRecordedFailure for errors.Is() compatibility.
func (e *RecordedFailure) Unwrap() error { return ErrRecordedFailure }
