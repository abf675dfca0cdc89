// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/cookbook"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/harness"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/issue"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/recorder"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/remote"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/trace"
)

// issueStyle is the glamour style used for issue guidance.
const issueStyle = "dark"

// ServiceError is an error that carries rendering information for the CLI
// layer: a styled message and an optional issue catalog entry.
// Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError prints the styled message, then the issue guidance.
func renderServiceError(stderr io.Writer, svcErr *ServiceError) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if svcErr.IssueID == 0 {
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render(issueStyle)
		if renderErr != nil {
			log.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
		} else {
			fmt.Fprint(stderr, rendered)
		}
	}
}

// classifyRunError maps a cookbook run failure to its issue catalog entry.
// Trace problems come first: a replayed run that failed for a trace reason
// usually also fails the cookbook.
func classifyRunError(err error) issue.Id {
	switch {
	case errors.Is(err, recorder.ErrConfiguration):
		return issue.ModeConfigurationId
	case errors.Is(err, cookbook.ErrUnknownCookbook):
		return issue.CookbookNotFoundId
	case errors.Is(err, trace.ErrMalformedTrace):
		return issue.MalformedTraceId
	case errors.Is(err, harness.ErrLiveCall):
		return issue.LiveCallDuringReplayId
	case errors.Is(err, trace.ErrExhaustedTrace):
		return issue.ExhaustedTraceId
	case errors.Is(err, recorder.ErrParamsMismatch):
		return issue.ParamsMismatchId
	case errors.Is(err, recorder.ErrPersistRecording):
		return issue.PersistRecordingFailedId
	case errors.Is(err, recorder.ErrUnreplayedEntries):
		return issue.UnreplayedEntriesId
	case errors.Is(err, remote.ErrCommandFailed):
		return issue.RemoteCommandFailedId
	default:
		return 0
	}
}

func exitCodeFor(err error) int {
	if errors.Is(err, cookbook.ErrUsage) || errors.Is(err, recorder.ErrConfiguration) {
		return ExitUsage
	}
	return ExitFailure
}
