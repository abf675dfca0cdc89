// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/cookbook"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/harness"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/issue"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/recorder"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/remote"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/trace"
)

func TestNewServiceError_PanicsOnNilErr(t *testing.T) {
	t.Parallel()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on nil Err, got none")
		}
		if msg, ok := r.(string); !ok || msg != "ServiceError: Err must not be nil" {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()

	newServiceError(nil, 0, "")
}

func TestServiceError_ErrorAndUnwrap(t *testing.T) {
	t.Parallel()

	underlying := errors.New("underlying error")
	svcErr := newServiceError(underlying, issue.ExhaustedTraceId, "")

	if svcErr.Error() != "underlying error" {
		t.Errorf("Error() = %q", svcErr.Error())
	}
	if !errors.Is(svcErr, underlying) {
		t.Error("errors.Is should find underlying error via Unwrap")
	}
}

func TestRenderServiceError(t *testing.T) {
	t.Parallel()

	t.Run("styled message only", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		renderServiceError(&buf, newServiceError(errors.New("x"), 0, "styled\n"))
		if buf.String() != "styled\n" {
			t.Errorf("output = %q", buf.String())
		}
	})

	t.Run("with issue guidance", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		renderServiceError(&buf, newServiceError(errors.New("x"), issue.UnreplayedEntriesId, "styled\n"))
		if !strings.HasPrefix(buf.String(), "styled\n") || buf.Len() <= len("styled\n") {
			t.Errorf("issue guidance should follow the styled message, got %q", buf.String())
		}
	})

	t.Run("nil is a no-op", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		renderServiceError(&buf, nil)
		if buf.Len() != 0 {
			t.Errorf("output = %q", buf.String())
		}
	})
}

func TestClassifyRunError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"mode", &recorder.ConfigurationError{Reason: "both"}, issue.ModeConfigurationId},
		{"unknown cookbook", fmt.Errorf("%w: wmcs.nope", cookbook.ErrUnknownCookbook), issue.CookbookNotFoundId},
		{"malformed", &trace.MalformedTraceError{Index: 1, Reason: "bad"}, issue.MalformedTraceId},
		{"exhausted", fmt.Errorf("cookbook failed: %w", &trace.ExhaustedTraceError{Calls: 3}), issue.ExhaustedTraceId},
		{"unreplayed", &recorder.UnreplayedEntriesError{Path: "t.yaml"}, issue.UnreplayedEntriesId},
		{"params", &recorder.ParamsMismatchError{Index: 0}, issue.ParamsMismatchId},
		{"persist", fmt.Errorf("%w t.yaml: disk full", recorder.ErrPersistRecording), issue.PersistRecordingFailedId},
		{"live call", fmt.Errorf("%w: reboot", harness.ErrLiveCall), issue.LiveCallDuringReplayId},
		{"remote command", &remote.CommandError{Host: "h", ExitCode: 1}, issue.RemoteCommandFailedId},
		{"exhausted wins over command failure", errors.Join(
			&remote.CommandError{Host: "h", ExitCode: 1},
			&trace.ExhaustedTraceError{Calls: 1},
		), issue.ExhaustedTraceId},
		{"other", errors.New("boom"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyRunError(tt.err); got != tt.want {
				t.Errorf("classifyRunError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{&cookbook.UsageError{Cookbook: "x", Err: errors.New("unknown flag")}, ExitUsage},
		{&recorder.ConfigurationError{Reason: "no file"}, ExitUsage},
		{errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		if got := exitCodeFor(tt.err); got != tt.want {
			t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
