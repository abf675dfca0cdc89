// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{
			name: "operation only",
			err:  &ActionableError{Operation: "load trace"},
			want: "failed to load trace",
		},
		{
			name: "operation with resource",
			err:  &ActionableError{Operation: "load trace", Resource: "cookbook.yaml"},
			want: "failed to load trace: cookbook.yaml",
		},
		{
			name: "operation with cause",
			err:  &ActionableError{Operation: "parse config", Cause: errors.New("syntax error at line 5")},
			want: "failed to parse config: syntax error at line 5",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "run cookbook",
				Resource:  "wmcs.ceph.health",
				Cause:     errors.New("timed out"),
			},
			want: "failed to run cookbook: wmcs.ceph.health: timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying error")
	err := error(&ActionableError{Operation: "test", Cause: fmt.Errorf("wrapped: %w", cause)})
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if (&ActionableError{Operation: "test"}).Unwrap() != nil {
		t.Error("Unwrap() should return nil without a cause")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	root := errors.New("permission denied")
	err := &ActionableError{
		Operation:   "save recording",
		Resource:    "/srv/traces/run.yaml",
		Suggestions: []string{"Check that the directory is writable", "Check free disk space"},
		Cause:       fmt.Errorf("rename: %w", root),
	}

	short := err.Format(false)
	for _, want := range []string{
		"failed to save recording: /srv/traces/run.yaml: rename: permission denied",
		"• Check that the directory is writable",
		"• Check free disk space",
	} {
		if !strings.Contains(short, want) {
			t.Errorf("Format(false) missing %q:\n%s", want, short)
		}
	}
	if strings.Contains(short, "Error chain") {
		t.Error("Format(false) should not print the error chain")
	}

	verbose := err.Format(true)
	for _, want := range []string{"Error chain:", "1. rename: permission denied", "2. permission denied"} {
		if !strings.Contains(verbose, want) {
			t.Errorf("Format(true) missing %q:\n%s", want, verbose)
		}
	}
}

func TestActionableError_HasSuggestions(t *testing.T) {
	t.Parallel()

	if (&ActionableError{Operation: "x"}).HasSuggestions() {
		t.Error("HasSuggestions() = true without suggestions")
	}
	if !(&ActionableError{Operation: "x", Suggestions: []string{"retry"}}).HasSuggestions() {
		t.Error("HasSuggestions() = false with a suggestion")
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	got := NewErrorContext().
		WithOperation("replay cookbook").
		WithResource("trace.yaml").
		WithSuggestion("first").
		WithSuggestions("second", "third").
		Wrap(cause).
		Build()

	if got.Operation != "replay cookbook" || got.Resource != "trace.yaml" || !errors.Is(got, cause) {
		t.Errorf("Build() = %+v", got)
	}
	if strings.Join(got.Suggestions, ",") != "first,second,third" {
		t.Errorf("Suggestions = %v", got.Suggestions)
	}
}

func TestErrorContext_BuildWithoutOperation(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().WithResource("x").Wrap(errors.New("boom"))
	if ctx.Build() != nil {
		t.Error("Build() without an operation should return nil")
	}
	if err := ctx.BuildError(); err != nil {
		t.Errorf("BuildError() = %v, want untyped nil", err)
	}
}

func TestErrorContext_Reuse(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().WithOperation("load trace").WithSuggestion("base")
	first := ctx.Build()
	ctx.WithSuggestion("extra")
	if len(first.Suggestions) != 1 {
		t.Errorf("earlier Build() result changed: %v", first.Suggestions)
	}
}

func TestWrapWithContext(t *testing.T) {
	t.Parallel()

	if WrapWithContext(nil, "op", "res") != nil {
		t.Error("WrapWithContext(nil) should return nil")
	}
	cause := errors.New("boom")
	got := WrapWithContext(cause, "load trace", "t.yaml")
	if got.Error() != "failed to load trace: t.yaml: boom" {
		t.Errorf("Error() = %q", got.Error())
	}
}
