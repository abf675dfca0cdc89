// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"context"
	"errors"
	"regexp"
	"testing"
)

func fixedOutput(out string) Executor {
	return ExecutorFunc(func(context.Context, Request) (string, error) {
		return out, nil
	})
}

func TestRunAsMap_JSON(t *testing.T) {
	t.Parallel()

	exec := fixedOutput(`{"status": "HEALTH_WARN", "checks": {"OSDMAP_FLAGS": {}}}`)
	m, err := RunAsMap(context.Background(), exec, Request{}, FormatJSON)
	if err != nil {
		t.Fatalf("RunAsMap() error: %v", err)
	}
	if m["status"] != "HEALTH_WARN" {
		t.Errorf("status = %v", m["status"])
	}
}

func TestRunAsList_YAML(t *testing.T) {
	t.Parallel()

	exec := fixedOutput("- name: tools-k8s-worker-1\n- name: tools-k8s-worker-2\n")
	list, err := RunAsList(context.Background(), exec, Request{}, FormatYAML)
	if err != nil {
		t.Fatalf("RunAsList() error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
}

func TestRunAsList_WrongShape(t *testing.T) {
	t.Parallel()

	_, err := RunAsList(context.Background(), fixedOutput(`{"a": 1}`), Request{}, FormatJSON)
	if !errors.Is(err, ErrUnexpectedShape) {
		t.Fatalf("RunAsList() error = %v, want ErrUnexpectedShape", err)
	}
}

func TestRunFormatted_ParseError(t *testing.T) {
	t.Parallel()

	_, err := RunFormatted(context.Background(), fixedOutput("not json"), Request{}, FormatJSON)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("RunFormatted() error = %v, want *ParseError", err)
	}
	if parseErr.Output != "not json" {
		t.Errorf("Output = %q", parseErr.Output)
	}
}

func TestRunFormatted_IgnoreLines(t *testing.T) {
	t.Parallel()

	exec := fixedOutput("Warning: deprecated flag\n[1, 2, 3]\n")
	out, err := RunFormatted(context.Background(), exec, Request{}, FormatJSON, regexp.MustCompile(`^Warning:`))
	if err != nil {
		t.Fatalf("RunFormatted() error: %v", err)
	}
	list, ok := out.([]any)
	if !ok || len(list) != 3 {
		t.Errorf("RunFormatted() = %#v", out)
	}
}

func TestRunFormatted_PropagatesExecutorError(t *testing.T) {
	t.Parallel()

	want := &CommandError{Host: "h", ExitCode: 1}
	exec := ExecutorFunc(func(context.Context, Request) (string, error) { return "", want })
	_, err := RunFormatted(context.Background(), exec, Request{}, FormatJSON)
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("RunFormatted() error = %v, want ErrCommandFailed", err)
	}
}
