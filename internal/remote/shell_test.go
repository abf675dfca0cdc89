// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestShellExecutor_Run(t *testing.T) {
	t.Parallel()

	exec := NewShellExecutor(t.TempDir())
	out, err := exec.Run(context.Background(), Request{
		Command: []string{"echo", "hello;", "echo", "world"},
		Targets: []string{LocalTarget},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out != "hello\nworld\n" {
		t.Errorf("Run() = %q", out)
	}
}

func TestShellExecutor_LastLineOnly(t *testing.T) {
	t.Parallel()

	exec := NewShellExecutor(t.TempDir())
	out, err := exec.Run(context.Background(), Request{
		Command:      []string{"echo", "first;", "echo", "second"},
		Targets:      []string{"127.0.0.1"},
		LastLineOnly: true,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out != "second" {
		t.Errorf("Run() = %q, want %q", out, "second")
	}
}

func TestShellExecutor_NonZeroExit(t *testing.T) {
	t.Parallel()

	exec := NewShellExecutor(t.TempDir())
	req := Request{Command: []string{"echo", "boom;", "exit", "3"}, Targets: []string{LocalTarget}}

	_, err := exec.Run(context.Background(), req)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Run() error = %v, want *CommandError", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", cmdErr.ExitCode)
	}
	if !strings.Contains(cmdErr.Output, "boom") {
		t.Errorf("Output = %q, want it to contain boom", cmdErr.Output)
	}

	req.CaptureErrors = true
	out, err := exec.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() with CaptureErrors error: %v", err)
	}
	if out != "boom\n" {
		t.Errorf("Run() with CaptureErrors = %q", out)
	}
}

func TestShellExecutor_RejectsRemoteTargets(t *testing.T) {
	t.Parallel()

	exec := NewShellExecutor(t.TempDir())
	_, err := exec.Run(context.Background(), Request{Command: []string{"true"}, Targets: []string{"cloudvirt1031"}})
	if !errors.Is(err, ErrNonLocalTarget) {
		t.Fatalf("Run() error = %v, want ErrNonLocalTarget", err)
	}
}

func TestRunScript_SyntaxError(t *testing.T) {
	t.Parallel()

	_, err := RunScript(context.Background(), "if then fi (", t.TempDir(), nil, ShellIO{})
	if err == nil {
		t.Fatal("RunScript() should fail on a syntax error")
	}
}
