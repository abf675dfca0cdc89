// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ErrNonLocalTarget is returned when the shell executor is asked to reach another host.
var ErrNonLocalTarget = errors.New("shell executor only serves the local host")

type (
	// ShellExecutor runs commands in the embedded POSIX shell interpreter on the
	// local host. It serves the LocalTarget name only and is meant for sandbox
	// runs and for producing recordings without real infrastructure.
	ShellExecutor struct {
		// Dir is the working directory (default: current directory).
		Dir string
		// Env is appended to the process environment.
		Env []string
	}

	// ShellIO wires the standard streams of a script run.
	ShellIO struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewShellExecutor creates a shell executor rooted at dir.
func NewShellExecutor(dir string) *ShellExecutor {
	return &ShellExecutor{Dir: dir}
}

// Run executes the command line once for the local host.
func (e *ShellExecutor) Run(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	for _, t := range req.Targets {
		if !IsLocalTarget(t) {
			return "", fmt.Errorf("%w: %s", ErrNonLocalTarget, t)
		}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var out bytes.Buffer
	code, err := RunScript(ctx, req.Line(), e.Dir, e.Env, ShellIO{Stdout: &out, Stderr: &out})
	if err != nil {
		return "", err
	}
	if code != 0 && !req.CaptureErrors {
		return "", &CommandError{Host: LocalTarget, ExitCode: code, Output: out.String()}
	}
	return shapeOutput(out.String(), req), nil
}

// IsLocalTarget reports whether a target name refers to the local host.
func IsLocalTarget(target string) bool {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case LocalTarget, "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

// RunScript parses and runs script in the embedded interpreter and returns its
// exit status. A non-nil error means the script could not run at all.
func RunScript(ctx context.Context, script, dir string, env []string, stdio ShellIO) (int, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "command")
	if err != nil {
		return 1, fmt.Errorf("failed to parse command: %w", err)
	}

	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return 1, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(append(os.Environ(), env...)...)),
		interp.StdIO(stdio.Stdin, stdio.Stdout, stdio.Stderr),
	)
	if err != nil {
		return 1, fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return int(exitStatus), nil
		}
		return 1, fmt.Errorf("command execution failed: %w", err)
	}
	return 0, nil
}
