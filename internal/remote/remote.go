// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// LocalTarget is the target name served by the in-process shell executor.
const LocalTarget = "localhost"

var (
	// ErrEmptyCommand is returned when a Request carries no command words.
	ErrEmptyCommand = errors.New("empty command")
	// ErrNoTargets is returned when a Request names no target hosts.
	ErrNoTargets = errors.New("no targets")
	// ErrCommandFailed is the sentinel wrapped by CommandError.
	ErrCommandFailed = errors.New("remote command failed")
)

type (
	// Request describes one command invocation against one or more targets.
	Request struct {
		// Command is the argv of the command. Words are joined with spaces and
		// interpreted by the remote shell, so pipes and redirections work.
		Command []string
		// Targets are the hosts to run the command on ("host" or "host:port").
		Targets []string
		// CaptureErrors accepts any exit code instead of failing on non-zero.
		CaptureErrors bool
		// LastLineOnly keeps only the last line of the output.
		LastLineOnly bool
		// SkipFirstLine drops the first line of the output.
		SkipFirstLine bool
		// Timeout bounds the command on each target. Zero uses the executor default.
		Timeout time.Duration
	}

	// Executor runs a command against remote targets and returns its textual output.
	Executor interface {
		Run(ctx context.Context, req Request) (string, error)
	}

	// ExecutorFunc adapts a function to the Executor interface.
	ExecutorFunc func(ctx context.Context, req Request) (string, error)

	// CommandError reports a command that ran but exited with a non-accepted code.
	CommandError struct {
		Host     string
		ExitCode int
		Output   string
	}
)

// Run calls f(ctx, req).
func (f ExecutorFunc) Run(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Line returns the command as the single line sent to the remote shell.
func (r Request) Line() string {
	return strings.Join(r.Command, " ")
}

// Validate checks that the request names a command and at least one target.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Line()) == "" {
		return ErrEmptyCommand
	}
	if len(r.Targets) == 0 {
		return ErrNoTargets
	}
	for _, t := range r.Targets {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: blank target name", ErrNoTargets)
		}
	}
	return nil
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command failed on %s with exit code %d", e.Host, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLine(out)
	}
	return msg
}

// Unwrap returns ErrCommandFailed for errors.Is() compatibility.
func (e *CommandError) Unwrap() error { return ErrCommandFailed }

// shapeOutput applies the line selection options of a request to raw output.
func shapeOutput(raw string, req Request) string {
	out := raw
	if req.SkipFirstLine {
		lines := splitLines(out)
		if len(lines) > 0 {
			lines = lines[1:]
		}
		out = strings.Join(lines, "\n")
	}
	if req.LastLineOnly {
		out = lastLine(out)
	}
	return out
}

// splitLines splits on newlines without yielding a trailing empty line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	return strings.Split(s, "\n")
}

func lastLine(s string) string {
	lines := splitLines(s)
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
