// SPDX-License-Identifier: MPL-2.0

// Package harness runs an entry point against a recorded trace so cookbooks can
// be tested without reaching real infrastructure.
package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/cookbook"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/recorder"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/remote"
)

// ErrLiveCall is returned by the guard executor when a replayed run tries to
// reach real infrastructure.
var ErrLiveCall = errors.New("live remote call attempted during replay")

type (
	// Invocation is everything an entry point receives from the harness.
	Invocation struct {
		// Args is the argv of the entry point, without the program name.
		Args []string
		// Mode is always replay of the harness trace.
		Mode recorder.ModeConfig
		// Executor is the real executor to wrap. Under the harness it fails
		// every call with ErrLiveCall.
		Executor remote.Executor
		// Stdout and Stderr are captured into the Result.
		Stdout io.Writer
		Stderr io.Writer
	}

	// EntryPoint is a program run by the harness.
	EntryPoint func(ctx context.Context, inv Invocation) error

	// Result is the observable outcome of a harness run.
	Result struct {
		ExitCode int
		Stdout   string
		Stderr   string
		// Err is the error returned by the entry point, if any.
		Err error
	}

	// ExitCoder is implemented by errors that carry a process exit code.
	ExitCoder interface {
		ExitCode() int
	}
)

// Run executes entry with args in replay mode against the trace at tracePath.
// The returned error is non-nil only when the run left recorded entries
// unreplayed; every other failure is reported through Result.
func Run(ctx context.Context, entry EntryPoint, tracePath string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer
	inv := Invocation{
		Args:     args,
		Mode:     recorder.ModeConfig{Enabled: true, Mode: recorder.ModeReplay, FilePath: tracePath},
		Executor: liveGuard(),
		Stdout:   &stdout,
		Stderr:   &stderr,
	}

	runErr := entry(ctx, inv)
	res := Result{
		ExitCode: ExitCodeOf(runErr),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Err:      runErr,
	}
	if errors.Is(runErr, recorder.ErrUnreplayedEntries) {
		return res, runErr
	}
	return res, nil
}

// ExitCodeOf maps an entry point error to a process exit code.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

// CookbookEntry returns an entry point whose first argument names a cookbook
// in reg and the rest are the cookbook arguments.
func CookbookEntry(reg *cookbook.Registry) EntryPoint {
	return func(ctx context.Context, inv Invocation) error {
		if len(inv.Args) == 0 {
			return fmt.Errorf("%w: no cookbook name given", cookbook.ErrUsage)
		}
		r := &cookbook.Runner{
			Registry: reg,
			Mode:     inv.Mode,
			Executor: inv.Executor,
			Logger:   log.NewWithOptions(inv.Stderr, log.Options{Prefix: "cookbook"}),
			Stdout:   inv.Stdout,
			Stderr:   inv.Stderr,
		}
		err := r.Run(ctx, inv.Args[0], inv.Args[1:])
		if err != nil {
			fmt.Fprintln(inv.Stderr, err)
		}
		return err
	}
}

func liveGuard() remote.Executor {
	return remote.ExecutorFunc(func(_ context.Context, req remote.Request) (string, error) {
		return "", fmt.Errorf("%w: %s", ErrLiveCall, req.Line())
	})
}
