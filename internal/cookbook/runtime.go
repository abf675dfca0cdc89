// SPDX-License-Identifier: MPL-2.0

package cookbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/remote"
)

// ErrTimeout is the sentinel wrapped by TimeoutError.
var ErrTimeout = errors.New("timed out")

type (
	// Runtime is what a running cookbook may touch.
	Runtime struct {
		// Exec is the executor chosen for this run. It records, replays, or
		// reaches real infrastructure; cookbooks cannot tell which.
		Exec remote.Executor
		// Logger is prefixed with the cookbook name.
		Logger *log.Logger
		// Stdout receives the cookbook report.
		Stdout io.Writer
		// Stderr receives diagnostics.
		Stderr io.Writer
		// Args are the positional arguments left after flag parsing.
		Args []string

		replaying bool
		runner    *Runner
		clock     Clock
	}

	// Clock is the time source of Runtime.Sleep.
	Clock interface {
		After(d time.Duration) <-chan time.Time
	}

	systemClock struct{}

	// TimeoutError reports a wait that gave up.
	TimeoutError struct {
		What     string
		Waited   time.Duration
		Attempts int
		Last     string
	}
)

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("waited %s (%d checks) for %s, but it never happened", e.Waited, e.Attempts, e.What)
	if e.Last != "" {
		msg += ", current state:\n" + e.Last
	}
	return msg
}

// Unwrap returns ErrTimeout for errors.Is() compatibility.
func (e *TimeoutError) Unwrap() error { return ErrTimeout }

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Replaying reports whether calls are answered from a recording.
func (rt *Runtime) Replaying() bool { return rt.replaying }

// Sleep waits for d or until ctx is done. During replay it returns at once,
// since recorded answers do not depend on wall-clock time.
func (rt *Runtime) Sleep(ctx context.Context, d time.Duration) error {
	if rt.replaying || d <= 0 {
		return ctx.Err()
	}
	clock := rt.clock
	if clock == nil {
		clock = systemClock{}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}

// Poll calls check until it reports done, sleeping interval between checks.
// It gives up after timeout/interval checks, so a replayed run performs the
// same number of calls as the recorded one. check returns a short description
// of the current state, used in the timeout error.
func (rt *Runtime) Poll(ctx context.Context, what string, interval, timeout time.Duration, check func(context.Context) (bool, string, error)) error {
	attempts := 1
	if interval > 0 && timeout > interval {
		attempts = int(timeout / interval)
	}

	var last string
	for i := range attempts {
		done, state, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		last = state
		if i == attempts-1 {
			break
		}
		rt.Logger.Info("still waiting", "for", what, "attempt", i+1, "of", attempts, "next_check_in", interval)
		if err := rt.Sleep(ctx, interval); err != nil {
			return err
		}
	}
	return &TimeoutError{What: what, Waited: timeout, Attempts: attempts, Last: last}
}

// RunCookbook runs another cookbook as part of this run. The nested run shares
// this run's executor session; the recording is finished only by the
// outermost run.
func (rt *Runtime) RunCookbook(ctx context.Context, name string, args ...string) error {
	return rt.runner.Run(ctx, name, args)
}
