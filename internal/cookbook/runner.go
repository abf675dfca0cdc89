// SPDX-License-Identifier: MPL-2.0

package cookbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/recorder"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/remote"
)

// ErrUsage is the sentinel wrapped by UsageError.
var ErrUsage = errors.New("invalid cookbook arguments")

type (
	// Runner looks up cookbooks and runs them inside a record/replay session.
	Runner struct {
		// Registry holds the runnable cookbooks.
		Registry *Registry
		// Mode is the process record/replay mode.
		Mode recorder.ModeConfig
		// Executor is the real executor. It is wrapped, never replaced, by the
		// session.
		Executor remote.Executor
		// SessionOptions tune the record/replay session.
		SessionOptions []recorder.Option
		// Logger is the parent logger. Nil logs to Stderr.
		Logger *log.Logger
		// Stdout and Stderr default to the process streams.
		Stdout io.Writer
		Stderr io.Writer
		// Clock drives Runtime.Sleep outside replay. Nil uses wall-clock time.
		Clock Clock
	}

	// UsageError reports cookbook arguments that failed to parse.
	UsageError struct {
		Cookbook string
		Err      error
	}

	sessionKey struct{}
)

// Error implements the error interface.
func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Cookbook, e.Err)
}

// Unwrap returns ErrUsage and the parse error.
func (e *UsageError) Unwrap() []error { return []error{ErrUsage, e.Err} }

// Run parses args for the named cookbook and runs it. The outermost run opens
// the session and finishes it when the cookbook returns, even on failure;
// nested runs started through Runtime.RunCookbook reuse it.
func (r *Runner) Run(ctx context.Context, name string, args []string) (err error) {
	cb, err := r.Registry.New(name)
	if err != nil {
		return err
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(r.stderr())
	cb.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return &UsageError{Cookbook: name, Err: err}
	}

	logger := r.logger()
	session, nested := SessionFrom(ctx)
	if !nested {
		session, err = recorder.NewSession(r.Mode, r.Executor, append([]recorder.Option{recorder.WithLogger(logger)}, r.SessionOptions...)...)
		if err != nil {
			return err
		}
		ctx = WithSession(ctx, session)
		defer func() {
			if finishErr := session.Finish(); finishErr != nil {
				err = errors.Join(err, finishErr)
			}
		}()
	}

	rt := &Runtime{
		Exec:      session.Executor(),
		Logger:    logger.WithPrefix(name),
		Stdout:    r.stdout(),
		Stderr:    r.stderr(),
		Args:      fs.Args(),
		replaying: session.Mode().Replaying(),
		runner:    r,
		clock:     r.Clock,
	}

	logger.Debug("running cookbook", "name", name, "mode", session.Mode().String(), "nested", nested)
	if err := cb.Run(ctx, rt); err != nil {
		return fmt.Errorf("cookbook %s failed: %w", name, err)
	}
	return nil
}

// WithSession returns a context carrying s for nested runs.
func WithSession(ctx context.Context, s *recorder.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session of the enclosing run, if any.
func SessionFrom(ctx context.Context) (*recorder.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*recorder.Session)
	return s, ok && s != nil
}

func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.NewWithOptions(r.stderr(), log.Options{Prefix: "cookbook"})
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}
