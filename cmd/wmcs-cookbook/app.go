// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/config"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/cookbook"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/cookbooks"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/issue"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/recorder"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/remote"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root
	// of the CLI layer: every Cobra handler receives an App and delegates to it.
	App struct {
		Config    ConfigProvider
		Registry  *cookbook.Registry
		Executors ExecutorFactory
		lookupEnv func(string) (string, bool)
		clock     cookbook.Clock
		stdout    io.Writer
		stderr    io.Writer

		// Persistent flag values, bound by NewRootCommand.
		verbose    bool
		configPath string
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config    ConfigProvider
		Registry  *cookbook.Registry
		Executors ExecutorFactory
		// LookupEnv reads the record/replay environment (default: os.LookupEnv).
		LookupEnv func(string) (string, bool)
		// Clock drives cookbook sleeps outside replay (default: wall clock).
		Clock  cookbook.Clock
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// ConfigProviderFunc adapts a function to ConfigProvider.
	ConfigProviderFunc func(ctx context.Context, opts config.LoadOptions) (*config.Config, error)

	// ExecutorFactory builds the executor that reaches real infrastructure.
	// The record/replay session wraps whatever it returns.
	ExecutorFactory func(cfg *config.Config, logger *log.Logger) remote.Executor

	// RunRequest captures one "run" invocation.
	RunRequest struct {
		// Name is the cookbook registry name.
		Name string
		// Args are the cookbook arguments.
		Args []string
		// Record is the --record trace file.
		Record string
		// Replay is the --replay trace file.
		Replay string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Registry == nil {
		reg, err := cookbooks.NewRegistry()
		if err != nil {
			return nil, err
		}
		deps.Registry = reg
	}
	if deps.Executors == nil {
		deps.Executors = DefaultExecutors
	}
	if deps.LookupEnv == nil {
		deps.LookupEnv = os.LookupEnv
	}

	return &App{
		Config:    deps.Config,
		Registry:  deps.Registry,
		Executors: deps.Executors,
		lookupEnv: deps.LookupEnv,
		clock:     deps.Clock,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
	}, nil
}

// StaticConfig returns a provider that always hands out cfg.
func StaticConfig(cfg *config.Config) ConfigProvider {
	return ConfigProviderFunc(func(context.Context, config.LoadOptions) (*config.Config, error) {
		return cfg, nil
	})
}

// Load implements ConfigProvider.
func (f ConfigProviderFunc) Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error) {
	return f(ctx, opts)
}

// DefaultExecutors serves localhost through the embedded shell and everything
// else over SSH. SSH credentials are only resolved on the first remote call.
func DefaultExecutors(cfg *config.Config, logger *log.Logger) remote.Executor {
	local := remote.NewShellExecutor(cfg.Remote.LocalDir)
	return remote.NewRouter(local, func() (remote.Executor, error) {
		e, err := remote.NewSSHExecutor(sshConfigFrom(cfg.Remote), logger.WithPrefix("ssh"))
		if err != nil {
			return nil, err
		}
		return e, nil
	})
}

func sshConfigFrom(rc config.RemoteConfig) remote.SSHConfig {
	return remote.SSHConfig{
		User:                  rc.User,
		Port:                  rc.Port,
		IdentityFile:          rc.IdentityFile,
		Password:              rc.Password,
		KnownHostsFile:        rc.KnownHostsFile,
		InsecureIgnoreHostKey: rc.InsecureIgnoreHostKey,
		ConnectTimeout:        rc.ConnectTimeout,
		CommandTimeout:        rc.CommandTimeout,
	}
}

// RunCookbook resolves the mode, runs the named cookbook inside a record/replay
// session and renders any failure. The returned error is an *ExitError once
// the failure has been shown.
func (a *App) RunCookbook(ctx context.Context, req RunRequest) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return a.failWith(issue.ConfigLoadFailedId, err)
	}
	logger := a.logger(cfg)

	mode, err := a.resolveMode(req)
	if err != nil {
		return a.fail(err)
	}

	runner := &cookbook.Runner{
		Registry: a.Registry,
		Mode:     mode,
		Executor: a.Executors(cfg, logger),
		SessionOptions: []recorder.Option{
			recorder.WithStrictParams(cfg.Replay.StrictParams),
			recorder.WithWarnUnreachable(cfg.Replay.WarnUnreachable),
		},
		Logger: logger,
		Stdout: a.stdout,
		Stderr: a.stderr,
		Clock:  a.clock,
	}

	err = runner.Run(ctx, req.Name, req.Args)
	switch {
	case errors.Is(err, pflag.ErrHelp):
		return nil
	case err != nil:
		return a.fail(err)
	}

	if mode.Recording() {
		fmt.Fprintf(a.stderr, "%s %s\n", SuccessStyle.Render("Recorded to"), mode.FilePath)
	}
	return nil
}

// resolveMode prefers the --record/--replay flags and falls back to the
// environment when neither is given.
func (a *App) resolveMode(req RunRequest) (recorder.ModeConfig, error) {
	if req.Record == "" && req.Replay == "" {
		return recorder.ResolveMode(recorder.SignalsFromEnv(a.lookupEnv))
	}

	s := recorder.Signals{Record: req.Record != "", Replay: req.Replay != ""}
	s.FilePath = req.Record
	if s.Replay {
		s.FilePath = req.Replay
	}
	return recorder.ResolveMode(s)
}

func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
}

func (a *App) logger(cfg *config.Config) *log.Logger {
	level := cfg.LogLevel.Level()
	if a.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{Prefix: config.AppName, Level: level})
}

// fail renders err with its issue guidance and wraps it in an ExitError.
func (a *App) fail(err error) error {
	return a.failWith(classifyRunError(err), err)
}

func (a *App) failWith(id issue.Id, err error) error {
	styled := fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, a.verbose))
	renderServiceError(a.stderr, newServiceError(err, id, styled))
	return &ExitError{Code: exitCodeFor(err), Err: err}
}
