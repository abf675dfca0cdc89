// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/config"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/issue"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v0.3.0"
		Commit = "4f2c9e1"
		BuildDate = "2026-03-02T09:00:00Z"

		want := "v0.3.0 (commit: 4f2c9e1, built: 2026-03-02T09:00:00Z)"
		if got := getVersionString(); got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	cause := errors.New("permission denied")
	ae := issue.NewErrorContext().
		WithOperation("load trace").
		WithResource("ceph.yaml").
		WithSuggestion("Check the file permissions").
		Wrap(cause).
		Build()

	plain := formatErrorForDisplay(errors.New("boom"), false)
	if plain != "boom" {
		t.Errorf("plain error = %q", plain)
	}

	got := formatErrorForDisplay(ae, false)
	if !strings.Contains(got, "Check the file permissions") {
		t.Errorf("actionable error should list suggestions: %q", got)
	}
	if strings.Contains(got, "Error chain") {
		t.Errorf("non-verbose output should not show the chain: %q", got)
	}
	if verbose := formatErrorForDisplay(ae, true); !strings.Contains(verbose, "Error chain") {
		t.Errorf("verbose output should show the chain: %q", verbose)
	}
}

func TestNewRootCommand_Subcommands(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Dependencies{})
	rootCmd := NewRootCommand(e.app)
	for _, name := range []string{"run", "list", "trace", "target", "config"} {
		if c, _, err := rootCmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not found: %v", name, err)
		}
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Dependencies{})
	if err := e.execute(t, "list"); err != nil {
		t.Fatalf("list error: %v", err)
	}
	out := e.stdout.String()
	if !strings.Contains(out, "test.uptime") || !strings.Contains(out, "Print the uptime of a host") {
		t.Errorf("list output missing cookbook:\n%s", out)
	}
}

func TestList_BuiltinRegistry(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	app, err := NewApp(Dependencies{Stdout: &stdout, Stderr: io.Discard})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	listCookbooks(app)
	for _, name := range []string{"wmcs.ceph.health", "wmcs.toolforge.k8s.worker.drain"} {
		if !strings.Contains(stdout.String(), name) {
			t.Errorf("builtin cookbook %s should be listed:\n%s", name, stdout.String())
		}
	}
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.LogLevel = config.LogLevelDebug
	cfg.Remote.User = "root"
	cfg.Remote.Password = "s3cret-token"

	e := newTestEnv(t, Dependencies{Config: StaticConfig(cfg)})
	if err := e.execute(t, "config", "show"); err != nil {
		t.Fatalf("config show error: %v", err)
	}
	out := e.stdout.String()
	for _, want := range []string{`log_level: "debug"`, `user: "root"`} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "s3cret-token") {
		t.Errorf("config show must not print the password:\n%s", out)
	}
}

func TestConfigShow_LoadFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("bad config")
	e := newTestEnv(t, Dependencies{
		Config: ConfigProviderFunc(func(context.Context, config.LoadOptions) (*config.Config, error) {
			return nil, boom
		}),
	})
	err := e.execute(t, "config", "show")
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Errorf("error = %T, want *ExitError", err)
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	inner := errors.New("cookbook failed")
	withErr := &ExitError{Code: 3, Err: inner}
	if withErr.Error() != "cookbook failed" || !errors.Is(withErr, inner) || withErr.ExitCode() != 3 {
		t.Errorf("ExitError with cause = %q / %d", withErr.Error(), withErr.ExitCode())
	}

	bare := &ExitError{Code: 2}
	if bare.Error() != "exit status 2" {
		t.Errorf("bare ExitError = %q", bare.Error())
	}
}
