// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for wmcs-cookbook.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/config"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app. Persistent flags are
// bound to app, so every App gets its own tree.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Run WMCS cookbooks, with record and replay of remote calls",
		Long: TitleStyle.Render(config.AppName) + SubtitleStyle.Render(" - Run WMCS cookbooks") + `

Cookbooks automate operations on Cloud VPS infrastructure. Every remote
command they send can be recorded into a trace file and replayed later
without touching any host.

` + SubtitleStyle.Render("Record and replay:") + `
  --record FILE / --replay FILE on 'run', or the environment:
  COOKBOOK_RECORDING_ENABLED=1 | COOKBOOK_REPLAYING_ENABLED=1
  COOKBOOK_RECORDING_FILE=FILE

` + SubtitleStyle.Render("Examples:") + `
  wmcs-cookbook list
  wmcs-cookbook run wmcs.ceph.health --monitor cloudcephmon1004.eqiad.wmnet
  wmcs-cookbook run --record ceph.yaml wmcs.ceph.health --monitor cloudcephmon1004.eqiad.wmnet
  wmcs-cookbook trace validate ceph.yaml`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is <user config dir>/wmcs-cookbook/config.cue)")

	rootCmd.AddCommand(
		newRunCommand(app),
		newListCommand(app),
		newTraceCommand(app),
		newTargetCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits. It is called by main.main().
func Execute() {
	os.Exit(Main())
}

// Main runs the CLI against the process environment and returns the exit code.
func Main() int {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), formatErrorForDisplay(err, false))
		return ExitFailure
	}

	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return ExitFailure
	}
	return 0
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// silenceOnExitError keeps cobra from printing an error that was already
// rendered.
func silenceOnExitError(cmd *cobra.Command, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
	}
	return err
}
