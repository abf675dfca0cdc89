// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/config"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/cookbook"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/harness"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/recorder"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/remote"
)

// HarnessEntry exposes the whole CLI to harness.Run. Invocation args are CLI
// args, e.g. "run", "wmcs.ceph.health", "--monitor", "...". The harness mode
// reaches the CLI through the record/replay environment, configuration is the
// built-in defaults and the harness executor stands in for the network.
func HarnessEntry(reg *cookbook.Registry) harness.EntryPoint {
	return func(ctx context.Context, inv harness.Invocation) error {
		app, err := NewApp(Dependencies{
			Config:   StaticConfig(config.DefaultConfig()),
			Registry: reg,
			Executors: func(*config.Config, *log.Logger) remote.Executor {
				return inv.Executor
			},
			LookupEnv: modeEnv(inv.Mode),
			Stdout:    inv.Stdout,
			Stderr:    inv.Stderr,
		})
		if err != nil {
			return err
		}

		rootCmd := NewRootCommand(app)
		rootCmd.SetArgs(inv.Args)
		rootCmd.SetOut(inv.Stdout)
		rootCmd.SetErr(inv.Stderr)
		return rootCmd.ExecuteContext(ctx)
	}
}

// modeEnv returns an environment lookup that only holds the variables
// selecting mode.
func modeEnv(mode recorder.ModeConfig) func(string) (string, bool) {
	env := map[string]string{}
	switch {
	case mode.Recording():
		env[recorder.EnvRecordingEnabled] = "1"
		env[recorder.EnvRecordingFile] = mode.FilePath
	case mode.Replaying():
		env[recorder.EnvReplayingEnabled] = "1"
		env[recorder.EnvRecordingFile] = mode.FilePath
	}
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}
