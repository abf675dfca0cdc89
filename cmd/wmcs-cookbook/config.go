// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/config"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/issue"
)

// newConfigCommand creates the `wmcs-cookbook config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect wmcs-cookbook configuration",
		Long: `Inspect wmcs-cookbook configuration.

Configuration is read from config.cue in the user configuration directory
(see 'config path'), then overridden by ` + config.EnvPrefix + `_* environment
variables, e.g. ` + config.EnvPrefix + `_REMOTE_USER.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return silenceOnExitError(cmd, app.failWith(issue.ConfigLoadFailedId, err))
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file in effect",
		Long: `Show the configuration file in effect: the --config file, else config.cue
in the user configuration directory, else config.cue in the current
directory. When none exists the default location is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return silenceOnExitError(cmd, showConfigPath(cmd, app))
		},
	})

	return cfgCmd
}

func showConfigPath(cmd *cobra.Command, app *App) error {
	loaded, err := config.LoadWithPath(cmd.Context(), config.LoadOptions{ConfigFilePath: app.configPath})
	if err != nil {
		return app.failWith(issue.ConfigLoadFailedId, err)
	}
	if loaded.Path != "" {
		fmt.Fprintln(app.stdout, loaded.Path)
		return nil
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return app.fail(err)
	}
	fmt.Fprintf(app.stdout, "%s %s\n",
		filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt),
		SubtitleStyle.Render("(not found, defaults apply)"))
	return nil
}
