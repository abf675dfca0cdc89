// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

func newRunCommand(app *App) *cobra.Command {
	var req RunRequest

	runCmd := &cobra.Command{
		Use:   "run NAME [cookbook flags...]",
		Short: "Run a cookbook",
		Long: `Run a cookbook by name.

Flags after NAME belong to the cookbook; use 'run NAME --help' to see them.

With --record every remote call and its outcome is appended to FILE as it
happens. With --replay every remote call is answered from FILE and no host
is contacted. Without either flag the COOKBOOK_RECORDING_ENABLED,
COOKBOOK_REPLAYING_ENABLED and COOKBOOK_RECORDING_FILE environment
variables decide.`,
		Args: cobra.MinimumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveDefault
			}
			var names []string
			for _, info := range app.Registry.List() {
				if strings.HasPrefix(info.Name, toComplete) {
					names = append(names, info.Name+"\t"+info.Summary)
				}
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			run := req
			run.Name = args[0]
			run.Args = args[1:]
			return silenceOnExitError(cmd, app.RunCookbook(cmd.Context(), run))
		},
	}

	// Everything after the cookbook name is passed through untouched.
	runCmd.Flags().SetInterspersed(false)
	runCmd.Flags().StringVar(&req.Record, "record", "", "record every remote call into `FILE`")
	runCmd.Flags().StringVar(&req.Replay, "replay", "", "answer every remote call from `FILE`")

	return runCmd
}
