// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List available cookbooks",
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			listCookbooks(app)
			return nil
		},
	}
}

func listCookbooks(app *App) {
	infos := app.Registry.List()
	if len(infos) == 0 {
		fmt.Fprintln(app.stdout, SubtitleStyle.Render("No cookbooks registered."))
		return
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Available cookbooks:"))
	for _, info := range infos {
		fmt.Fprintf(app.stdout, "  %s %s\n", nameColumnStyle.Render(info.Name), SubtitleStyle.Render(info.Summary))
	}
}
