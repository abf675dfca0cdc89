// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/config"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/issue"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/sshtarget"
)

// targetFlags override the target section of the configuration.
type targetFlags struct {
	host     string
	port     int
	dir      string
	hostKey  string
	tokenTTL time.Duration
}

func newTargetCommand(app *App) *cobra.Command {
	targetCmd := &cobra.Command{
		Use:   "target",
		Short: "Local SSH target for producing recordings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var flags targetFlags
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an SSH endpoint that runs commands in the embedded shell",
		Long: `Serve an SSH endpoint on this machine. Every command sent to it runs in
the embedded POSIX shell, so cookbooks can be recorded against a sandbox
instead of production hosts.

Log in with any user name and the printed token as password. Tokens expire
after --token-ttl. Stop the target with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return silenceOnExitError(cmd, serveTarget(cmd.Context(), app, cmd, flags))
		},
	}
	serveCmd.Flags().StringVar(&flags.host, "host", "", "listen address (default from config)")
	serveCmd.Flags().IntVar(&flags.port, "port", 0, "listen port, 0 picks a free one (default from config)")
	serveCmd.Flags().StringVar(&flags.dir, "dir", "", "working directory of executed commands")
	serveCmd.Flags().StringVar(&flags.hostKey, "host-key", "", "file storing the host key")
	serveCmd.Flags().DurationVar(&flags.tokenTTL, "token-ttl", 0, "token lifetime (default from config)")

	targetCmd.AddCommand(serveCmd)
	return targetCmd
}

// targetConfig merges the config file target section with explicitly set flags.
func targetConfig(tc config.TargetConfig, cmd *cobra.Command, flags targetFlags) sshtarget.Config {
	cfg := sshtarget.Config{
		Host:        sshtarget.HostAddress(tc.Host),
		Port:        sshtarget.Port(tc.Port),
		User:        tc.User,
		Dir:         tc.Dir,
		HostKeyPath: tc.HostKeyPath,
		TokenTTL:    tc.TokenTTL,
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = sshtarget.HostAddress(flags.host)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = sshtarget.Port(flags.port)
	}
	if cmd.Flags().Changed("dir") {
		cfg.Dir = flags.dir
	}
	if cmd.Flags().Changed("host-key") {
		cfg.HostKeyPath = flags.hostKey
	}
	if cmd.Flags().Changed("token-ttl") {
		cfg.TokenTTL = flags.tokenTTL
	}
	return cfg
}

func serveTarget(ctx context.Context, app *App, cmd *cobra.Command, flags targetFlags) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return app.failWith(issue.ConfigLoadFailedId, err)
	}
	logger := app.logger(cfg).WithPrefix("ssh-target")

	srv := sshtarget.New(targetConfig(cfg.Target, cmd, flags), logger)
	if err := srv.Start(ctx); err != nil {
		return app.fail(err)
	}
	defer func() {
		if stopErr := srv.Stop(); stopErr != nil {
			logger.Warn("failed to stop SSH target", "error", stopErr)
		}
	}()

	info, err := srv.ConnectionInfo("cli")
	if err != nil {
		return app.fail(err)
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("SSH target listening"))
	fmt.Fprintf(app.stdout, "  address: %s\n", CmdStyle.Render(fmt.Sprintf("%s:%d", info.Host, info.Port)))
	fmt.Fprintf(app.stdout, "  user:    %s\n", info.User)
	fmt.Fprintf(app.stdout, "  token:   %s\n", info.Token)
	fmt.Fprintf(app.stdout, "  expires: %s\n", info.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintln(app.stdout)
	fmt.Fprintln(app.stdout, SubtitleStyle.Render("Record against it with:"))
	fmt.Fprintf(app.stdout, "  export %s_REMOTE_PORT=%d\n", config.EnvPrefix, info.Port)
	fmt.Fprintf(app.stdout, "  export %s_REMOTE_PASSWORD=%s\n", config.EnvPrefix, info.Token)
	fmt.Fprintf(app.stdout, "  export %s_REMOTE_INSECURE_IGNORE_HOST_KEY=true\n", config.EnvPrefix)
	fmt.Fprintf(app.stdout, "  %s run --record trace.yaml NAME ...\n", config.AppName)

	if err := srv.Wait(ctx); err != nil {
		return app.fail(err)
	}
	return nil
}
