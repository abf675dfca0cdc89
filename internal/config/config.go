// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "wmcs-cookbook"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides of config keys.
	EnvPrefix = "WMCS_COOKBOOK"

	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the wmcs-cookbook directory inside the platform user
// configuration directory.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// loadWithOptions loads defaults, then the config file, then environment
// overrides, and returns the config with the path of the file it read ("" for
// none).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("load config canceled: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolveConfigPath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'wmcs-cookbook config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if ok, errs := cfg.IsValid(); !ok {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check environment overrides with the " + EnvPrefix + "_ prefix").
			Wrap(errs[0]).
			BuildError()
	}
	return &cfg, path, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("log_level", d.LogLevel.String())
	v.SetDefault("remote.user", d.Remote.User)
	v.SetDefault("remote.port", d.Remote.Port)
	v.SetDefault("remote.identity_file", d.Remote.IdentityFile)
	v.SetDefault("remote.password", d.Remote.Password)
	v.SetDefault("remote.known_hosts_file", d.Remote.KnownHostsFile)
	v.SetDefault("remote.insecure_ignore_host_key", d.Remote.InsecureIgnoreHostKey)
	v.SetDefault("remote.connect_timeout", d.Remote.ConnectTimeout)
	v.SetDefault("remote.command_timeout", d.Remote.CommandTimeout)
	v.SetDefault("remote.local_dir", d.Remote.LocalDir)
	v.SetDefault("replay.strict_params", d.Replay.StrictParams)
	v.SetDefault("replay.warn_unreachable", d.Replay.WarnUnreachable)
	v.SetDefault("target.host", d.Target.Host)
	v.SetDefault("target.port", d.Target.Port)
	v.SetDefault("target.user", d.Target.User)
	v.SetDefault("target.dir", d.Target.Dir)
	v.SetDefault("target.host_key_path", d.Target.HostKeyPath)
	v.SetDefault("target.token_ttl", d.Target.TokenTTL)
}

// resolveConfigPath picks the explicit file, else config.cue in the config
// directory, else config.cue in the working directory. A missing explicit
// file is an error; missing default files are not.
func resolveConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'wmcs-cookbook config show' to see the default configuration").
				Wrap(fmt.Errorf("%w: %s", os.ErrNotExist, opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	name := ConfigFileName + "." + ConfigFileExt
	for _, candidate := range []string{filepath.Join(dir, name), name} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into v.
// Fields are optional, so validation is not concrete.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(configSchema)
	if schema.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schema.Err())
	}

	user := ctx.CompileBytes(data, cue.Filename(path))
	if user.Err() != nil {
		return formatCUEError(user.Err(), path)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(user)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var values map[string]any
	if err := unified.Decode(&values); err != nil {
		return formatCUEError(err, path)
	}
	if err := v.MergeConfigMap(values); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// formatCUEError flattens CUE errors into "<file>: <path>: <message>" lines.
func formatCUEError(err error, path string) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", path, err)
	}

	lines := make([]string, 0, len(list))
	for _, e := range list {
		field := strings.Join(cueerrors.Path(e), ".")
		msg := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(e.Error(), field), ":"))
		if field != "" {
			msg = field + ": " + msg
		}
		lines = append(lines, msg)
	}
	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", path, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", path, strings.Join(lines, "\n  "))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a config.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// wmcs-cookbook configuration\n\n")
	fmt.Fprintf(&sb, "log_level: %q\n", cfg.LogLevel)

	sb.WriteString("\nremote: {\n")
	if cfg.Remote.User != "" {
		fmt.Fprintf(&sb, "\tuser: %q\n", cfg.Remote.User)
	}
	fmt.Fprintf(&sb, "\tport: %d\n", cfg.Remote.Port)
	if cfg.Remote.IdentityFile != "" {
		fmt.Fprintf(&sb, "\tidentity_file: %q\n", cfg.Remote.IdentityFile)
	}
	if cfg.Remote.KnownHostsFile != "" {
		fmt.Fprintf(&sb, "\tknown_hosts_file: %q\n", cfg.Remote.KnownHostsFile)
	}
	fmt.Fprintf(&sb, "\tinsecure_ignore_host_key: %v\n", cfg.Remote.InsecureIgnoreHostKey)
	fmt.Fprintf(&sb, "\tconnect_timeout: %q\n", cfg.Remote.ConnectTimeout)
	fmt.Fprintf(&sb, "\tcommand_timeout: %q\n", cfg.Remote.CommandTimeout)
	if cfg.Remote.LocalDir != "" {
		fmt.Fprintf(&sb, "\tlocal_dir: %q\n", cfg.Remote.LocalDir)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nreplay: {\n")
	fmt.Fprintf(&sb, "\tstrict_params: %v\n", cfg.Replay.StrictParams)
	fmt.Fprintf(&sb, "\twarn_unreachable: %v\n", cfg.Replay.WarnUnreachable)
	sb.WriteString("}\n")

	sb.WriteString("\ntarget: {\n")
	fmt.Fprintf(&sb, "\thost: %q\n", cfg.Target.Host)
	fmt.Fprintf(&sb, "\tport: %d\n", cfg.Target.Port)
	fmt.Fprintf(&sb, "\tuser: %q\n", cfg.Target.User)
	if cfg.Target.Dir != "" {
		fmt.Fprintf(&sb, "\tdir: %q\n", cfg.Target.Dir)
	}
	if cfg.Target.HostKeyPath != "" {
		fmt.Fprintf(&sb, "\thost_key_path: %q\n", cfg.Target.HostKeyPath)
	}
	fmt.Fprintf(&sb, "\ttoken_ttl: %q\n", cfg.Target.TokenTTL)
	sb.WriteString("}\n")

	return sb.String()
}
