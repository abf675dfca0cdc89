// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// LogLevelDebug logs every remote call.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn only logs warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError only logs errors.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidPort is returned for a port outside its allowed range.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidTimeout is returned for a negative duration.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level of log messages printed to stderr.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidPortError is returned when a port is out of range for its field.
	InvalidPortError struct {
		Field string
		Value int
	}

	// InvalidTimeoutError is returned when a duration field is negative.
	InvalidTimeoutError struct {
		Field string
		Value time.Duration
	}

	// InvalidConfigError collects the field errors of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// LogLevel is the minimum level logged to stderr.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
		// Remote configures the SSH transport used for live runs.
		Remote RemoteConfig `json:"remote" mapstructure:"remote"`
		// Replay configures trace replay checks.
		Replay ReplayConfig `json:"replay" mapstructure:"replay"`
		// Target configures the local SSH target served by "target serve".
		Target TargetConfig `json:"target" mapstructure:"target"`
	}

	// RemoteConfig configures the SSH executor.
	RemoteConfig struct {
		User                  string        `json:"user,omitempty" mapstructure:"user"`
		Port                  int           `json:"port" mapstructure:"port"`
		IdentityFile          string        `json:"identity_file,omitempty" mapstructure:"identity_file"`
		KnownHostsFile        string        `json:"known_hosts_file,omitempty" mapstructure:"known_hosts_file"`
		InsecureIgnoreHostKey bool          `json:"insecure_ignore_host_key" mapstructure:"insecure_ignore_host_key"`
		ConnectTimeout        time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"`
		CommandTimeout        time.Duration `json:"command_timeout" mapstructure:"command_timeout"`
		// LocalDir is the working directory of commands sent to localhost,
		// which run in the embedded shell instead of over SSH.
		LocalDir string `json:"local_dir,omitempty" mapstructure:"local_dir"`
		// Password authenticates against a local SSH target with its token.
		// GenerateCUE never writes it out.
		Password string `json:"-" mapstructure:"password"`
	}

	// ReplayConfig configures the replayer.
	ReplayConfig struct {
		// StrictParams makes a replayed call fail when its parameters differ
		// from the recorded ones.
		StrictParams bool `json:"strict_params" mapstructure:"strict_params"`
		// WarnUnreachable logs records that can never be served.
		WarnUnreachable bool `json:"warn_unreachable" mapstructure:"warn_unreachable"`
	}

	// TargetConfig configures the local SSH target.
	TargetConfig struct {
		Host        string        `json:"host" mapstructure:"host"`
		Port        int           `json:"port" mapstructure:"port"`
		User        string        `json:"user" mapstructure:"user"`
		Dir         string        `json:"dir,omitempty" mapstructure:"dir"`
		HostKeyPath string        `json:"host_key_path,omitempty" mapstructure:"host_key_path"`
		TokenTTL    time.Duration `json:"token_ttl" mapstructure:"token_ttl"`
	}
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid reports whether l is one of the known levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Level converts l to a charmbracelet/log level, defaulting to info.
func (l LogLevel) Level() log.Level {
	lvl, err := log.ParseLevel(string(l))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// IsValid checks the SSH transport settings.
func (c RemoteConfig) IsValid() (bool, []error) {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, &InvalidPortError{Field: "remote.port", Value: c.Port})
	}
	if c.ConnectTimeout < 0 {
		errs = append(errs, &InvalidTimeoutError{Field: "remote.connect_timeout", Value: c.ConnectTimeout})
	}
	if c.CommandTimeout < 0 {
		errs = append(errs, &InvalidTimeoutError{Field: "remote.command_timeout", Value: c.CommandTimeout})
	}
	return len(errs) == 0, errs
}

// IsValid checks the SSH target settings.
func (c TargetConfig) IsValid() (bool, []error) {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, &InvalidPortError{Field: "target.port", Value: c.Port})
	}
	if c.TokenTTL < 0 {
		errs = append(errs, &InvalidTimeoutError{Field: "target.token_ttl", Value: c.TokenTTL})
	}
	return len(errs) == 0, errs
}

// IsValid checks every section of the configuration.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if ok, fieldErrs := c.LogLevel.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if ok, fieldErrs := c.Remote.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if ok, fieldErrs := c.Target.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Error implements the error interface.
func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("%s: port %d out of range", e.Field, e.Value)
}

// Unwrap returns ErrInvalidPort for errors.Is() compatibility.
func (e *InvalidPortError) Unwrap() error { return ErrInvalidPort }

// Error implements the error interface.
func (e *InvalidTimeoutError) Error() string {
	return fmt.Sprintf("%s: %s must not be negative", e.Field, e.Value)
}

// Unwrap returns ErrInvalidTimeout for errors.Is() compatibility.
func (e *InvalidTimeoutError) Unwrap() error { return ErrInvalidTimeout }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig and every field error.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: LogLevelInfo,
		Remote: RemoteConfig{
			Port:           22,
			ConnectTimeout: 10 * time.Second,
			CommandTimeout: 10 * time.Minute,
		},
		Replay: ReplayConfig{
			WarnUnreachable: true,
		},
		Target: TargetConfig{
			Host:     "127.0.0.1",
			Port:     2222,
			User:     "cookbook",
			TokenTTL: time.Hour,
		},
	}
}
