// SPDX-License-Identifier: MPL-2.0

package recorder

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	// EnvRecordingEnabled turns recording on.
	EnvRecordingEnabled = "COOKBOOK_RECORDING_ENABLED"
	// EnvReplayingEnabled turns replaying on.
	EnvReplayingEnabled = "COOKBOOK_REPLAYING_ENABLED"
	// EnvRecordingFile names the trace file used by either mode.
	EnvRecordingFile = "COOKBOOK_RECORDING_FILE"

	// ModeRecord captures every call into the trace file.
	ModeRecord Mode = "record"
	// ModeReplay answers every call from the trace file.
	ModeReplay Mode = "replay"
)

// ErrConfiguration is the sentinel wrapped by ConfigurationError.
var ErrConfiguration = errors.New("invalid record/replay configuration")

type (
	// Mode is the active interception mode.
	Mode string

	// ModeConfig is the record/replay mode of one process. It is resolved once at
	// startup and never changes afterwards.
	ModeConfig struct {
		// Enabled is false when neither recording nor replaying was requested.
		Enabled bool
		// Mode is the active mode when Enabled is true.
		Mode Mode
		// FilePath is the trace file when Enabled is true.
		FilePath string
	}

	// Signals are the raw inputs ModeConfig is resolved from.
	Signals struct {
		Record   bool
		Replay   bool
		FilePath string
	}

	// ConfigurationError reports conflicting or incomplete mode settings.
	ConfigurationError struct {
		Reason string
	}
)

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
}

// Unwrap returns ErrConfiguration for errors.Is() compatibility.
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// String returns the mode name, or "passthrough" for the zero value.
func (m Mode) String() string {
	if m == "" {
		return "passthrough"
	}
	return string(m)
}

// String describes the resolved configuration.
func (c ModeConfig) String() string {
	if !c.Enabled {
		return "passthrough"
	}
	return fmt.Sprintf("%s (%s)", c.Mode, c.FilePath)
}

// Recording reports whether calls are being recorded.
func (c ModeConfig) Recording() bool { return c.Enabled && c.Mode == ModeRecord }

// Replaying reports whether calls are being replayed.
func (c ModeConfig) Replaying() bool { return c.Enabled && c.Mode == ModeReplay }

// ResolveMode turns signals into a ModeConfig. It reads no files.
func ResolveMode(s Signals) (ModeConfig, error) {
	switch {
	case s.Record && s.Replay:
		return ModeConfig{}, &ConfigurationError{
			Reason: fmt.Sprintf("only one of %s and %s can be enabled", EnvRecordingEnabled, EnvReplayingEnabled),
		}
	case !s.Record && !s.Replay:
		return ModeConfig{}, nil
	}

	mode := ModeRecord
	if s.Replay {
		mode = ModeReplay
	}
	path := strings.TrimSpace(s.FilePath)
	if path == "" {
		return ModeConfig{}, &ConfigurationError{
			Reason: fmt.Sprintf("%s mode is enabled but no trace file was given (set %s)", mode, EnvRecordingFile),
		}
	}
	return ModeConfig{Enabled: true, Mode: mode, FilePath: path}, nil
}

// SignalsFromEnv reads the mode signals through lookup, which has the shape of
// os.LookupEnv.
func SignalsFromEnv(lookup func(string) (string, bool)) Signals {
	var s Signals
	if v, ok := lookup(EnvRecordingEnabled); ok {
		s.Record = IsEnabledValue(v)
	}
	if v, ok := lookup(EnvReplayingEnabled); ok {
		s.Replay = IsEnabledValue(v)
	}
	if v, ok := lookup(EnvRecordingFile); ok {
		s.FilePath = v
	}
	return s
}

// ModeFromEnv resolves the mode from the process environment.
func ModeFromEnv() (ModeConfig, error) {
	return ResolveMode(SignalsFromEnv(os.LookupEnv))
}

// IsEnabledValue reports whether an environment value turns a flag on: any
// non-empty value other than 0, false, no or off.
func IsEnabledValue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
