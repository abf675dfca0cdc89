// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level LogLevel
		want  bool
		lvl   log.Level
	}{
		{LogLevelDebug, true, log.DebugLevel},
		{LogLevelInfo, true, log.InfoLevel},
		{LogLevelWarn, true, log.WarnLevel},
		{LogLevelError, true, log.ErrorLevel},
		{"", false, log.InfoLevel},
		{"verbose", false, log.InfoLevel},
	}
	for _, tt := range tests {
		ok, errs := tt.level.IsValid()
		if ok != tt.want {
			t.Errorf("LogLevel(%q).IsValid() = %v, want %v", tt.level, ok, tt.want)
		}
		if !tt.want {
			var lvlErr *InvalidLogLevelError
			if len(errs) != 1 || !errors.As(errs[0], &lvlErr) || !errors.Is(errs[0], ErrInvalidLogLevel) {
				t.Errorf("LogLevel(%q) errors = %v", tt.level, errs)
			}
		}
		if got := tt.level.Level(); got != tt.lvl {
			t.Errorf("LogLevel(%q).Level() = %v, want %v", tt.level, got, tt.lvl)
		}
	}
}

func TestConfig_IsValid_CollectsFieldErrors(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.LogLevel = "loud"
	cfg.Remote.Port = 0
	cfg.Remote.CommandTimeout = -time.Second
	cfg.Target.Port = 70000

	ok, errs := cfg.IsValid()
	if ok || len(errs) != 1 {
		t.Fatalf("IsValid() = %v, %v", ok, errs)
	}
	var cfgErr *InvalidConfigError
	if !errors.As(errs[0], &cfgErr) {
		t.Fatalf("error should be *InvalidConfigError, got %T", errs[0])
	}
	if len(cfgErr.FieldErrors) != 4 {
		t.Errorf("FieldErrors = %v, want 4", cfgErr.FieldErrors)
	}
	for _, sentinel := range []error{ErrInvalidConfig, ErrInvalidLogLevel, ErrInvalidPort, ErrInvalidTimeout} {
		if !errors.Is(errs[0], sentinel) {
			t.Errorf("error should wrap %v", sentinel)
		}
	}
}

func TestTargetConfig_IsValid(t *testing.T) {
	t.Parallel()

	if ok, errs := (TargetConfig{Port: 0}).IsValid(); !ok {
		t.Errorf("port 0 selects a free port and should be valid: %v", errs)
	}
	if ok, _ := (TargetConfig{TokenTTL: -time.Minute}).IsValid(); ok {
		t.Error("negative token TTL should be invalid")
	}
}
