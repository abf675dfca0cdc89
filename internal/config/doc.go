// SPDX-License-Identifier: MPL-2.0

// Package config loads wmcs-cookbook settings with Viper, using CUE as the file
// format.
//
// The file is config.cue in the user configuration directory
// (~/.config/wmcs-cookbook on Linux) or in the current directory. It is
// validated against the embedded config_schema.cue before being merged over
// the defaults. Any key can be overridden from the environment with the
// WMCS_COOKBOOK_ prefix, dots becoming underscores
// (WMCS_COOKBOOK_REPLAY_STRICT_PARAMS=true).
package config
