// SPDX-License-Identifier: MPL-2.0

package recorder

import (
	"os"

	"github.com/charmbracelet/log"
)

type (
	// sessionOptions holds the tunables of a Session.
	sessionOptions struct {
		logger          *log.Logger
		strictParams    bool
		warnUnreachable bool
	}

	// Option configures a Session.
	Option func(*sessionOptions)
)

func defaultOptions() sessionOptions {
	return sessionOptions{
		strictParams:    false,
		warnUnreachable: true,
	}
}

// WithLogger sets the logger used for record and replay diagnostics.
// Default logs to stderr with a mode prefix.
func WithLogger(logger *log.Logger) Option {
	return func(o *sessionOptions) {
		o.logger = logger
	}
}

// WithStrictParams makes replay compare the live call parameters with the
// stored ones and fail on any difference. Default is false: params are kept for
// inspection only and replay matches by order.
func WithStrictParams(strict bool) Option {
	return func(o *sessionOptions) {
		o.strictParams = strict
	}
}

// WithWarnUnreachable controls the load-time warning for records that follow a
// repeat-forever record. Default is true.
func WithWarnUnreachable(warn bool) Option {
	return func(o *sessionOptions) {
		o.warnUnreachable = warn
	}
}

func (o sessionOptions) loggerFor(mode Mode) *log.Logger {
	if o.logger != nil {
		return o.logger.WithPrefix(string(mode))
	}
	return log.NewWithOptions(os.Stderr, log.Options{Prefix: string(mode)})
}
