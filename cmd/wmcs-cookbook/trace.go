// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/trace"
)

const (
	traceFormatYAML traceFormat = "yaml"
	traceFormatJSON traceFormat = "json"
	traceFormatTOML traceFormat = "toml"
)

// ErrUnknownTraceFormat is returned for an unsupported --format value.
var ErrUnknownTraceFormat = errors.New("unknown trace format")

// traceFormat is an output encoding of "trace show".
type traceFormat string

func newTraceCommand(app *App) *cobra.Command {
	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded trace files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Print a trace in a normalized encoding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return silenceOnExitError(cmd, showTrace(app, args[0], traceFormat(format)))
		},
	}
	showCmd.Flags().StringVarP(&format, "format", "f", string(traceFormatYAML), "output format: yaml, json or toml")

	var strict bool
	validateCmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a trace and report records that can never be replayed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return silenceOnExitError(cmd, validateTrace(app, args[0], strict))
		},
	}
	validateCmd.Flags().BoolVar(&strict, "strict", false, "fail when some records are unreachable")

	traceCmd.AddCommand(showCmd, validateCmd)
	return traceCmd
}

func encodeTrace(t trace.Trace, format traceFormat) ([]byte, error) {
	switch format {
	case traceFormatYAML:
		return trace.Marshal(t)
	case traceFormatJSON:
		if t == nil {
			t = trace.Trace{}
		}
		out, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case traceFormatTOML:
		return toml.Marshal(t.View())
	default:
		return nil, fmt.Errorf("%w: %q (want yaml, json or toml)", ErrUnknownTraceFormat, format)
	}
}

func showTrace(app *App, path string, format traceFormat) error {
	t, err := trace.Load(path)
	if err != nil {
		return app.fail(err)
	}
	out, err := encodeTrace(t, format)
	if err != nil {
		return app.fail(err)
	}
	_, err = app.stdout.Write(out)
	return err
}

func validateTrace(app *App, path string, strict bool) error {
	t, err := trace.Load(path)
	if err != nil {
		return app.fail(err)
	}

	calls := 0
	forever := false
	for _, r := range t {
		if r.RepeatNum == trace.RepeatForever {
			forever = true
			break
		}
		calls += r.RepeatNum
	}

	callsDesc := fmt.Sprintf("%d calls", calls)
	if forever {
		callsDesc = fmt.Sprintf("at least %d calls", calls+1)
	}
	fmt.Fprintf(app.stdout, "%s %s: %d records, answers %s\n", SuccessStyle.Render("✓"), path, len(t), callsDesc)

	dead := t.UnreachableRecords()
	if len(dead) == 0 {
		return nil
	}

	idx := make([]string, len(dead))
	for i, d := range dead {
		idx[i] = fmt.Sprint(d)
	}
	fmt.Fprintf(app.stdout, "%s records %s follow a repeat_num: %d record and can never be replayed\n",
		WarningStyle.Render("!"), strings.Join(idx, ", "), trace.RepeatForever)

	if strict {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("%s: %d unreachable records", path, len(dead))}
	}
	return nil
}
