// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// FormatJSON parses command output as JSON.
	FormatJSON OutputFormat = "json"
	// FormatYAML parses command output as YAML.
	FormatYAML OutputFormat = "yaml"
)

// ErrUnexpectedShape is returned when parsed output is not the requested container type.
var ErrUnexpectedShape = errors.New("unexpected output shape")

type (
	// OutputFormat selects how structured command output is decoded.
	OutputFormat string

	// ParseError reports command output that could not be decoded.
	ParseError struct {
		Format OutputFormat
		Output string
		Err    error
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse output of command as %s: %v\n%s", e.Format, e.Err, e.Output)
}

// Unwrap returns the decoder error.
func (e *ParseError) Unwrap() error { return e.Err }

// RunRaw runs req through exec and returns the raw text output.
func RunRaw(ctx context.Context, exec Executor, req Request) (string, error) {
	return exec.Run(ctx, req)
}

// RunFormatted runs req through exec and decodes the output. Lines matching any
// of the ignore patterns are dropped before decoding.
func RunFormatted(ctx context.Context, exec Executor, req Request, format OutputFormat, ignore ...*regexp.Regexp) (any, error) {
	raw, err := exec.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(ignore) > 0 {
		kept := make([]string, 0)
		for _, line := range splitLines(raw) {
			if !matchesAny(line, ignore) {
				kept = append(kept, line)
			}
		}
		raw = strings.Join(kept, "\n")
	}

	var out any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, &ParseError{Format: format, Output: raw, Err: err}
		}
	case FormatYAML:
		if err := yaml.Unmarshal([]byte(raw), &out); err != nil {
			return nil, &ParseError{Format: format, Output: raw, Err: err}
		}
	default:
		return nil, fmt.Errorf("unrecognized output format %q", format)
	}
	return out, nil
}

// RunAsList runs req and requires the decoded output to be a list.
func RunAsList(ctx context.Context, exec Executor, req Request, format OutputFormat) ([]any, error) {
	out, err := RunFormatted(ctx, exec, req, format)
	if err != nil {
		return nil, err
	}
	list, ok := out.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: was expecting a list, got %T", ErrUnexpectedShape, out)
	}
	return list, nil
}

// RunAsMap runs req and requires the decoded output to be a mapping.
func RunAsMap(ctx context.Context, exec Executor, req Request, format OutputFormat) (map[string]any, error) {
	out, err := RunFormatted(ctx, exec, req, format)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: was expecting a mapping, got %T", ErrUnexpectedShape, out)
	}
	return m, nil
}

func matchesAny(line string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}
