// SPDX-License-Identifier: MPL-2.0

package trace

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RepeatForever makes a record answer every later call for the rest of the run.
const RepeatForever = -1

type (
	// CallRecord is one captured invocation of the wrapped capability.
	CallRecord struct {
		// Params are the call arguments, kept for inspection only.
		Params map[string]any `yaml:"params" json:"params"`
		// Output is the captured result or failure.
		Output Output `yaml:"output" json:"output"`
		// RepeatNum is how many consecutive calls this record answers (>= 1),
		// or RepeatForever.
		RepeatNum int `yaml:"repeat_num" json:"repeat_num"`
	}

	// Output is the captured outcome of a call: success text or a failure.
	//
	// In a trace file a failure is a mapping with an "error" key. A hand-written
	// mapping output is structured success output unless it has that key, so
	// structured output whose top level carries an "error" field must be
	// written as a JSON string scalar instead.
	Output struct {
		Text    string
		Failure *Failure
	}

	// Failure is the recorded form of a failed call.
	Failure struct {
		// Error is the failure message.
		Error string `yaml:"error" json:"error"`
		// ExitCode is set when a command ran and exited with a non-accepted code.
		ExitCode int `yaml:"exit_code,omitempty" json:"exit_code,omitempty"`
		// Host is the target that failed, when known.
		Host string `yaml:"host,omitempty" json:"host,omitempty"`
		// Output is the command output captured alongside the failure.
		Output string `yaml:"output,omitempty" json:"output,omitempty"`
	}

	// Trace is an ordered list of call records, in call order of the recorded run.
	Trace []CallRecord
)

// TextOutput returns a successful Output.
func TextOutput(text string) Output {
	return Output{Text: text}
}

// FailedOutput returns a failed Output.
func FailedOutput(f Failure) Output {
	return Output{Failure: &f}
}

// Failed reports whether the output records a failure.
func (o Output) Failed() bool {
	return o.Failure != nil
}

// MarshalYAML writes success text as a plain scalar and a failure as a mapping.
func (o Output) MarshalYAML() (any, error) {
	if o.Failure != nil {
		return o.Failure, nil
	}
	return o.Text, nil
}

// UnmarshalYAML accepts a scalar (success text), a mapping with an "error" key
// (failure), or any other mapping or sequence, which is structured output and is
// kept as its JSON encoding.
func (o *Output) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*o = Output{}
		if value.Tag == "!!null" {
			return nil
		}
		// Output that is not valid UTF-8 is stored as a !!binary scalar.
		if err := value.Decode(&o.Text); err != nil {
			return fmt.Errorf("invalid output: %w", err)
		}
		return nil
	case yaml.MappingNode:
		if hasKey(value, "error") {
			var f Failure
			if err := value.Decode(&f); err != nil {
				return fmt.Errorf("invalid failure output: %w", err)
			}
			*o = Output{Failure: &f}
			return nil
		}
	case yaml.AliasNode:
		return o.UnmarshalYAML(value.Alias)
	}

	var structured any
	if err := value.Decode(&structured); err != nil {
		return fmt.Errorf("invalid structured output: %w", err)
	}
	encoded, err := json.Marshal(structured)
	if err != nil {
		return fmt.Errorf("structured output cannot be encoded as JSON: %w", err)
	}
	*o = Output{Text: string(encoded)}
	return nil
}

// MarshalJSON mirrors MarshalYAML for JSON views of a trace.
func (o Output) MarshalJSON() ([]byte, error) {
	if o.Failure != nil {
		return json.Marshal(o.Failure)
	}
	return json.Marshal(o.Text)
}

// IsValidRepeatNum reports whether n is a legal repeat count.
func IsValidRepeatNum(n int) bool {
	return n >= 1 || n == RepeatForever
}

// Validate checks every record's repeat count.
func (t Trace) Validate() error {
	for i, r := range t {
		if !IsValidRepeatNum(r.RepeatNum) {
			return &MalformedTraceError{
				Index:  i,
				Reason: fmt.Sprintf("repeat_num must be >= 1 or %d, got %d", RepeatForever, r.RepeatNum),
			}
		}
	}
	return nil
}

// UnreachableRecords returns the indices of records that follow the first
// RepeatForever record and therefore can never be served.
func (t Trace) UnreachableRecords() []int {
	var dead []int
	for i, r := range t {
		if r.RepeatNum != RepeatForever {
			continue
		}
		for j := i + 1; j < len(t); j++ {
			dead = append(dead, j)
		}
		break
	}
	return dead
}

// View returns the trace as plain maps and lists, for encoders that do not
// know about Output (TOML).
func (t Trace) View() map[string]any {
	records := make([]map[string]any, 0, len(t))
	for _, r := range t {
		entry := map[string]any{
			"params":     r.Params,
			"repeat_num": r.RepeatNum,
		}
		if r.Params == nil {
			entry["params"] = map[string]any{}
		}
		if r.Output.Failure != nil {
			f := map[string]any{"error": r.Output.Failure.Error}
			if r.Output.Failure.ExitCode != 0 {
				f["exit_code"] = r.Output.Failure.ExitCode
			}
			if r.Output.Failure.Host != "" {
				f["host"] = r.Output.Failure.Host
			}
			if r.Output.Failure.Output != "" {
				f["output"] = r.Output.Failure.Output
			}
			entry["output"] = f
		} else {
			entry["output"] = r.Output.Text
		}
		records = append(records, entry)
	}
	return map[string]any{"records": records}
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}
