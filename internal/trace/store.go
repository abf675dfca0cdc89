// SPDX-License-Identifier: MPL-2.0

package trace

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and validates the trace file at path.
func Load(path string) (Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes a trace document. It accepts a single YAML list of records and,
// for older recordings, a stream of YAML documents holding one record each.
// source only labels errors.
func Parse(data []byte, source string) (Trace, error) {
	var docs []*yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &MalformedTraceError{Path: source, Index: -1, Reason: err.Error()}
		}
		root := documentRoot(&doc)
		if root == nil || (root.Kind == yaml.ScalarNode && root.Tag == "!!null") {
			continue
		}
		docs = append(docs, root)
	}

	if len(docs) == 0 {
		return Trace{}, nil
	}

	var nodes []*yaml.Node
	if docs[0].Kind == yaml.SequenceNode {
		if len(docs) > 1 {
			return nil, &MalformedTraceError{Path: source, Index: -1, Reason: "a record list must be the only document"}
		}
		nodes = docs[0].Content
	} else {
		nodes = docs
	}

	t := make(Trace, 0, len(nodes))
	for i, n := range nodes {
		r, err := decodeRecord(n)
		if err != nil {
			return nil, &MalformedTraceError{Path: source, Index: i, Reason: err.Error()}
		}
		t = append(t, r)
	}
	if err := t.Validate(); err != nil {
		var mErr *MalformedTraceError
		if errors.As(err, &mErr) {
			mErr.Path = source
		}
		return nil, err
	}
	return t, nil
}

// Marshal encodes a trace as a single YAML list document.
func Marshal(t Trace) ([]byte, error) {
	if t == nil {
		t = Trace{}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode([]CallRecord(t)); err != nil {
		return nil, fmt.Errorf("failed to encode trace: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode trace: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes t to path, replacing any previous content. The document is
// written to a temporary file in the same directory and renamed over path, so
// an interrupted save leaves the previous file intact.
func Save(path string, t Trace) error {
	if err := t.Validate(); err != nil {
		return err
	}
	data, err := Marshal(t)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create trace directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary trace file: %w", err)
	}
	tmpPath := tmp.Name()

	if writeErr := func() (writeErr error) {
		defer func() {
			if closeErr := tmp.Close(); closeErr != nil && writeErr == nil {
				writeErr = closeErr
			}
		}()
		if _, writeErr = tmp.Write(data); writeErr != nil {
			return writeErr
		}
		return tmp.Sync()
	}(); writeErr != nil {
		_ = os.Remove(tmpPath) // Best-effort cleanup
		return fmt.Errorf("failed to write temporary trace file: %w", writeErr)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath) // Best-effort cleanup
		return fmt.Errorf("failed to set trace file mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) // Best-effort cleanup
		return fmt.Errorf("failed to rename temporary trace file: %w", err)
	}
	return nil
}

// rawRecord mirrors CallRecord with optional fields so missing keys can be told
// apart from zero values.
type rawRecord struct {
	Params    map[string]any `yaml:"params"`
	Output    *Output        `yaml:"output"`
	RepeatNum *int           `yaml:"repeat_num"`
}

func decodeRecord(n *yaml.Node) (CallRecord, error) {
	if n.Kind != yaml.MappingNode {
		return CallRecord{}, errors.New("record must be a mapping")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		switch key := n.Content[i].Value; key {
		case "params", "output", "repeat_num":
		default:
			return CallRecord{}, fmt.Errorf("unknown field %q", key)
		}
	}

	var raw rawRecord
	if err := n.Decode(&raw); err != nil {
		return CallRecord{}, err
	}
	if !hasKey(n, "params") {
		return CallRecord{}, errors.New("missing field \"params\"")
	}
	if raw.Output == nil {
		if !hasKey(n, "output") {
			return CallRecord{}, errors.New("missing field \"output\"")
		}
		raw.Output = &Output{}
	}

	r := CallRecord{Params: raw.Params, Output: *raw.Output, RepeatNum: 1}
	if raw.RepeatNum != nil {
		r.RepeatNum = *raw.RepeatNum
	}
	return r, nil
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil
		}
		return doc.Content[0]
	}
	return doc
}
