// SPDX-License-Identifier: MPL-2.0

package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/remote"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/trace"
)

type (
	// Session is one record/replay run around a real executor. The executor
	// strategy is chosen once, when the session is created.
	Session struct {
		mode     ModeConfig
		exec     remote.Executor
		recorder *Recorder
		replayer *Replayer

		mu       sync.Mutex
		finished bool
	}

	// Recorder calls the real executor and appends every outcome to the trace
	// file, saving after each call.
	Recorder struct {
		inner  remote.Executor
		path   string
		logger *log.Logger

		mu    sync.Mutex
		trace trace.Trace
	}

	// Replayer answers calls from a loaded trace and never reaches the real
	// executor.
	Replayer struct {
		path        string
		cursor      *trace.Cursor
		unreachable []int
		strict      bool
		logger      *log.Logger
	}
)

// NewSession builds the executor for mode around inner. With recording or
// replaying disabled the session hands out inner unchanged. Replay loads the
// trace immediately, so a malformed file fails here.
func NewSession(mode ModeConfig, inner remote.Executor, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{mode: mode, exec: inner}
	switch {
	case mode.Recording():
		s.recorder = NewRecorder(inner, mode.FilePath, o.loggerFor(ModeRecord))
		s.exec = s.recorder
	case mode.Replaying():
		r, err := NewReplayer(mode.FilePath, o.strictParams, o.loggerFor(ModeReplay))
		if err != nil {
			return nil, err
		}
		if o.warnUnreachable {
			r.warnUnreachable()
		}
		s.replayer = r
		s.exec = r
	}
	return s, nil
}

// Executor returns the executor cookbooks must use for this session.
func (s *Session) Executor() remote.Executor { return s.exec }

// Mode returns the mode the session was created with.
func (s *Session) Mode() ModeConfig { return s.mode }

// Finish ends the session. Recording saves the trace one last time, which
// creates the file even when no call was made. Replay fails with
// UnreplayedEntriesError when records were left unserved. Only the first call
// does any work.
func (s *Session) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return nil
	}
	s.finished = true

	switch {
	case s.recorder != nil:
		return s.recorder.Flush()
	case s.replayer != nil:
		return s.replayer.CheckComplete()
	}
	return nil
}

// NewRecorder returns a recorder writing to path. The file is overwritten by
// the first save.
func NewRecorder(inner remote.Executor, path string, logger *log.Logger) *Recorder {
	return &Recorder{inner: inner, path: path, logger: logger, trace: trace.Trace{}}
}

// Run calls the real executor and records the outcome. A failure to persist
// the trace is returned alongside the call result, since the recording would
// otherwise be silently incomplete.
func (r *Recorder) Run(ctx context.Context, req remote.Request) (string, error) {
	out, callErr := r.inner.Run(ctx, req)

	record := trace.CallRecord{
		Params:    ParamsFor(req),
		Output:    outputFor(out, callErr),
		RepeatNum: 1,
	}

	r.mu.Lock()
	r.trace = append(r.trace, record)
	n := len(r.trace)
	saveErr := trace.Save(r.path, r.trace)
	r.mu.Unlock()

	if saveErr != nil {
		return out, errors.Join(callErr, fmt.Errorf("%w %s: %w", ErrPersistRecording, r.path, saveErr))
	}
	r.logger.Debug("recorded call", "entry", n-1, "command", req.Line(), "failed", callErr != nil)
	return out, callErr
}

// Flush saves the current trace.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := trace.Save(r.path, r.trace); err != nil {
		return fmt.Errorf("%w %s: %w", ErrPersistRecording, r.path, err)
	}
	r.logger.Info("recording saved", "file", r.path, "entries", len(r.trace))
	return nil
}

// Trace returns a copy of the records captured so far.
func (r *Recorder) Trace() trace.Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(trace.Trace, len(r.trace))
	copy(out, r.trace)
	return out
}

// NewReplayer loads the trace at path and returns a replayer positioned at its
// first record.
func NewReplayer(path string, strict bool, logger *log.Logger) (*Replayer, error) {
	t, err := trace.Load(path)
	if err != nil {
		return nil, err
	}
	return &Replayer{
		path:        path,
		cursor:      trace.NewCursor(t),
		unreachable: t.UnreachableRecords(),
		strict:      strict,
		logger:      logger,
	}, nil
}

// Run serves the next record. ctx is not consulted: replay never blocks.
func (r *Replayer) Run(_ context.Context, req remote.Request) (string, error) {
	served, err := r.cursor.Serve()
	if err != nil {
		return "", err
	}

	if served.RepeatsLeft == trace.RepeatForever {
		r.logger.Debug("replaying entry", "entry", served.Index, "repeats_left", "infinite")
	} else {
		r.logger.Debug("replaying entry", "entry", served.Index, "repeats_left", served.RepeatsLeft)
	}

	if r.strict {
		if err := compareParams(served.Index, served.Record.Params, ParamsFor(req)); err != nil {
			return "", err
		}
	}

	if f := served.Record.Output.Failure; f != nil {
		return "", failureError(*f)
	}
	return served.Record.Output.Text, nil
}

// CheckComplete fails when the run stopped before the recording was fully
// served. A cursor resting on a final repeat-forever record counts as complete.
func (r *Replayer) CheckComplete() error {
	if r.cursor.Complete() {
		return nil
	}
	next, _ := r.cursor.Position()
	return &UnreplayedEntriesError{
		Path:       r.path,
		Calls:      r.cursor.Calls(),
		NextRecord: next,
		Records:    r.cursor.Len(),
	}
}

// Cursor exposes the replay position.
func (r *Replayer) Cursor() *trace.Cursor { return r.cursor }

// Unreachable returns the indices of records that follow a repeat-forever
// record and can never be served.
func (r *Replayer) Unreachable() []int { return r.unreachable }

func (r *Replayer) warnUnreachable() {
	for _, i := range r.unreachable {
		r.logger.Warn("record can never be replayed: it follows a repeat-forever record", "file", r.path, "entry", i)
	}
}

// ParamsFor returns the inspection-only parameters stored for req. Optional
// fields are included only when set.
func ParamsFor(req remote.Request) map[string]any {
	params := map[string]any{
		"command": append([]string{}, req.Command...),
		"targets": append([]string{}, req.Targets...),
	}
	if req.CaptureErrors {
		params["capture_errors"] = true
	}
	if req.LastLineOnly {
		params["last_line_only"] = true
	}
	if req.SkipFirstLine {
		params["skip_first_line"] = true
	}
	if req.Timeout > 0 {
		params["timeout"] = req.Timeout.String()
	}
	return params
}

func outputFor(out string, err error) trace.Output {
	if err == nil {
		return trace.TextOutput(out)
	}
	f := trace.Failure{Error: err.Error()}
	var cmdErr *remote.CommandError
	if errors.As(err, &cmdErr) {
		f.ExitCode = cmdErr.ExitCode
		f.Host = cmdErr.Host
		f.Output = cmdErr.Output
	}
	return trace.FailedOutput(f)
}

func failureError(f trace.Failure) error {
	if f.ExitCode != 0 {
		return &remote.CommandError{Host: f.Host, ExitCode: f.ExitCode, Output: f.Output}
	}
	return &RecordedFailure{Message: f.Error}
}

// compareParams compares both sides through their YAML encoding, which makes
// []string and the []any read back from a file compare equal.
func compareParams(index int, recorded, live map[string]any) error {
	if recorded == nil {
		recorded = map[string]any{}
	}
	want, err := yaml.Marshal(recorded)
	if err != nil {
		return fmt.Errorf("failed to encode recorded params: %w", err)
	}
	got, err := yaml.Marshal(live)
	if err != nil {
		return fmt.Errorf("failed to encode live params: %w", err)
	}
	if string(want) != string(got) {
		return &ParamsMismatchError{Index: index, Recorded: string(want), Live: string(got)}
	}
	return nil
}
