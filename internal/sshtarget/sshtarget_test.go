// SPDX-License-Identifier: MPL-2.0

package sshtarget_test

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/recorder"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/remote"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/sshtarget"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/testutil"
)

func newTarget(t *testing.T) (*sshtarget.Server, *remote.SSHExecutor) {
	t.Helper()

	cfg := sshtarget.DefaultConfig()
	cfg.Dir = t.TempDir()
	cfg.HostKeyPath = filepath.Join(t.TempDir(), "host_ed25519")
	srv := sshtarget.New(cfg, log.New(io.Discard))
	if err := srv.Start(t.Context()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { testutil.MustStop(t, srv) })

	info, err := srv.ConnectionInfo(t.Name())
	if err != nil {
		t.Fatalf("ConnectionInfo() error: %v", err)
	}
	exec, err := remote.NewSSHExecutor(remote.SSHConfig{
		User:                  info.User,
		Port:                  info.Port,
		Password:              info.Token.String(),
		InsecureIgnoreHostKey: true,
	}, log.New(io.Discard))
	if err != nil {
		t.Fatalf("NewSSHExecutor() error: %v", err)
	}
	return srv, exec
}

func TestSSHExecutorAgainstTarget(t *testing.T) {
	t.Parallel()

	srv, exec := newTarget(t)
	host := srv.Config().Host.String()

	out, err := exec.Run(t.Context(), remote.Request{Command: []string{"echo", "hello", "world"}, Targets: []string{host}})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out != "hello world\n" {
		t.Errorf("Run() = %q, want %q", out, "hello world\n")
	}

	_, err = exec.Run(t.Context(), remote.Request{Command: []string{"echo", "down", ";", "exit", "3"}, Targets: []string{host}})
	var cmdErr *remote.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Run() error = %v, want *remote.CommandError", err)
	}
	if cmdErr.ExitCode != 3 || !strings.Contains(cmdErr.Output, "down") {
		t.Errorf("CommandError = %+v", cmdErr)
	}

	out, err = exec.Run(t.Context(), remote.Request{
		Command:       []string{"echo", "partial", ";", "exit", "4"},
		Targets:       []string{host},
		CaptureErrors: true,
	})
	if err != nil || out != "partial\n" {
		t.Errorf("Run(CaptureErrors) = %q, %v", out, err)
	}
}

func TestSSHExecutor_WrongTokenIsRejected(t *testing.T) {
	t.Parallel()

	srv, _ := newTarget(t)
	exec, err := remote.NewSSHExecutor(remote.SSHConfig{
		User:                  sshtarget.DefaultUser,
		Port:                  srv.Port(),
		Password:              "wrong",
		InsecureIgnoreHostKey: true,
	}, log.New(io.Discard))
	if err != nil {
		t.Fatalf("NewSSHExecutor() error: %v", err)
	}
	if _, err := exec.Run(t.Context(), remote.Request{Command: []string{"true"}, Targets: []string{"127.0.0.1"}}); err == nil {
		t.Error("Run() with a wrong token should fail")
	}
}

func TestRecordOverSSHThenReplay(t *testing.T) {
	t.Parallel()

	srv, exec := newTarget(t)
	host := srv.Config().Host.String()
	path := filepath.Join(t.TempDir(), "trace.yaml")
	logger := log.New(io.Discard)

	requests := []remote.Request{
		{Command: []string{"echo", "up 3 days"}, Targets: []string{host}},
		{Command: []string{"exit", "2"}, Targets: []string{host}},
	}
	run := func(e remote.Executor) []string {
		var got []string
		for _, req := range requests {
			out, err := e.Run(t.Context(), req)
			if err != nil {
				got = append(got, "error: "+err.Error())
				continue
			}
			got = append(got, out)
		}
		return got
	}

	rec, err := recorder.NewSession(
		recorder.ModeConfig{Enabled: true, Mode: recorder.ModeRecord, FilePath: path}, exec, recorder.WithLogger(logger))
	if err != nil {
		t.Fatalf("NewSession(record) error: %v", err)
	}
	recorded := run(rec.Executor())
	if err := rec.Finish(); err != nil {
		t.Fatalf("Finish(record) error: %v", err)
	}

	testutil.MustStop(t, srv)

	rep, err := recorder.NewSession(
		recorder.ModeConfig{Enabled: true, Mode: recorder.ModeReplay, FilePath: path}, exec, recorder.WithLogger(logger))
	if err != nil {
		t.Fatalf("NewSession(replay) error: %v", err)
	}
	replayed := run(rep.Executor())
	if err := rep.Finish(); err != nil {
		t.Fatalf("Finish(replay) error: %v", err)
	}

	if strings.Join(recorded, "|") != strings.Join(replayed, "|") {
		t.Errorf("replayed %q, recorded %q", replayed, recorded)
	}
}
