// SPDX-License-Identifier: MPL-2.0

package sshtarget

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/remote"
)

// commandMiddleware runs exec requests in the embedded shell interpreter and
// PTY requests in the configured login shell.
func (s *Server) commandMiddleware() wish.Middleware {
	return func(_ ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			if script := sess.RawCommand(); script != "" {
				s.runCommand(sess, script)
				return
			}
			s.runShell(sess)
		}
	}
}

func (s *Server) runCommand(sess ssh.Session, script string) {
	code, err := remote.RunScript(sess.Context(), script, s.cfg.Dir, sess.Environ(), remote.ShellIO{
		Stdin:  sess,
		Stdout: sess,
		Stderr: sess.Stderr(),
	})
	if err != nil {
		_, _ = fmt.Fprintf(sess.Stderr(), "%v\n", err)
	}
	s.logger.Debug("command finished", "user", sess.User(), "command", script, "exit_code", code)
	_ = sess.Exit(code) // Terminal operation; error non-critical
}

func (s *Server) runShell(sess ssh.Session) {
	ptyReq, winCh, isPty := sess.Pty()
	if !isPty {
		_, _ = fmt.Fprintln(sess.Stderr(), "interactive sessions require a PTY")
		_ = sess.Exit(1) // Terminal operation; error non-critical
		return
	}

	cmd := exec.CommandContext(sess.Context(), s.cfg.Shell)
	cmd.Dir = s.cfg.Dir
	cmd.Env = append(os.Environ(), sess.Environ()...)
	cmd.Env = append(cmd.Env, "TERM="+ptyReq.Term)

	f, err := startPty(cmd)
	if err != nil {
		_, _ = fmt.Fprintf(sess.Stderr(), "failed to start shell: %v\n", err)
		_ = sess.Exit(1) // Terminal operation; error non-critical
		return
	}
	defer func() { _ = f.Close() }() // PTY cleanup; error non-critical

	setWinsize(f, ptyReq.Window.Width, ptyReq.Window.Height)
	go func() {
		for win := range winCh {
			setWinsize(f, win.Width, win.Height)
		}
	}()

	go func() { _, _ = io.Copy(f, sess) }()
	_, _ = io.Copy(sess, f)

	code := 0
	if err := cmd.Wait(); err != nil {
		code = 1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
	}
	_ = sess.Exit(code) // Terminal operation; error non-critical
}
