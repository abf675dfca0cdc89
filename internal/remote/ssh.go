// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultSSHPort        = 22
	defaultConnectTimeout = 10 * time.Second
	defaultCommandTimeout = 10 * time.Minute
)

// ErrNoAuthMethod is returned when no SSH credential source is configured or available.
var ErrNoAuthMethod = errors.New("no SSH authentication method available")

type (
	// SSHConfig configures the SSH transport.
	SSHConfig struct {
		// User is the remote login name (default: current user).
		User string
		// Port is used for targets that do not carry an explicit port (default: 22).
		Port int
		// IdentityFile is a private key file used for public key authentication.
		IdentityFile string
		// Password enables password authentication (used by the local SSH target tokens).
		Password string
		// KnownHostsFile verifies host keys (default: ~/.ssh/known_hosts).
		KnownHostsFile string
		// InsecureIgnoreHostKey disables host key verification.
		InsecureIgnoreHostKey bool
		// ConnectTimeout bounds TCP connect plus SSH handshake.
		ConnectTimeout time.Duration
		// CommandTimeout bounds each command when the request sets no timeout.
		CommandTimeout time.Duration
	}

	// SSHExecutor runs commands on remote hosts over SSH, one target at a time.
	SSHExecutor struct {
		cfg       SSHConfig
		clientCfg *ssh.ClientConfig
		logger    *log.Logger
	}

	// targetResult is the outcome of one command on one host.
	targetResult struct {
		host     string
		output   string
		exitCode int
	}
)

// NewSSHExecutor builds an SSH executor, resolving credentials and host key policy
// eagerly so misconfiguration surfaces before the first command.
func NewSSHExecutor(cfg SSHConfig, logger *log.Logger) (*SSHExecutor, error) {
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultSSHPort
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if logger == nil {
		logger = log.Default().WithPrefix("ssh")
	}

	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}
	hostKeys, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	return &SSHExecutor{
		cfg: cfg,
		clientCfg: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKeys,
			Timeout:         cfg.ConnectTimeout,
		},
		logger: logger,
	}, nil
}

// Run executes the request on every target in order. The output of the first
// target is returned; the first non-accepted exit code aborts the call.
func (e *SSHExecutor) Run(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = e.cfg.CommandTimeout
	}

	var first *targetResult
	for _, target := range req.Targets {
		res, err := e.runOne(ctx, target, req.Line(), timeout)
		if err != nil {
			return "", err
		}
		if res.exitCode != 0 && !req.CaptureErrors {
			return "", &CommandError{Host: res.host, ExitCode: res.exitCode, Output: res.output}
		}
		if first == nil {
			first = res
			continue
		}
		if res.output != first.output {
			e.logger.Debug("output differs between targets", "first", first.host, "other", res.host)
		}
	}

	return shapeOutput(first.output, req), nil
}

// runOne dials a single target and runs one command in a fresh session.
func (e *SSHExecutor) runOne(ctx context.Context, target, line string, timeout time.Duration) (*targetResult, error) {
	addr := e.address(target)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := net.Dialer{Timeout: e.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, e.clientCfg)
	if err != nil {
		_ = conn.Close() // Best-effort cleanup on handshake failure
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open session on %s: %w", addr, err)
	}
	defer func() { _ = session.Close() }()

	e.logger.Debug("running command", "host", target, "command", line)

	type outcome struct {
		out []byte
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, runErr := session.CombinedOutput(line)
		done <- outcome{out: out, err: runErr}
	}()

	select {
	case <-ctx.Done():
		// Closing the client unblocks CombinedOutput.
		_ = client.Close()
		return nil, fmt.Errorf("command on %s interrupted: %w", target, ctx.Err())
	case o := <-done:
		res := &targetResult{host: target, output: string(o.out)}
		if o.err == nil {
			return res, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(o.err, &exitErr) {
			res.exitCode = exitErr.ExitStatus()
			return res, nil
		}
		return nil, fmt.Errorf("command on %s failed: %w", target, o.err)
	}
}

func (e *SSHExecutor) address(target string) string {
	if _, _, err := net.SplitHostPort(target); err == nil {
		return target
	}
	return net.JoinHostPort(target, strconv.Itoa(e.cfg.Port))
}

// authMethods collects credentials in order of preference: identity file,
// password, then the running SSH agent.
func authMethods(cfg SSHConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.IdentityFile != "" {
		pemBytes, err := os.ReadFile(expandHome(cfg.IdentityFile))
		if err != nil {
			return nil, fmt.Errorf("failed to read identity file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse identity file %s: %w", cfg.IdentityFile, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	if len(methods) == 0 {
		return nil, ErrNoAuthMethod
	}
	return methods, nil
}

func hostKeyCallback(cfg SSHConfig) (ssh.HostKeyCallback, error) {
	if cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // Explicitly requested by configuration
	}

	path := cfg.KnownHostsFile
	if path == "" {
		path = filepath.Join("~", ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts from %s: %w", path, err)
	}
	return cb, nil
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~"+string(filepath.Separator) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
