// SPDX-License-Identifier: EPL-2.0

package sshtarget

import (
	"context"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
)

const (
	// StateCreated indicates the server has been created but not started.
	StateCreated State = iota
	// StateStarting indicates the server is binding its listener.
	StateStarting
	// StateRunning indicates the server is accepting connections.
	StateRunning
	// StateStopping indicates the server is shutting down.
	StateStopping
	// StateStopped indicates the server has stopped (terminal state).
	StateStopped
	// StateFailed indicates the server failed to start or serve (terminal state).
	StateFailed

	// DefaultUser is the login name advertised in ConnectionInfo.
	DefaultUser = "cookbook"
)

type (
	// State is the lifecycle state of a Server.
	State int32

	// Clock supplies the current time for token expiry.
	Clock interface {
		Now() time.Time
	}

	systemClock struct{}

	// Token is a login credential handed out by the server.
	Token struct {
		Value     TokenValue
		Label     string
		CreatedAt time.Time
		ExpiresAt time.Time
	}

	// Config holds immutable configuration for the SSH target.
	Config struct {
		// Host is the address to bind to (default: 127.0.0.1).
		Host HostAddress
		// Port is the port to listen on (0 = auto-select).
		Port Port
		// User is the login name reported by ConnectionInfo. Any user name is
		// accepted as long as the token matches.
		User string
		// Dir is the working directory of executed commands (default: current directory).
		Dir string
		// Shell runs interactive PTY sessions (default: $SHELL or /bin/sh).
		Shell string
		// HostKeyPath stores the server host key. An empty path keeps a
		// generated key in memory only.
		HostKeyPath string
		// TokenTTL is how long generated tokens stay valid (default: 1 hour).
		TokenTTL time.Duration
		// StartupTimeout bounds Start (default: 5s).
		StartupTimeout time.Duration
		// ShutdownTimeout bounds the graceful part of Stop (default: 10s).
		ShutdownTimeout time.Duration
	}

	// ConnectionInfo is what a client needs to log in.
	ConnectionInfo struct {
		Host      HostAddress
		Port      int
		User      string
		Token     TokenValue
		ExpiresAt time.Time
	}

	// Server is a single-use SSH target: once stopped or failed, create a new one.
	Server struct {
		cfg    Config
		clock  Clock
		logger *log.Logger

		state atomic.Int32

		srvMu    sync.Mutex
		srv      *ssh.Server
		listener net.Listener
		addr     string

		ctx       context.Context
		cancel    context.CancelFunc
		wg        sync.WaitGroup
		startedCh chan struct{}
		errCh     chan error
		errMu     sync.Mutex
		lastErr   error

		tokenMu sync.RWMutex
		tokens  map[TokenValue]*Token
	}
)

func (systemClock) Now() time.Time { return time.Now() }

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultConfig returns a configuration listening on a free loopback port.
func DefaultConfig() Config {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return Config{
		Host:            "127.0.0.1",
		User:            DefaultUser,
		Shell:           shell,
		TokenTTL:        time.Hour,
		StartupTimeout:  5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks every field of the configuration.
func (c Config) Validate() error {
	var errs []error
	if ok, fieldErrs := c.Host.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if ok, fieldErrs := c.Port.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// New creates a server. Zero config fields take their DefaultConfig value.
func New(cfg Config, logger *log.Logger) *Server {
	return NewWithClock(cfg, logger, systemClock{})
}

// NewWithClock creates a server whose token expiry follows clock.
func NewWithClock(cfg Config, logger *log.Logger, clock Clock) *Server {
	def := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if cfg.User == "" {
		cfg.User = def.User
	}
	if cfg.Shell == "" {
		cfg.Shell = def.Shell
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = def.TokenTTL
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = def.StartupTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "ssh-target"})
	}

	return &Server{
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		startedCh: make(chan struct{}),
		errCh:     make(chan error, 1),
		tokens:    make(map[TokenValue]*Token),
	}
}

// Config returns the effective configuration.
func (s *Server) Config() Config { return s.cfg }
