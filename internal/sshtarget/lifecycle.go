// SPDX-License-Identifier: MPL-2.0

package sshtarget

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
)

var (
	// ErrAlreadyStarted is returned by Start on a server that left StateCreated.
	ErrAlreadyStarted = errors.New("SSH target already started")
	// ErrNotRunning is returned by operations that need a running server.
	ErrNotRunning = errors.New("SSH target is not running")
)

const tokenSweepInterval = 5 * time.Minute

// Start binds the listener and blocks until the server accepts connections,
// fails, or ctx ends. After Start returns nil, use Err to watch for serve errors.
func (s *Server) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("%w (state: %s)", ErrAlreadyStarted, s.State())
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	startupCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	addr := net.JoinHostPort(s.cfg.Host.String(), strconv.Itoa(int(s.cfg.Port)))
	var lc net.ListenConfig
	listener, err := lc.Listen(startupCtx, "tcp", addr)
	if err != nil {
		return s.fail(fmt.Errorf("failed to listen on %s: %w", addr, err))
	}

	opts := []ssh.Option{
		wish.WithAddress(addr),
		wish.WithPublicKeyAuth(s.publicKeyHandler),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithMiddleware(s.commandMiddleware()),
	}
	if s.cfg.HostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(s.cfg.HostKeyPath))
	}
	srv, err := wish.NewServer(opts...)
	if err != nil {
		_ = listener.Close() // Best-effort cleanup on error
		return s.fail(fmt.Errorf("failed to create SSH server: %w", err))
	}

	s.srvMu.Lock()
	s.srv = srv
	s.listener = listener
	s.addr = listener.Addr().String()
	s.srvMu.Unlock()

	s.wg.Add(2)
	go s.serve()
	go s.sweepTokens()

	select {
	case <-s.startedCh:
		s.logger.Info("SSH target started", "address", s.addr)
		return nil
	case err := <-s.errCh:
		return s.fail(err)
	case <-startupCtx.Done():
		return s.fail(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
	}
}

// Stop shuts the server down gracefully. Calling it again, or on a server
// that never started, is a no-op.
func (s *Server) Stop() error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		s.wg.Wait()
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	s.srvMu.Lock()
	if s.srv != nil {
		if err := s.srv.Shutdown(shutdownCtx); err != nil && !isClosedConnError(err) {
			s.logger.Error("shutdown error", "error", err)
			shutdownErr = err
		}
	}
	if s.listener != nil {
		_ = s.listener.Close() // Best-effort cleanup during shutdown
	}
	s.srvMu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.state.Store(int32(StateStopped))
	s.logger.Info("SSH target stopped")
	return shutdownErr
}

func (s *Server) serve() {
	defer s.wg.Done()

	s.srvMu.Lock()
	srv, listener := s.srv, s.listener
	s.srvMu.Unlock()

	if s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(s.startedCh)
	}

	err := srv.Serve(listener)
	if err == nil || errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return
	}
	select {
	case s.errCh <- fmt.Errorf("serve error: %w", err):
	default:
	}
}

// fail records err, moves to StateFailed and releases background goroutines.
func (s *Server) fail(err error) error {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
	s.state.Store(int32(StateFailed))
	if s.cancel != nil {
		s.cancel()
	}
	s.srvMu.Lock()
	if s.listener != nil {
		_ = s.listener.Close() // Best-effort cleanup after failure
	}
	s.srvMu.Unlock()
	return err
}

// State returns the current lifecycle state.
func (s *Server) State() State { return State(s.state.Load()) }

// IsRunning reports whether the server accepts connections.
func (s *Server) IsRunning() bool { return s.State() == StateRunning }

// Err delivers serve errors that happen after a successful Start.
func (s *Server) Err() <-chan error { return s.errCh }

// Address returns the bound host:port, or "" before a successful Start.
func (s *Server) Address() string {
	select {
	case <-s.startedCh:
		s.srvMu.Lock()
		defer s.srvMu.Unlock()
		return s.addr
	default:
		return ""
	}
}

// Port returns the bound port, or 0 before a successful Start.
func (s *Server) Port() int {
	_, portStr, err := net.SplitHostPort(s.Address())
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// Wait blocks until ctx ends or the server stops serving, and returns the
// serve error if there was one.
func (s *Server) Wait(ctx context.Context) error {
	if s.ctx == nil {
		return ErrNotRunning
	}
	select {
	case <-ctx.Done():
		return nil
	case <-s.ctx.Done():
		s.errMu.Lock()
		defer s.errMu.Unlock()
		return s.lastErr
	case err := <-s.errCh:
		return s.fail(err)
	}
}

func isClosedConnError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && errors.Is(opErr.Err, net.ErrClosed)
}
