// SPDX-License-Identifier: MPL-2.0

package sshtarget

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/charmbracelet/ssh"
)

type tokenContextKey struct{}

// GenerateToken creates a random token labelled for logging.
func (s *Server) GenerateToken(label string) (*Token, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return s.AddToken(TokenValue(hex.EncodeToString(raw)), label)
}

// AddToken registers a caller-chosen token.
func (s *Server) AddToken(value TokenValue, label string) (*Token, error) {
	if ok, errs := value.IsValid(); !ok {
		return nil, errs[0]
	}
	now := s.clock.Now()
	token := &Token{
		Value:     value,
		Label:     label,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}

	s.tokenMu.Lock()
	s.tokens[value] = token
	s.tokenMu.Unlock()

	s.logger.Debug("token added", "label", label, "expires_at", token.ExpiresAt)
	return token, nil
}

// ValidateToken returns the token matching value if it has not expired.
// Expired tokens are revoked on sight.
func (s *Server) ValidateToken(value TokenValue) (*Token, bool) {
	s.tokenMu.RLock()
	var match *Token
	for candidate, token := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(value)) == 1 {
			match = token
		}
	}
	s.tokenMu.RUnlock()

	if match == nil {
		return nil, false
	}
	if s.clock.Now().After(match.ExpiresAt) {
		s.RevokeToken(match.Value)
		return nil, false
	}
	return match, true
}

// RevokeToken invalidates a token.
func (s *Server) RevokeToken(value TokenValue) {
	s.tokenMu.Lock()
	delete(s.tokens, value)
	s.tokenMu.Unlock()
}

// RevokeTokensForLabel invalidates every token carrying label.
func (s *Server) RevokeTokensForLabel(label string) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	for value, token := range s.tokens {
		if token.Label == label {
			delete(s.tokens, value)
		}
	}
}

// ConnectionInfo issues a fresh token for label and returns the login details.
func (s *Server) ConnectionInfo(label string) (*ConnectionInfo, error) {
	if !s.IsRunning() {
		return nil, fmt.Errorf("%w (state: %s)", ErrNotRunning, s.State())
	}
	token, err := s.GenerateToken(label)
	if err != nil {
		return nil, err
	}
	return &ConnectionInfo{
		Host:      s.cfg.Host,
		Port:      s.Port(),
		User:      s.cfg.User,
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

func (s *Server) sweepTokens() {
	defer s.wg.Done()

	ticker := time.NewTicker(tokenSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			now := s.clock.Now()
			s.tokenMu.Lock()
			for value, token := range s.tokens {
				if now.After(token.ExpiresAt) {
					delete(s.tokens, value)
				}
			}
			s.tokenMu.Unlock()
		}
	}
}

func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	token, ok := s.ValidateToken(TokenValue(password))
	if !ok {
		s.logger.Warn("rejected login", "user", ctx.User(), "remote", ctx.RemoteAddr())
		return false
	}
	ctx.SetValue(tokenContextKey{}, token)
	s.logger.Debug("login accepted", "user", ctx.User(), "label", token.Label)
	return true
}

// publicKeyHandler rejects every key: only token logins are accepted.
func (s *Server) publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return false
}
