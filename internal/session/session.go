// Package session implements the Site Session state machine shared by all portals.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"RucFilter/internal/domain"
	"RucFilter/internal/ports"
	"RucFilter/internal/wait"
)

// Portal is one portal variant: the query sequence behind the common session contract.
type Portal interface {
	Name() string
	Login(ctx context.Context) error
	// Expired inspects the current page for an unauthenticated state.
	Expired(ctx context.Context) (bool, error)
	Query(ctx context.Context, key domain.Key) (domain.Result, error)
	Close() error
}

// State of a session.
type State int

const (
	StateLoggedOut State = iota
	StateLoggedIn
	StateExpired
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateLoggedIn:
		return "logged_in"
	case StateExpired:
		return "expired"
	default:
		return "closed"
	}
}

// Policy bounds the retry behaviour of lookups.
type Policy struct {
	Attempts   int
	RetryDelay time.Duration
	Cooldown   time.Duration
}

// DefaultPolicy mirrors the production settings.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, RetryDelay: 2 * time.Second, Cooldown: 10 * time.Second}
}

// Session drives one portal through LoggedOut, LoggedIn and Expired.
// All operations are serialized.
type Session struct {
	mu     sync.Mutex
	portal Portal
	state  State
	policy Policy
	logger *slog.Logger
	logins int
}

var _ ports.SiteSession = (*Session)(nil)

// New wraps a portal in a logged-out session.
func New(portal Portal, policy Policy, logger *slog.Logger) *Session {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	return &Session{portal: portal, policy: policy, logger: logger}
}

// Name of the underlying portal.
func (s *Session) Name() string {
	return s.portal.Name()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Logins counts login attempts made so far.
func (s *Session) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Login authenticates against the portal.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return domain.ErrSessionClosed
	}
	return s.login(ctx)
}

// IsAlive runs the liveness check; a failed check moves the session to Expired.
func (s *Session) IsAlive(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkAlive(ctx)
}

// Lookup queries the portal for key. Expiry triggers exactly one re-login,
// throttling a cooldown and a fresh login, and other failures a bounded retry.
func (s *Session) Lookup(ctx context.Context, key domain.Key) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return domain.Result{}, domain.ErrSessionClosed
	case StateLoggedOut:
		if err := s.login(ctx); err != nil {
			return domain.Result{}, err
		}
	}

	relogged := false
	if !s.checkAlive(ctx) {
		relogged = true
		s.debug("session expired before lookup, logging in again", "key", key.String())
		if err := s.login(ctx); err != nil {
			return domain.Result{}, err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= s.policy.Attempts; attempt++ {
		res, err := s.portal.Query(ctx, key)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Result{}, err
		}
		if ctx.Err() != nil {
			return domain.Result{}, ctx.Err()
		}
		lastErr = err

		switch {
		case errors.Is(err, domain.ErrSessionExpired):
			s.state = StateExpired
			if relogged {
				return domain.Result{}, err
			}
			relogged = true
			s.debug("session expired during lookup, logging in again", "key", key.String())
			if lerr := s.login(ctx); lerr != nil {
				return domain.Result{}, lerr
			}
		case errors.Is(err, domain.ErrThrottled):
			s.warn("portal throttled, cooling down", "key", key.String(), "cooldown", s.policy.Cooldown)
			if serr := wait.For(ctx, s.policy.Cooldown); serr != nil {
				return domain.Result{}, serr
			}
			if lerr := s.login(ctx); lerr != nil {
				return domain.Result{}, lerr
			}
		default:
			s.debug("lookup attempt failed", "key", key.String(), "attempt", attempt, "error", err)
			if attempt < s.policy.Attempts {
				if serr := wait.For(ctx, s.policy.RetryDelay); serr != nil {
					return domain.Result{}, serr
				}
			}
		}
	}

	return domain.Result{}, fmt.Errorf("lookup %s: %d attempts: %w", key, s.policy.Attempts, lastErr)
}

// Close releases the portal; closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	return s.portal.Close()
}

func (s *Session) login(ctx context.Context) error {
	s.logins++
	if err := s.portal.Login(ctx); err != nil {
		s.state = StateLoggedOut
		return fmt.Errorf("%s: %w: %v", s.portal.Name(), domain.ErrLoginFailed, err)
	}
	s.state = StateLoggedIn
	return nil
}

func (s *Session) checkAlive(ctx context.Context) bool {
	if s.state != StateLoggedIn {
		return false
	}
	expired, err := s.portal.Expired(ctx)
	if err != nil || expired {
		s.state = StateExpired
		return false
	}
	return true
}

func (s *Session) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Session) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

