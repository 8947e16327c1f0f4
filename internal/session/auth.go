package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/api"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/events"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/notify"
	"go.uber.org/zap"
)

// Login exchanges identifier and password for a credential. On failure any
// stored credential is discarded and an *AuthError carrying the message to
// show is returned.
func (s *Store) Login(ctx context.Context, identifier, password string) (*domain.Identity, error) {
	if s.auth == nil {
		return nil, ErrNoAuthenticator
	}
	resp, err := s.auth.Login(ctx, api.LoginRequest{
		Identifier: strings.TrimSpace(identifier),
		Password:   password,
	})
	id, err := s.authenticated(ctx, "login", resp, err, loginFailedMessage)
	if err != nil {
		return nil, err
	}
	notify.Success(s.notifier, fmt.Sprintf("Welcome back, %s!", id.Username))
	return id, nil
}

// Signup registers a new account and logs it in.
func (s *Store) Signup(ctx context.Context, username, email, password string) (*domain.Identity, error) {
	if s.auth == nil {
		return nil, ErrNoAuthenticator
	}
	resp, err := s.auth.Signup(ctx, api.SignupRequest{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: password,
	})
	id, err := s.authenticated(ctx, "signup", resp, err, signupFailedMessage)
	if err != nil {
		return nil, err
	}
	notify.Success(s.notifier, fmt.Sprintf("Account created successfully! Welcome, %s!", id.Username))
	return id, nil
}

func (s *Store) authenticated(ctx context.Context, op string, resp *api.AuthResponse, err error, fallback string) (*domain.Identity, error) {
	if err == nil && strings.TrimSpace(resp.Token) == "" {
		err = fmt.Errorf("%s response carried no token", op)
	}
	if err != nil {
		s.logger.Info(op+" failed", zap.Error(err))
		s.mu.Lock()
		s.removeStored(ctx)
		s.setLocked(StateAnonymous, nil, "")
		s.mu.Unlock()

		msg := api.MessageOr(err, fallback)
		notify.Error(s.notifier, msg)
		return nil, &AuthError{Op: op, Message: msg, Err: err}
	}

	token := strings.TrimSpace(resp.Token)
	id := resp.User
	if id.ID == "" && id.Username == "" {
		if decoded, _, derr := DecodeCredential(token, s.now()); derr == nil {
			id = *decoded
		}
	}

	s.mu.Lock()
	if serr := s.storage.Set(ctx, credentialKey, []byte(token)); serr != nil {
		s.logger.Warn("failed to persist credential", zap.Error(serr))
	}
	s.setLocked(StateAuthenticated, &id, token)
	s.mu.Unlock()

	s.events.Emit(ctx, events.TypeSessionLogin, map[string]any{"user_id": id.ID.String(), "op": op})
	out := id
	return &out, nil
}

// Logout drops the credential immediately. The backend is told in the
// background and its answer is ignored.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	token := s.credential
	s.removeStored(ctx)
	s.setLocked(StateAnonymous, nil, "")
	s.mu.Unlock()

	notify.Info(s.notifier, "You have been logged out.")
	s.events.Emit(ctx, events.TypeSessionLogout, nil)

	if s.auth == nil || token == "" {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
		defer cancel()
		if err := s.auth.Logout(bctx, api.WithBearerToken(token)); err != nil {
			s.logger.Info("backend logout failed", zap.Error(err))
		}
	}()
}

// Discard forgets the credential without notifying anyone. The API client
// calls it when the backend answers 401.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAnonymous && s.credential == "" {
		return
	}
	s.removeStored(context.Background())
	s.setLocked(StateAnonymous, nil, "")
}

// RequireUser waits for the session to resolve and returns the identity, or
// ErrNotAuthenticated.
func (s *Store) RequireUser(ctx context.Context) (*domain.Identity, error) {
	snap, err := s.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if snap.State != StateAuthenticated || snap.Identity == nil {
		return nil, ErrNotAuthenticated
	}
	return snap.Identity, nil
}

// RequireAdmin is RequireUser plus an admin check; non-admins get ErrForbidden.
func (s *Store) RequireAdmin(ctx context.Context) (*domain.Identity, error) {
	id, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin {
		return nil, ErrForbidden
	}
	return id, nil
}

// Close waits for background backend calls to finish.
func (s *Store) Close() {
	s.bg.Wait()
}
