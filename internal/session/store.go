// Package session tracks who is logged in for one visitor. The bearer
// credential lives in the visitor's storage; the identity is derived from it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/api"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/events"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/notify"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	credentialKey     = "authToken"
	backgroundTimeout = 10 * time.Second

	loginFailedMessage  = "Login failed. Please check your credentials."
	signupFailedMessage = "Signup failed. Please try again."
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrForbidden        = errors.New("admin privileges required")
	ErrNoAuthenticator  = errors.New("no authentication backend configured")
)

type State int

const (
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Snapshot struct {
	State    State            `json:"state"`
	Identity *domain.Identity `json:"user"`
}

func (s Snapshot) IsAdmin() bool {
	return s.State == StateAuthenticated && s.Identity != nil && s.Identity.IsAdmin
}

// AuthError is a failed login or signup. Message is what the user sees.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Authenticator is the slice of the backend the session needs. *api.Client
// implements it.
type Authenticator interface {
	Status(ctx context.Context, opts ...api.RequestOption) (*api.StatusResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error)
	Signup(ctx context.Context, req api.SignupRequest) (*api.AuthResponse, error)
	Logout(ctx context.Context, opts ...api.RequestOption) error
}

type Store struct {
	mu         sync.RWMutex
	state      State
	identity   *domain.Identity
	credential string
	gen        uint64
	ready      chan struct{}
	readyOnce  sync.Once

	storage  storage.Storage
	auth     Authenticator
	confirm  bool
	notifier notify.Notifier
	events   events.Emitter
	logger   *zap.Logger
	now      func() time.Time

	sf singleflight.Group
	bg sync.WaitGroup
}

type Option func(*Store)

func WithAuthenticator(a Authenticator) Option {
	return func(s *Store) { s.auth = a }
}

// WithRemoteConfirm makes Load check a locally valid credential against the
// backend status endpoint.
func WithRemoteConfirm(enabled bool) Option {
	return func(s *Store) { s.confirm = enabled }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithEvents(e events.Emitter) Option {
	return func(s *Store) { s.events = e }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store in StateUnknown. Call Load to resolve it.
func New(st storage.Storage, opts ...Option) *Store {
	s := &Store{
		state:    StateUnknown,
		ready:    make(chan struct{}),
		storage:  st,
		notifier: notify.Nop{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready is closed once the state has left StateUnknown.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until the session is resolved or ctx is done.
func (s *Store) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.ready:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return Snapshot{State: StateUnknown}, ctx.Err()
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{State: s.state}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	return snap
}

// Credential is the current bearer token, or "" when there is none.
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// setLocked must be called with s.mu held.
func (s *Store) setLocked(state State, id *domain.Identity, credential string) {
	s.state = state
	s.identity = id
	s.credential = credential
	s.gen++
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Store) removeStored(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
	defer cancel()
	if err := s.storage.Remove(ctx, credentialKey); err != nil {
		s.logger.Warn("failed to remove stored credential", zap.Error(err))
	}
}

// Load resolves the session from the stored credential. Concurrent calls
// share one resolution. Load never fails; every problem degrades to
// StateAnonymous or, for an unreachable backend, to the locally decoded
// identity.
func (s *Store) Load(ctx context.Context) Snapshot {
	v, _, _ := s.sf.Do("load", func() (any, error) {
		return s.load(ctx), nil
	})
	return v.(Snapshot)
}

func (s *Store) load(ctx context.Context) Snapshot {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	raw, err := s.storage.Get(ctx, credentialKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to read stored credential", zap.Error(err))
		}
		return s.resolve(ctx, gen, StateAnonymous, nil, "", false)
	}

	token := strings.TrimSpace(string(raw))
	id, exp, err := DecodeCredential(token, s.now())
	if err != nil {
		s.logger.Info("discarding stored credential", zap.Error(err), zap.Time("exp", exp))
		return s.resolve(ctx, gen, StateAnonymous, nil, "", true)
	}

	if s.auth != nil && s.confirm {
		st, err := s.auth.Status(ctx, api.WithBearerToken(token))
		switch {
		case api.IsUnauthorized(err):
			s.logger.Info("backend rejected stored credential")
			return s.resolve(ctx, gen, StateAnonymous, nil, "", true)
		case err != nil:
			s.logger.Warn("session status check failed, keeping local identity", zap.Error(err))
		case !st.LoggedIn:
			return s.resolve(ctx, gen, StateAnonymous, nil, "", true)
		case st.User != nil:
			id = st.User
		}
	}

	return s.resolve(ctx, gen, StateAuthenticated, id, token, false)
}

// resolve applies a Load result unless another transition happened meanwhile.
// discard also removes the stored credential.
func (s *Store) resolve(ctx context.Context, gen uint64, state State, id *domain.Identity, credential string, discard bool) Snapshot {
	s.mu.Lock()
	if s.gen == gen {
		if discard {
			s.removeStored(ctx)
		}
		s.setLocked(state, id, credential)
	}
	s.mu.Unlock()
	return s.Snapshot()
}
