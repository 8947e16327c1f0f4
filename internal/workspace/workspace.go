// Package workspace holds one set of storefront state per visitor: their
// cart, session, checkout submitter and order views, all bound to the
// visitor's storage namespace.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/api"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/cart"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/checkout"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/events"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/notify"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/orders"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/session"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultIdleAfter = 30 * time.Minute
	loadTimeout      = 10 * time.Second
	inboxCapacity    = 20
)

var (
	ErrClosed         = errors.New("workspace registry is closed")
	ErrEmptyVisitorID = errors.New("visitor id is empty")
)

type Workspace struct {
	VisitorID string
	Cart      *cart.Store
	Session   *session.Store
	Checkout  *checkout.Submitter
	History   *orders.History
	Admin     *orders.Admin
	Inbox     *notify.Inbox
	// API carries this visitor's credential.
	API *api.Client

	lastUsed atomic.Int64
}

func (w *Workspace) touch(now time.Time) {
	w.lastUsed.Store(now.UnixNano())
}

func (w *Workspace) idleSince() time.Time {
	return time.Unix(0, w.lastUsed.Load())
}

type Registry struct {
	mu     sync.Mutex
	spaces map[string]*Workspace
	closed bool
	sf     singleflight.Group
	bg     sync.WaitGroup

	backend   storage.Backend
	client    *api.Client
	publisher events.Publisher
	logger    *zap.Logger
	confirm   bool
	idleAfter time.Duration
	now       func() time.Time
}

type Option func(*Registry)

func WithPublisher(p events.Publisher) Option {
	return func(r *Registry) { r.publisher = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithRemoteConfirm makes every new session check its stored credential
// against the backend.
func WithRemoteConfirm(enabled bool) Option {
	return func(r *Registry) { r.confirm = enabled }
}

func WithIdleAfter(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.idleAfter = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(backend storage.Backend, client *api.Client, opts ...Option) *Registry {
	r := &Registry{
		spaces:    make(map[string]*Workspace),
		backend:   backend,
		client:    client,
		publisher: events.NopPublisher{},
		logger:    zap.NewNop(),
		idleAfter: defaultIdleAfter,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the visitor's workspace, building it on first use. A new
// workspace starts resolving its session in the background.
func (r *Registry) Get(ctx context.Context, visitorID string) (*Workspace, error) {
	if visitorID == "" {
		return nil, ErrEmptyVisitorID
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if ws, ok := r.spaces[visitorID]; ok {
		ws.touch(r.now())
		r.mu.Unlock()
		return ws, nil
	}
	r.mu.Unlock()

	v, err, _ := r.sf.Do(visitorID, func() (any, error) {
		r.mu.Lock()
		if ws, ok := r.spaces[visitorID]; ok {
			r.mu.Unlock()
			return ws, nil
		}
		r.mu.Unlock()

		ws, err := r.build(ctx, visitorID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			return nil, ErrClosed
		}
		r.spaces[visitorID] = ws
		r.startLoad(ws)
		return ws, nil
	})
	if err != nil {
		return nil, err
	}
	ws := v.(*Workspace)
	ws.touch(r.now())
	return ws, nil
}

// build rehydrates the visitor's state. It runs detached from the caller's
// cancellation so one abandoned request cannot leave a half-read workspace
// behind; a failed read is returned and nothing is cached.
func (r *Registry) build(ctx context.Context, visitorID string) (*Workspace, error) {
	logger := r.logger.With(zap.String("visitor_id", visitorID))
	st := storage.Scope(r.backend, visitorID)
	inbox := notify.NewInbox(inboxCapacity)
	notifier := notify.Multi{inbox, notify.Log{Logger: logger}}
	emitter := events.Bind(r.publisher, visitorID)

	var sess *session.Store
	client := r.client.WithCredentials(
		func() string { return sess.Credential() },
		func() { sess.Discard() },
	)
	sess = session.New(st,
		session.WithAuthenticator(client),
		session.WithRemoteConfirm(r.confirm),
		session.WithNotifier(notifier),
		session.WithEvents(emitter),
		session.WithLogger(logger),
	)

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()
	c, err := cart.Open(loadCtx, st,
		cart.WithNotifier(notifier),
		cart.WithEvents(emitter),
		cart.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("open cart for visitor %s: %w", visitorID, err)
	}

	ws := &Workspace{
		VisitorID: visitorID,
		Cart:      c,
		Session:   sess,
		Checkout: checkout.NewSubmitter(c, sess, client,
			checkout.WithNotifier(notifier),
			checkout.WithEvents(emitter),
			checkout.WithLogger(logger),
		),
		History: orders.NewHistory(sess, client,
			orders.WithNotifier(notifier),
			orders.WithLogger(logger),
		),
		Admin: orders.NewAdmin(sess, client,
			orders.WithNotifier(notifier),
			orders.WithEvents(emitter),
			orders.WithLogger(logger),
		),
		Inbox: inbox,
		API:   client,
	}
	ws.touch(r.now())
	return ws, nil
}

// startLoad must be called with r.mu held.
func (r *Registry) startLoad(ws *Workspace) {
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		snap := ws.Session.Load(ctx)
		r.logger.Debug("session resolved",
			zap.String("visitor_id", ws.VisitorID),
			zap.Stringer("state", snap.State))
	}()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

// Sweep drops workspaces unused for longer than the idle period. Their state
// stays in storage and is rehydrated on the next Get.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleAfter)

	r.mu.Lock()
	var idle []*Workspace
	for id, ws := range r.spaces {
		if ws.idleSince().Before(cutoff) && !ws.Checkout.InFlight() {
			idle = append(idle, ws)
			delete(r.spaces, id)
		}
	}
	r.mu.Unlock()

	for _, ws := range idle {
		ws.Session.Close()
	}
	if len(idle) > 0 {
		r.logger.Info("evicted idle workspaces", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Run sweeps idle workspaces until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close stops handing out workspaces and waits for background session work.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	spaces := r.spaces
	r.spaces = make(map[string]*Workspace)
	r.mu.Unlock()

	r.bg.Wait()
	for _, ws := range spaces {
		ws.Session.Close()
	}
}
