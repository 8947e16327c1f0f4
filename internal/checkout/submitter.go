// Package checkout turns the visitor's cart, an address and a payment choice
// into one order on the backend.
package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/api"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/cart"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/events"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	PathLogin    = "/login"
	PathCheckout = "/checkout"
	PathCart     = "/cart"
	PathCatalog  = "/products"
	PathOrders   = "/my-orders"

	deliveryDateLayout = "2 Jan 2006"

	msgLoginToOrder    = "Please log in to place an order."
	msgLoginToCheckout = "Please log in to proceed to checkout."
	msgEmptyCart       = "Your cart is empty."
	msgMissingAddress  = "Please fill in all required address fields."
	msgInvalidPayment  = "Invalid payment method selected."
	msgOrderPlaced     = "Order placed successfully!"
	msgOrderFailed     = "Failed to place COD order."
)

// CartStore is the part of *cart.Store checkout uses.
type CartStore interface {
	Items() []domain.CartLineItem
	Clear(ctx context.Context)
}

// SessionGate is the part of *session.Store checkout uses.
type SessionGate interface {
	RequireUser(ctx context.Context) (*domain.Identity, error)
}

// OrderPlacer is the order-creation endpoint. *api.Client implements it.
type OrderPlacer interface {
	CreateOrder(ctx context.Context, req api.CreateOrderRequest, opts ...api.RequestOption) (*api.CreateOrderResponse, error)
}

type Request struct {
	Address       domain.Address       `json:"address"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
}

// Result tells the caller what to show and where to go next. It is returned
// alongside gating errors too, so the redirect is never lost.
type Result struct {
	Redirect          string          `json:"redirect,omitempty"`
	ReturnTo          string          `json:"returnTo,omitempty"`
	Message           string          `json:"message,omitempty"`
	OrderID           string          `json:"orderId,omitempty"`
	Total             decimal.Decimal `json:"total"`
	EstimatedDelivery *time.Time      `json:"estimatedDeliveryDate,omitempty"`
}

type Submitter struct {
	cart     CartStore
	session  SessionGate
	placer   OrderPlacer
	notifier notify.Notifier
	events   events.Emitter
	logger   *zap.Logger
	newKey   func() string

	inFlight atomic.Bool
	// pending is only touched by the goroutine holding inFlight.
	pending pendingKey
}

// pendingKey remembers the idempotency key of an order whose outcome is
// unknown, so resubmitting the same order lets the backend de-duplicate.
type pendingKey struct {
	fingerprint string
	key         string
}

type Option func(*Submitter)

func WithNotifier(n notify.Notifier) Option {
	return func(s *Submitter) { s.notifier = n }
}

func WithEvents(e events.Emitter) Option {
	return func(s *Submitter) { s.events = e }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Submitter) { s.logger = l }
}

func WithKeyGenerator(f func() string) Option {
	return func(s *Submitter) { s.newKey = f }
}

func NewSubmitter(c CartStore, sess SessionGate, placer OrderPlacer, opts ...Option) *Submitter {
	s := &Submitter{
		cart:     c,
		session:  sess,
		placer:   placer,
		notifier: notify.Nop{},
		logger:   zap.NewNop(),
		newKey:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InFlight reports whether a submission is waiting on the backend.
func (s *Submitter) InFlight() bool {
	return s.inFlight.Load()
}

// Proceed is the cart page's checkout button: it sends anonymous visitors to
// login and everyone else to the checkout form.
func (s *Submitter) Proceed(ctx context.Context) (*Result, error) {
	if _, err := s.session.RequireUser(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		notify.Info(s.notifier, msgLoginToCheckout)
		return &Result{Redirect: PathLogin, ReturnTo: PathCart, Message: msgLoginToCheckout}, ErrNotAuthenticated
	}
	return &Result{Redirect: PathCheckout}, nil
}

// Submit places one order. Every precondition is checked before the network
// call. A second Submit while one is waiting on the backend fails with
// ErrSubmitInProgress. On success the cart is cleared; on failure it is left
// as it was.
func (s *Submitter) Submit(ctx context.Context, req Request) (*Result, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmitInProgress
	}
	defer s.inFlight.Store(false)

	if _, err := s.session.RequireUser(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		notify.Error(s.notifier, msgLoginToOrder)
		return &Result{Redirect: PathLogin, ReturnTo: PathCheckout, Message: msgLoginToOrder}, ErrNotAuthenticated
	}

	items := s.cart.Items()
	if len(items) == 0 {
		notify.Error(s.notifier, msgEmptyCart)
		return &Result{Redirect: PathCatalog, Message: msgEmptyCart}, ErrEmptyCart
	}

	addr := req.Address.Normalized()
	if missing := addr.MissingFields(); len(missing) > 0 {
		notify.Error(s.notifier, msgMissingAddress)
		return &Result{Message: msgMissingAddress}, &AddressError{Fields: missing}
	}

	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCOD
	}
	if !method.Supported() {
		notify.Error(s.notifier, msgInvalidPayment)
		return &Result{Message: msgInvalidPayment}, fmt.Errorf("%w: %q", ErrUnsupportedPayment, method)
	}

	outbound := s.normalize(items)
	total := cart.Total(outbound, s.logger)
	order := api.CreateOrderRequest{
		Cart:          outbound,
		PaymentMethod: method,
		Address:       addr,
	}
	key := s.keyFor(order)

	resp, err := s.placer.CreateOrder(ctx, order, api.WithIdempotencyKey(key))

	// The caller is gone; drop the outcome but keep the key for a retry.
	if ctx.Err() != nil {
		s.logger.Info("discarding order result after cancellation",
			zap.String("idempotency_key", key), zap.Error(err))
		return nil, ctx.Err()
	}

	if err != nil {
		if rejected(err) {
			s.pending = pendingKey{}
		}
		msg := api.MessageOr(err, msgOrderFailed)
		s.logger.Warn("order placement failed", zap.String("idempotency_key", key), zap.Error(err))
		notify.Error(s.notifier, msg)
		s.events.Emit(ctx, events.TypeOrderFailed, map[string]any{
			"idempotency_key": key,
			"total":           total.StringFixed(2),
			"reason":          msg,
		})
		return &Result{Message: msg, Total: total}, &OrderError{Message: msg, Err: err}
	}

	s.pending = pendingKey{}
	s.cart.Clear(ctx)

	msg := resp.Message
	if msg == "" {
		msg = msgOrderPlaced
	}
	eta := resp.EstimatedDeliveryDate.Ptr()
	if eta != nil {
		msg += fmt.Sprintf(" Estimated delivery around %s.", eta.Format(deliveryDateLayout))
	} else if !resp.EstimatedDeliveryDate.IsZero() {
		s.logger.Warn("ignoring unparsable delivery date",
			zap.String("idempotency_key", key), zap.String("date", resp.EstimatedDeliveryDate.String()))
	}
	notify.Success(s.notifier, msg)
	s.events.Emit(ctx, events.TypeOrderPlaced, map[string]any{
		"idempotency_key": key,
		"order_id":        resp.OrderID,
		"payment_method":  method.String(),
		"items":           len(outbound),
		"total":           total.StringFixed(2),
	})

	return &Result{
		Redirect:          PathOrders,
		Message:           msg,
		OrderID:           resp.OrderID,
		Total:             total,
		EstimatedDelivery: eta,
	}, nil
}

// keyFor returns the pending key when order matches the one last sent with
// an unknown outcome, and a fresh key otherwise.
func (s *Submitter) keyFor(order api.CreateOrderRequest) string {
	fp := fingerprint(order)
	if fp != "" && s.pending.fingerprint == fp {
		return s.pending.key
	}
	s.pending = pendingKey{fingerprint: fp, key: s.newKey()}
	return s.pending.key
}

func fingerprint(order api.CreateOrderRequest) string {
	b, err := json.Marshal(order)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// rejected reports a definitive answer from the backend. Anything else may
// have created the order.
func rejected(err error) bool {
	var apiErr *api.Error
	return errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError
}

// normalize makes every outbound amount numeric. Unparsable prices go out as
// 0 and out-of-range quantities are clamped; both are logged.
func (s *Submitter) normalize(items []domain.CartLineItem) []domain.CartLineItem {
	out := make([]domain.CartLineItem, len(items))
	for i, it := range items {
		price, err := it.Price.Decimal()
		if err != nil {
			s.logger.Warn("sending unparsable price as 0",
				zap.Int64("product_id", it.ProductID), zap.String("price", it.Price.String()))
			price = decimal.Zero
		}
		it.Price = domain.NewPrice(price)
		if !it.Quantity.Valid() {
			s.logger.Warn("clamping out-of-range quantity",
				zap.Int64("product_id", it.ProductID), zap.Int("quantity", it.Quantity.Int()))
			it.Quantity = domain.ClampQuantity(it.Quantity.Int())
		}
		out[i] = it
	}
	return out
}

// IsRedirect reports whether err is a gating error that comes with a redirect.
func IsRedirect(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrEmptyCart)
}
