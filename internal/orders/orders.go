// Package orders reads a customer's order history and lets admins move orders
// through their status lifecycle.
package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/api"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/events"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/notify"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	msgLoadFailed   = "Could not load your orders."
	msgUpdateFailed = "Failed to update order status."
)

// Gate is the part of *session.Store this package uses.
type Gate interface {
	RequireUser(ctx context.Context) (*domain.Identity, error)
	RequireAdmin(ctx context.Context) (*domain.Identity, error)
}

type HistorySource interface {
	MyOrders(ctx context.Context) ([]domain.Order, error)
}

type AdminBackend interface {
	AdminOrders(ctx context.Context) ([]domain.Order, error)
	AdminOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*api.UpdateStatusResponse, error)
}

type Option func(*options)

type options struct {
	notifier notify.Notifier
	events   events.Emitter
	logger   *zap.Logger
}

func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithEvents(e events.Emitter) Option {
	return func(o *options) { o.events = e }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{notifier: notify.Nop{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// History is the "my orders" page.
type History struct {
	gate   Gate
	source HistorySource
	options
}

func NewHistory(gate Gate, source HistorySource, opts ...Option) *History {
	return &History{gate: gate, source: source, options: buildOptions(opts)}
}

// Load returns the logged-in user's orders, newest first as the backend sends
// them, with amounts made numeric.
func (h *History) Load(ctx context.Context) ([]domain.Order, error) {
	if _, err := h.gate.RequireUser(ctx); err != nil {
		return nil, err
	}
	list, err := h.source.MyOrders(ctx)
	if err != nil {
		h.logger.Warn("failed to load order history", zap.Error(err))
		notify.Error(h.notifier, msgLoadFailed)
		return nil, fmt.Errorf("load order history: %w", err)
	}
	return normalize(list, h.logger), nil
}

// Admin is the order side of the admin panel.
type Admin struct {
	gate    Gate
	backend AdminBackend
	options
}

func NewAdmin(gate Gate, backend AdminBackend, opts ...Option) *Admin {
	return &Admin{gate: gate, backend: backend, options: buildOptions(opts)}
}

func (a *Admin) List(ctx context.Context) ([]domain.Order, error) {
	if _, err := a.gate.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	list, err := a.backend.AdminOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return normalize(list, a.logger), nil
}

func (a *Admin) Get(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := a.gate.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	o, err := a.backend.AdminOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	out := normalize([]domain.Order{*o}, a.logger)
	return &out[0], nil
}

// UpdateStatus moves an order to status. The status is validated before the
// backend is contacted; an unknown value fails with domain.ErrInvalidOrderStatus.
func (a *Admin) UpdateStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	admin, err := a.gate.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	parsed, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)

	resp, err := a.backend.UpdateOrderStatus(ctx, id, parsed)
	if err != nil {
		notify.Error(a.notifier, api.MessageOr(err, msgUpdateFailed))
		return nil, fmt.Errorf("update order %s: %w", id, err)
	}
	if resp.Message != "" {
		notify.Success(a.notifier, resp.Message)
	}
	a.events.Emit(ctx, events.TypeOrderStatusSet, map[string]any{
		"order_id": id,
		"status":   parsed.String(),
		"admin_id": admin.ID.String(),
	})

	if resp.Order == nil {
		return &domain.Order{ID: id, PaymentStatus: parsed}, nil
	}
	out := normalize([]domain.Order{*resp.Order}, a.logger)
	return &out[0], nil
}

func normalize(list []domain.Order, logger *zap.Logger) []domain.Order {
	out := make([]domain.Order, len(list))
	for i, o := range list {
		o.TotalAmount = numeric(o.TotalAmount, o.ID, logger)
		items := make([]domain.OrderItem, len(o.Items))
		for j, it := range o.Items {
			it.Price = numeric(it.Price, o.ID, logger)
			items[j] = it
		}
		o.Items = items
		o.OrderDate = date(o.OrderDate, "order_date", o.ID, logger)
		o.EstimatedDeliveryDate = date(o.EstimatedDeliveryDate, "estimated_delivery_date", o.ID, logger)
		if o.PaymentStatus == "" {
			o.PaymentStatus = domain.OrderStatusUnknown
		}
		out[i] = o
	}
	return out
}

func numeric(p domain.Price, orderID string, logger *zap.Logger) domain.Price {
	d, err := p.Decimal()
	if err != nil {
		logger.Warn("order amount is not numeric, showing 0",
			zap.String("order_id", orderID), zap.String("amount", p.String()))
		return domain.NewPrice(decimal.Zero)
	}
	return domain.NewPrice(d)
}

func date(d domain.Date, field, orderID string, logger *zap.Logger) domain.Date {
	if d.IsZero() || d.Valid() {
		return d
	}
	logger.Warn("order date is not parsable, dropping it",
		zap.String("order_id", orderID), zap.String("field", field), zap.String("value", d.String()))
	return domain.Date{}
}
