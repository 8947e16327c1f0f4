// Package events publishes storefront activity (cart changes, logins,
// placed orders) to Kafka for downstream analytics.
package events

import (
	"context"
	"time"
)

const (
	TypeCartItemAdded   = "cart.item_added"
	TypeCartItemRemoved = "cart.item_removed"
	TypeCartCleared     = "cart.cleared"
	TypeSessionLogin    = "session.login"
	TypeSessionLogout   = "session.logout"
	TypeOrderPlaced     = "checkout.order_placed"
	TypeOrderFailed     = "checkout.order_failed"
	TypeOrderStatusSet  = "admin.order_status_set"
)

type Event struct {
	Type       string         `json:"type"`
	VisitorID  string         `json:"visitor_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher accepts events without blocking the caller on delivery.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// Emitter stamps events with the visitor they belong to.
type Emitter struct {
	pub       Publisher
	visitorID string
	now       func() time.Time
}

func Bind(pub Publisher, visitorID string) Emitter {
	if pub == nil {
		pub = NopPublisher{}
	}
	return Emitter{pub: pub, visitorID: visitorID, now: time.Now}
}

func (e Emitter) Emit(ctx context.Context, typ string, data map[string]any) {
	if e.pub == nil {
		return
	}
	e.pub.Publish(ctx, Event{
		Type:       typ,
		VisitorID:  e.visitorID,
		OccurredAt: e.now().UTC(),
		Data:       data,
	})
}
