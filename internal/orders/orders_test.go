package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/api"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/events"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/notify"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGate struct {
	id *domain.Identity
}

func (m mockGate) RequireUser(context.Context) (*domain.Identity, error) {
	if m.id == nil {
		return nil, session.ErrNotAuthenticated
	}
	return m.id, nil
}

func (m mockGate) RequireAdmin(ctx context.Context) (*domain.Identity, error) {
	id, err := m.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin {
		return nil, session.ErrForbidden
	}
	return id, nil
}

type mockBackend struct {
	orders   []domain.Order
	err      error
	calls    int
	statuses []domain.OrderStatus
	resp     *api.UpdateStatusResponse
}

func (m *mockBackend) MyOrders(context.Context) ([]domain.Order, error) {
	m.calls++
	return m.orders, m.err
}

func (m *mockBackend) AdminOrders(context.Context) ([]domain.Order, error) {
	m.calls++
	return m.orders, m.err
}

func (m *mockBackend) AdminOrder(_ context.Context, id string) (*domain.Order, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	for _, o := range m.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, &api.Error{Status: http.StatusNotFound, Message: "Order not found"}
}

func (m *mockBackend) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus) (*api.UpdateStatusResponse, error) {
	m.calls++
	m.statuses = append(m.statuses, status)
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

type capture struct {
	events []events.Event
}

func (c *capture) Publish(_ context.Context, e events.Event) {
	c.events = append(c.events, e)
}

var (
	customer = &domain.Identity{ID: "7", Username: "meera"}
	admin    = &domain.Identity{ID: "1", Username: "root", IsAdmin: true}
)

func sampleOrders(t *testing.T) []domain.Order {
	t.Helper()
	raw := `[
		{"id":"o-1","orderDate":"2025-05-01T10:00:00Z","totalAmount":"520","paymentStatus":"Processing",
		 "estimatedDeliveryDate":"2025-05-10",
		 "items":[{"productName":"Kesh Ratn","quantity":2,"price":180},{"productName":"Triphala","quantity":1,"price":"160"}]},
		{"id":"o-2","orderDate":"yesterday","totalAmount":"N/A","paymentStatus":"lost-in-transit","items":[]}
	]`
	var list []domain.Order
	require.NoError(t, json.Unmarshal([]byte(raw), &list))
	return list
}

func TestHistory_Load(t *testing.T) {
	backend := &mockBackend{orders: sampleOrders(t)}
	h := NewHistory(mockGate{id: customer}, backend)

	list, err := h.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "520", list[0].TotalAmount.String())
	assert.Equal(t, domain.OrderStatusProcessing, list[0].PaymentStatus)
	assert.Equal(t, "180", list[0].Items[0].Price.String())
	assert.Equal(t, "0", list[1].TotalAmount.String())
	assert.Equal(t, domain.OrderStatusUnknown, list[1].PaymentStatus)

	assert.Equal(t, "o-1", list[0].ID)
	placed, ok := list[0].OrderDate.Time()
	require.True(t, ok)
	assert.Equal(t, 2025, placed.Year())
	require.NotNil(t, list[0].EstimatedDeliveryDate.Ptr())
	assert.Equal(t, 10, list[0].EstimatedDeliveryDate.Ptr().Day())
	assert.True(t, list[1].OrderDate.IsZero())
}

func TestHistory_RequiresLogin(t *testing.T) {
	backend := &mockBackend{}
	h := NewHistory(mockGate{}, backend)

	_, err := h.Load(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Zero(t, backend.calls)
}

func TestHistory_FailureRaisesNotice(t *testing.T) {
	inbox := notify.NewInbox(0)
	backend := &mockBackend{err: errors.New("timeout")}
	h := NewHistory(mockGate{id: customer}, backend, WithNotifier(inbox))

	_, err := h.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []notify.Notice{{Level: notify.LevelError, Message: "Could not load your orders."}}, inbox.Drain())
}

func TestAdmin_RequiresAdmin(t *testing.T) {
	backend := &mockBackend{orders: sampleOrders(t)}
	a := NewAdmin(mockGate{id: customer}, backend)

	_, err := a.List(context.Background())
	assert.ErrorIs(t, err, session.ErrForbidden)
	_, err = a.Get(context.Background(), "o-1")
	assert.ErrorIs(t, err, session.ErrForbidden)
	_, err = a.UpdateStatus(context.Background(), "o-1", "shipped")
	assert.ErrorIs(t, err, session.ErrForbidden)
	assert.Zero(t, backend.calls)
}

func TestAdmin_ListAndGet(t *testing.T) {
	backend := &mockBackend{orders: sampleOrders(t)}
	a := NewAdmin(mockGate{id: admin}, backend)

	list, err := a.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	o, err := a.Get(context.Background(), " o-2 ")
	require.NoError(t, err)
	assert.Equal(t, "0", o.TotalAmount.String())

	_, err = a.Get(context.Background(), "missing")
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestAdmin_UpdateStatusValidatesFirst(t *testing.T) {
	backend := &mockBackend{}
	a := NewAdmin(mockGate{id: admin}, backend)

	_, err := a.UpdateStatus(context.Background(), "o-1", "teleported")
	assert.ErrorIs(t, err, domain.ErrInvalidOrderStatus)
	assert.Zero(t, backend.calls)
}

func TestAdmin_UpdateStatus(t *testing.T) {
	pub := &capture{}
	inbox := notify.NewInbox(0)
	backend := &mockBackend{resp: &api.UpdateStatusResponse{
		Message: "Order status updated",
		Order:   &domain.Order{ID: "o-1", PaymentStatus: domain.OrderStatusShipped, TotalAmount: domain.PriceFromString("520")},
	}}
	a := NewAdmin(mockGate{id: admin}, backend, WithNotifier(inbox), WithEvents(events.Bind(pub, "visitor-9")))

	o, err := a.UpdateStatus(context.Background(), " o-1 ", "  SHIPPED ")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusShipped, o.PaymentStatus)
	assert.Equal(t, []domain.OrderStatus{domain.OrderStatusShipped}, backend.statuses)
	assert.Equal(t, "Order status updated", inbox.Drain()[0].Message)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeOrderStatusSet, pub.events[0].Type)
	assert.Equal(t, "o-1", pub.events[0].Data["order_id"])
	assert.Equal(t, "visitor-9", pub.events[0].VisitorID)
}

func TestAdmin_UpdateStatusWithoutOrderInResponse(t *testing.T) {
	backend := &mockBackend{resp: &api.UpdateStatusResponse{}}
	a := NewAdmin(mockGate{id: admin}, backend)

	o, err := a.UpdateStatus(context.Background(), "o-3", "delivered")
	require.NoError(t, err)
	assert.Equal(t, "o-3", o.ID)
	assert.Equal(t, domain.OrderStatusDelivered, o.PaymentStatus)
}

func TestAdmin_UpdateStatusFailure(t *testing.T) {
	inbox := notify.NewInbox(0)
	backend := &mockBackend{err: &api.Error{Status: http.StatusBadRequest, Message: "Cannot reopen a cancelled order"}}
	a := NewAdmin(mockGate{id: admin}, backend, WithNotifier(inbox))

	_, err := a.UpdateStatus(context.Background(), "o-1", "processing")
	assert.Error(t, err)
	assert.Equal(t, "Cannot reopen a cancelled order", inbox.Drain()[0].Message)
}
