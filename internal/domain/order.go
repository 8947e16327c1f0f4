package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"

	// OrderStatusUnknown is what unrecognised backend values read as.
	OrderStatusUnknown OrderStatus = "unknown"
)

var ErrInvalidOrderStatus = errors.New("invalid order status")

// OrderStatuses is the set an admin may transition an order to.
var OrderStatuses = []OrderStatus{
	OrderStatusProcessing,
	OrderStatusPending,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusFailed,
}

// ParseOrderStatus is case-insensitive and ignores surrounding space.
func ParseOrderStatus(s string) (OrderStatus, error) {
	candidate := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range OrderStatuses {
		if st == candidate {
			return st, nil
		}
	}
	return OrderStatusUnknown, fmt.Errorf("%w: %q", ErrInvalidOrderStatus, s)
}

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// Label is the human readable form shown in order history.
func (s OrderStatus) Label() string {
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = OrderStatusUnknown
		return nil
	}
	parsed, err := ParseOrderStatus(raw)
	if err != nil {
		*s = OrderStatusUnknown
		return nil
	}
	*s = parsed
	return nil
}

// OrderItem is the purchased-item snapshot stored on an order, decoupled from
// the live product.
type OrderItem struct {
	ProductID   int64    `json:"productId,omitempty"`
	ProductName string   `json:"productName"`
	Quantity    Quantity `json:"quantity"`
	Price       Price    `json:"price"`
}

// OrderCustomer is the account an order belongs to, as listed to admins.
type OrderCustomer struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Order is owned by the backend; the storefront only creates and reads them.
type Order struct {
	ID                    string         `json:"id"`
	OrderDate             Date           `json:"orderDate,omitzero"`
	Customer              *OrderCustomer `json:"user,omitempty"`
	Items                 []OrderItem    `json:"items"`
	TotalAmount           Price          `json:"totalAmount"`
	PaymentMethod         string         `json:"paymentMethod"`
	PaymentStatus         OrderStatus    `json:"paymentStatus"`
	ShippingAddress       Address        `json:"shippingAddress"`
	EstimatedDeliveryDate Date           `json:"estimatedDeliveryDate,omitzero"`
}

// UnmarshalJSON reads "id" and "orderDate", falling back to the document
// store's "_id" and "createdAt". Numeric ids are accepted.
func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	aux := struct {
		*plain
		ID        flexibleID `json:"id"`
		AltID     flexibleID `json:"_id"`
		CreatedAt Date       `json:"createdAt"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.ID = string(aux.ID)
	if o.ID == "" {
		o.ID = string(aux.AltID)
	}
	if o.OrderDate.IsZero() {
		o.OrderDate = aux.CreatedAt
	}
	return nil
}

type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexibleID(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("order id: %w", err)
		}
		*id = flexibleID(n.String())
	}
	return nil
}
