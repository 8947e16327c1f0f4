package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
)

type CreateOrderRequest struct {
	Cart          []domain.CartLineItem `json:"cart"`
	PaymentMethod domain.PaymentMethod  `json:"paymentMethod"`
	Address       domain.Address        `json:"address"`
}

type CreateOrderResponse struct {
	Message               string      `json:"message"`
	OrderID               string      `json:"orderId,omitempty"`
	EstimatedDeliveryDate domain.Date `json:"estimatedDeliveryDate,omitzero"`
}

// CreateOrder treats any 2xx as a placed order. A body that does not decode
// yields an empty response rather than an error, since the order exists
// either way and reporting failure would invite a duplicate.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest, opts ...RequestOption) (*CreateOrderResponse, error) {
	body, err := c.send(ctx, http.MethodPost, "/api/orders/create", req, opts...)
	if err != nil {
		return nil, err
	}
	var out CreateOrderResponse
	if len(body) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		c.logger.Warn("order accepted but response body did not decode",
			zap.Error(err), zap.ByteString("body", truncate(body, 256)))
		return &CreateOrderResponse{}, nil
	}
	return &out, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

func (c *Client) MyOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/my-orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	if err := c.do(ctx, http.MethodGet, "/api/admin/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminOrder(ctx context.Context, id string) (*domain.Order, error) {
	var out domain.Order
	if err := c.do(ctx, http.MethodGet, "/api/admin/orders/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

type UpdateStatusResponse struct {
	Message string        `json:"message"`
	Order   *domain.Order `json:"order,omitempty"`
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*UpdateStatusResponse, error) {
	var out UpdateStatusResponse
	path := "/api/admin/orders/" + url.PathEscape(id) + "/status"
	if err := c.do(ctx, http.MethodPut, path, updateStatusRequest{Status: status}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
