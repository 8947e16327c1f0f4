package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/api"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/cart"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/checkout"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantError  string
	}{
		{"auth failure", &session.AuthError{Op: "login", Message: "Invalid credentials"}, http.StatusUnauthorized, "auth_failed", "Invalid credentials"},
		{"not logged in", session.ErrNotAuthenticated, http.StatusUnauthorized, "unauthenticated", ""},
		{"not admin", session.ErrForbidden, http.StatusForbidden, "permission_denied", ""},
		{"address", &checkout.AddressError{Fields: []string{"city"}}, http.StatusBadRequest, "invalid_address", "Please fill in all required address fields."},
		{"payment", fmt.Errorf("%w: %q", checkout.ErrUnsupportedPayment, "card"), http.StatusBadRequest, "invalid_payment_method", ""},
		{"double submit", checkout.ErrSubmitInProgress, http.StatusConflict, "submit_in_progress", ""},
		{"order rejected", &checkout.OrderError{Message: "Out of stock", Err: &api.Error{Status: 409, Message: "Out of stock"}}, http.StatusUnprocessableEntity, "order_rejected", "Out of stock"},
		{"order failed", &checkout.OrderError{Message: "Failed to place COD order.", Err: errors.New("dial tcp")}, http.StatusBadGateway, "order_failed", "Failed to place COD order."},
		{"invalid product", &cart.ValidationError{ProductID: 1, Err: cart.ErrInvalidPrice}, http.StatusBadRequest, "invalid_product", ""},
		{"invalid status", fmt.Errorf("%w: %q", domain.ErrInvalidOrderStatus, "x"), http.StatusBadRequest, "invalid_status", ""},
		{"breaker open", fmt.Errorf("GET /x: %w", api.ErrUnavailable), http.StatusServiceUnavailable, "service_unavailable", ""},
		{"backend 404", &api.Error{Status: 404, Message: "Order not found"}, http.StatusNotFound, "backend_error", "Order not found"},
		{"backend 500", &api.Error{Status: 500, Message: "boom"}, http.StatusBadGateway, "backend_error", "boom"},
		{"cart unreadable", fmt.Errorf("open cart: %w: %w", cart.ErrStorageUnavailable, context.DeadlineExceeded), http.StatusServiceUnavailable, "storage_unavailable", "cart is temporarily unavailable"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", ""},
		{"unknown", errors.New("something odd"), http.StatusInternalServerError, "internal_error", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body.Error)
			}
		})
	}
}
