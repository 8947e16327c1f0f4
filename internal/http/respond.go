package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/api"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/cart"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/checkout"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/session"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/workspace"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Details  string `json:"details,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	ReturnTo string `json:"returnTo,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondRedirect answers a gating failure with where the UI should go next.
func respondRedirect(w http.ResponseWriter, status int, code string, res *checkout.Result) {
	body := ErrorResponse{Error: res.Message, Code: code, Redirect: res.Redirect, ReturnTo: res.ReturnTo}
	respondJSON(w, status, body)
}

// handleError maps core errors onto HTTP status codes.
func handleError(w http.ResponseWriter, err error) {
	var (
		httpStatus int
		code       string
		message    = err.Error()
		details    string
	)

	var (
		authErr     *session.AuthError
		addrErr     *checkout.AddressError
		orderErr    *checkout.OrderError
		validateErr *cart.ValidationError
		apiErr      *api.Error
	)

	switch {
	case errors.As(err, &authErr):
		httpStatus, code, message = http.StatusUnauthorized, "auth_failed", authErr.Message
	case errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, checkout.ErrNotAuthenticated):
		httpStatus, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, session.ErrForbidden):
		httpStatus, code = http.StatusForbidden, "permission_denied"
	case errors.As(err, &addrErr):
		httpStatus, code = http.StatusBadRequest, "invalid_address"
		message = "Please fill in all required address fields."
		details = strings.Join(addrErr.Fields, ",")
	case errors.Is(err, checkout.ErrUnsupportedPayment):
		httpStatus, code, message = http.StatusBadRequest, "invalid_payment_method", "Invalid payment method selected."
	case errors.Is(err, checkout.ErrEmptyCart):
		httpStatus, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, checkout.ErrSubmitInProgress):
		httpStatus, code = http.StatusConflict, "submit_in_progress"
	case errors.As(err, &orderErr):
		httpStatus, code, message = http.StatusBadGateway, "order_failed", orderErr.Message
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			httpStatus, code = http.StatusUnprocessableEntity, "order_rejected"
		}
	case errors.As(err, &validateErr):
		httpStatus, code = http.StatusBadRequest, "invalid_product"
	case errors.Is(err, domain.ErrInvalidOrderStatus):
		httpStatus, code = http.StatusBadRequest, "invalid_status"
	case errors.Is(err, api.ErrUnavailable):
		httpStatus, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, cart.ErrStorageUnavailable):
		httpStatus, code, message = http.StatusServiceUnavailable, "storage_unavailable", "cart is temporarily unavailable"
	case errors.As(err, &apiErr):
		httpStatus, code, message = apiErr.Status, "backend_error", apiErr.Message
		if apiErr.Status >= http.StatusInternalServerError {
			httpStatus = http.StatusBadGateway
		}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, workspace.ErrClosed):
		httpStatus, code = http.StatusServiceUnavailable, "shutting_down"
	default:
		httpStatus, code, message = http.StatusInternalServerError, "internal_error", "internal server error"
	}

	respondJSON(w, httpStatus, ErrorResponse{Error: message, Code: code, Details: details})
}
