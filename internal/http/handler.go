// Package http exposes the storefront core as JSON endpoints. Every request
// is served from the calling visitor's workspace.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/workspace"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Workspaces interface {
	Get(ctx context.Context, visitorID string) (*workspace.Workspace, error)
}

type Handler struct {
	workspaces Workspaces
	timeout    time.Duration
	maxBody    int64
	logger     *zap.Logger
}

type HandlerOption func(*Handler)

func WithMaxBodySize(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

func NewHandler(workspaces Workspaces, timeout time.Duration, opts ...HandlerOption) *Handler {
	h := &Handler{
		workspaces: workspaces,
		timeout:    timeout,
		maxBody:    1 << 20,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts every storefront endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/login", h.Login)
		r.Post("/signup", h.Signup)
		r.Post("/logout", h.Logout)
	})
	r.Get("/notices", h.DrainNotices)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{product_id}", h.UpdateQuantity)
		r.Delete("/items/{product_id}", h.RemoveItem)
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/", h.PlaceOrder)
		r.Post("/proceed", h.ProceedToCheckout)
	})

	r.Get("/orders", h.MyOrders)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/orders", h.AdminListOrders)
		r.Get("/orders/{order_id}", h.AdminGetOrder)
		r.Put("/orders/{order_id}/status", h.AdminUpdateOrderStatus)
		r.Get("/users", h.AdminListUsers)
		r.Put("/users/{user_id}", h.AdminUpdateUser)
		r.Delete("/users/{user_id}", h.AdminDeleteUser)
	})
}

// workspace resolves the caller's workspace or writes an error response.
func (h *Handler) workspace(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	visitorID := VisitorID(r.Context())
	if visitorID == "" {
		respondError(w, http.StatusBadRequest, "missing_visitor", "visitor cookie is missing")
		return nil, false
	}
	ws, err := h.workspaces.Get(r.Context(), visitorID)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return ws, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Debug("request failed",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	handleError(w, err)
}

// decode reads a JSON body no larger than the configured limit.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body is too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
