package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/checkout"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
)

type PlaceOrderRequestDTO struct {
	Address       domain.Address       `json:"address"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
}

// POST /api/v1/checkout/proceed
func (h *Handler) ProceedToCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	res, err := ws.Checkout.Proceed(ctx)
	if err != nil {
		h.checkoutError(w, r, res, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// POST /api/v1/checkout
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req PlaceOrderRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	res, err := ws.Checkout.Submit(ctx, checkout.Request{
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.checkoutError(w, r, res, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (h *Handler) checkoutError(w http.ResponseWriter, r *http.Request, res *checkout.Result, err error) {
	if res == nil || !checkout.IsRedirect(err) {
		h.fail(w, r, err)
		return
	}
	if errors.Is(err, checkout.ErrNotAuthenticated) {
		respondRedirect(w, http.StatusUnauthorized, "unauthenticated", res)
		return
	}
	respondRedirect(w, http.StatusBadRequest, "empty_cart", res)
}
