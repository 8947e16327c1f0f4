package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/cart"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
)

type AddItemRequestDTO struct {
	Product  domain.Product `json:"product"`
	Quantity int            `json:"quantity"`
	Origin   *OriginDTO     `json:"origin,omitempty"`
}

type OriginDTO struct {
	From cart.Point `json:"from"`
	To   cart.Point `json:"to"`
}

// UpdateQuantityRequestDTO takes the quantity as typed by the user; numbers
// and strings are both accepted.
type UpdateQuantityRequestDTO struct {
	Quantity json.RawMessage `json:"quantity"`
}

type AddItemResponseDTO struct {
	cart.AddResult
	Cart domain.CartSnapshot `json:"cart"`
}

// GET /api/v1/cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, ws.Cart.Snapshot())
}

// POST /api/v1/cart/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	var opts []cart.AddOption
	if req.Origin != nil {
		opts = append(opts, cart.WithOrigin(req.Origin.From, req.Origin.To))
	}
	res, err := ws.Cart.AddItem(ctx, req.Product, req.Quantity, opts...)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, AddItemResponseDTO{AddResult: res, Cart: ws.Cart.Snapshot()})
}

// PUT /api/v1/cart/items/{product_id}
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	raw := strings.Trim(strings.TrimSpace(string(req.Quantity)), `"`)

	if !ws.Cart.UpdateQuantityInput(ctx, productID, raw) {
		respondError(w, http.StatusNotFound, "not_found", "product is not in the cart")
		return
	}
	respondJSON(w, http.StatusOK, ws.Cart.Snapshot())
}

// DELETE /api/v1/cart/items/{product_id}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	if !ws.Cart.RemoveItem(ctx, productID) {
		respondError(w, http.StatusNotFound, "not_found", "product is not in the cart")
		return
	}
	respondJSON(w, http.StatusOK, ws.Cart.Snapshot())
}

// DELETE /api/v1/cart
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ws.Cart.Clear(ctx)
	respondJSON(w, http.StatusOK, ws.Cart.Snapshot())
}
