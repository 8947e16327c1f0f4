package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/api"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
	"github.com/go-chi/chi/v5"
)

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

type UpdateUserRequestDTO struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
}

// GET /api/v1/orders
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	list, err := ws.History.Load(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Order{}
	}
	respondJSON(w, http.StatusOK, list)
}

// GET /api/v1/admin/orders
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	list, err := ws.Admin.List(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Order{}
	}
	respondJSON(w, http.StatusOK, list)
}

// GET /api/v1/admin/orders/{order_id}
func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	order, err := ws.Admin.Get(ctx, orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PUT /api/v1/admin/orders/{order_id}/status
func (h *Handler) AdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	order, err := ws.Admin.UpdateStatus(ctx, orderID, req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GET /api/v1/admin/users
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if _, err := ws.Session.RequireAdmin(ctx); err != nil {
		h.fail(w, r, err)
		return
	}
	users, err := ws.API.ListUsers(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if users == nil {
		users = []api.User{}
	}
	respondJSON(w, http.StatusOK, users)
}

// PUT /api/v1/admin/users/{user_id}
func (h *Handler) AdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateUserRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := ws.Session.RequireAdmin(ctx); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := ws.API.UpdateUser(ctx, userID, api.UserUpdate{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// DELETE /api/v1/admin/users/{user_id}
func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	admin, err := ws.Session.RequireAdmin(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if admin.ID == userID {
		respondError(w, http.StatusBadRequest, "invalid_request", "admins cannot delete their own account")
		return
	}

	if err := ws.API.DeleteUser(ctx, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "order_id"))
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id is required")
		return "", false
	}
	return orderID, true
}

func userIDParam(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user_id is required")
		return "", false
	}
	return domain.UserID(userID), true
}
