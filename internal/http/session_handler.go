package http

import (
	"context"
	"net/http"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/notify"
)

type LoginRequestDTO struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type SignupRequestDTO struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type NoticesResponseDTO struct {
	Notices []notify.Notice `json:"notices"`
}

// GET /api/v1/session
//
// Returns immediately; a session still resolving reports state "unknown".
// With ?wait=true the call blocks until it resolves or the request times out.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("wait") != "true" {
		respondJSON(w, http.StatusOK, ws.Session.Snapshot())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	snap, err := ws.Session.Wait(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// POST /api/v1/session/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req LoginRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	if req.Identifier == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "identifier and password are required")
		return
	}

	if _, err := ws.Session.Login(ctx, req.Identifier, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ws.Session.Snapshot())
}

// POST /api/v1/session/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req SignupRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "username, email and password are required")
		return
	}

	if _, err := ws.Session.Signup(ctx, req.Username, req.Email, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, ws.Session.Snapshot())
}

// POST /api/v1/session/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ws.Session.Logout(r.Context())
	respondJSON(w, http.StatusOK, ws.Session.Snapshot())
}

// GET /api/v1/notices
func (h *Handler) DrainNotices(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	notices := ws.Inbox.Drain()
	if notices == nil {
		notices = []notify.Notice{}
	}
	respondJSON(w, http.StatusOK, NoticesResponseDTO{Notices: notices})
}
