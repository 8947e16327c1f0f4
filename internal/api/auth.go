package api

import (
	"context"
	"net/http"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
)

type StatusResponse struct {
	LoggedIn bool             `json:"logged_in"`
	User     *domain.Identity `json:"user"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token   string          `json:"token"`
	User    domain.Identity `json:"user"`
	Message string          `json:"message,omitempty"`
}

func (c *Client) Status(ctx context.Context, opts ...RequestOption) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/status", nil, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout never triggers the unauthorized hook; a 401 here only means the
// backend already forgot the session.
func (c *Client) Logout(ctx context.Context, opts ...RequestOption) error {
	opts = append(opts, withoutUnauthorizedHook())
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, opts...)
}
