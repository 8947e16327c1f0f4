package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
)

// User is an account as the admin endpoints return it.
type User struct {
	ID        domain.UserID `json:"id"`
	Username  string        `json:"username"`
	Email     string        `json:"email"`
	IsAdmin   bool          `json:"isAdmin"`
	CreatedAt domain.Date   `json:"createdAt,omitzero"`
}

// UnmarshalJSON accepts "_id" when the backend omits "id".
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		plain
		AltID domain.UserID `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = User(aux.plain)
	if u.ID == "" {
		u.ID = aux.AltID
	}
	return nil
}

type UserUpdate struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.do(ctx, http.MethodGet, "/api/admin/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateUser(ctx context.Context, id domain.UserID, u UserUpdate) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPut, "/api/admin/users/"+url.PathEscape(id.String()), u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUser(ctx context.Context, id domain.UserID) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/users/"+url.PathEscape(id.String()), nil, nil)
}
