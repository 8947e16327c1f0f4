package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrCredentialInvalid = errors.New("credential cannot be decoded")
	ErrCredentialExpired = errors.New("credential has expired")
)

// DecodeCredential reads the identity and expiry carried by a bearer token.
// The signature is not checked here; the backend verifies it on every call.
// A token without an exp claim is rejected.
func DecodeCredential(token string, now time.Time) (*domain.Identity, time.Time, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, time.Time{}, ErrCredentialInvalid
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}
	if exp == nil {
		return nil, time.Time{}, fmt.Errorf("%w: missing exp", ErrCredentialInvalid)
	}
	if !now.Before(exp.Time) {
		return nil, exp.Time, ErrCredentialExpired
	}

	id := identityFromClaims(claims)
	if id.ID == "" && id.Username == "" {
		return nil, exp.Time, fmt.Errorf("%w: no identity claims", ErrCredentialInvalid)
	}
	return id, exp.Time, nil
}

// identityFromClaims accepts both the flat claim names and a nested "user"
// object, since backends disagree on where the identity lives.
func identityFromClaims(claims jwt.MapClaims) *domain.Identity {
	src := map[string]any(claims)
	if nested, ok := claims["user"].(map[string]any); ok {
		src = nested
	}

	id := &domain.Identity{
		ID:       domain.UserID(firstString(src, "id", "user_id", "_id")),
		Username: firstString(src, "username", "name"),
		Email:    firstString(src, "email"),
		IsAdmin:  firstBool(src, "isAdmin", "is_admin", "admin"),
	}
	if id.ID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			id.ID = domain.UserID(sub)
		}
	}
	return id
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func firstBool(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		switch v := m[k].(type) {
		case bool:
			return v
		case string:
			b, err := strconv.ParseBool(v)
			if err == nil {
				return b
			}
		}
	}
	return false
}
