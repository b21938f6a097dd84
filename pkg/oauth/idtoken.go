package oauth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// IDTokenClaims holds the identity claims read from an ID token.
type IDTokenClaims struct {
	jwt.RegisteredClaims
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Name              string `json:"name,omitempty"`
}

// ErrEmptyIDToken is returned when no ID token was supplied.
var ErrEmptyIDToken = errors.New("empty id token")

// DecodeIDTokenClaims parses the claims section of a JWT without verifying
// the signature.
func DecodeIDTokenClaims(raw string) (*IDTokenClaims, error) {
	if raw == "" {
		return nil, ErrEmptyIDToken
	}
	claims := &IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("failed to decode id token: %w", err)
	}
	return claims, nil
}

// Username picks the most human-readable identifier available.
func (c *IDTokenClaims) Username() string {
	switch {
	case c == nil:
		return ""
	case c.PreferredUsername != "":
		return c.PreferredUsername
	case c.Email != "":
		return c.Email
	default:
		return c.Subject
	}
}
