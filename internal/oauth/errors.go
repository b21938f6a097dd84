package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrStateMismatch is returned when a callback's state does not match a
	// live authorization session for the same provider.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrUnknownProvider is returned for a provider name with no configuration.
	ErrUnknownProvider = errors.New("unknown oauth provider")

	// ErrSessionNotFound is returned by a SessionStore when no live session
	// exists for a state value.
	ErrSessionNotFound = errors.New("authorization session not found")

	// ErrIssuerMismatch is returned when an ID token names an issuer other
	// than the provider's configured trusted issuer.
	ErrIssuerMismatch = errors.New("id token issuer mismatch")
)

// TokenExchangeError describes a failed authorization-code exchange.
// It never carries the code verifier or any token.
type TokenExchangeError struct {
	Provider    string
	Code        string
	Description string
	Err         error
}

func (e *TokenExchangeError) Error() string {
	msg := fmt.Sprintf("token exchange with %s failed", e.Provider)
	if e.Code != "" {
		msg += ": " + e.Code
		if e.Description != "" {
			msg += " (" + e.Description + ")"
		}
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}
