package oauth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// PKCEChallenge represents a PKCE (Proof Key for Code Exchange) pair.
type PKCEChallenge struct {
	// CodeVerifier is kept secret until the token exchange.
	CodeVerifier string `json:"code_verifier"`

	// CodeChallenge is sent in the authorization request.
	CodeChallenge string `json:"code_challenge"`

	// CodeChallengeMethod is always "S256".
	CodeChallengeMethod string `json:"code_challenge_method"`
}

// Token represents the result of a successful token exchange.
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
}

// Scopes returns the scope as a slice of individual scopes.
func (t *Token) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	// GitHub separates granted scopes with commas.
	return strings.FieldsFunc(t.Scope, func(r rune) bool {
		return r == ' ' || r == ','
	})
}

// TokenFromOAuth2 converts a golang.org/x/oauth2 token, carrying over the
// id_token and scope extras when the provider returned them.
func TokenFromOAuth2(t *oauth2.Token) *Token {
	if t == nil {
		return nil
	}
	out := &Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
	}
	if v, ok := t.Extra("id_token").(string); ok {
		out.IDToken = v
	}
	if v, ok := t.Extra("scope").(string); ok {
		out.Scope = v
	}
	return out
}

// Metadata represents OpenID Connect discovery / RFC 8414 server metadata.
type Metadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	UserinfoEndpoint              string   `json:"userinfo_endpoint,omitempty"`
	JwksURI                       string   `json:"jwks_uri,omitempty"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// SupportsPKCE returns true if the server supports S256 PKCE.
func (m *Metadata) SupportsPKCE() bool {
	for _, method := range m.CodeChallengeMethodsSupported {
		if method == MethodS256 {
			return true
		}
	}
	return len(m.CodeChallengeMethodsSupported) == 0
}
