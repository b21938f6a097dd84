package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

const (
	// pkceVerifierBytes is the number of random bytes for the PKCE code verifier.
	// 32 bytes encode to a 43 character verifier, the RFC 7636 minimum.
	pkceVerifierBytes = 32

	// stateBytes is the number of random bytes for the OAuth state parameter.
	stateBytes = 32

	// MethodS256 is the only supported code challenge method.
	MethodS256 = "S256"
)

// randReader is the entropy source. Tests replace it to simulate failure.
var randReader io.Reader = rand.Reader

// GeneratePKCE generates a new PKCE code verifier and its S256 challenge.
// It fails rather than degrading when the random source is unavailable.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifierBytes := make([]byte, pkceVerifierBytes)
	if _, err := io.ReadFull(randReader, verifierBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes for PKCE: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(verifierBytes)
	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       S256Challenge(verifier),
		CodeChallengeMethod: MethodS256,
	}, nil
}

// S256Challenge derives the code challenge for a verifier:
// base64url-no-pad(SHA-256(ASCII(verifier))).
func S256Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateState generates the opaque correlation token sent as the OAuth
// state parameter.
func GenerateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
