package credentials

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Record is one stored credential.
type Record struct {
	Subject     string    `json:"subject"`
	Service     string    `json:"service"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	IDToken     string    `json:"id_token,omitempty"`
	Scopes      []string  `json:"scopes,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
}

// keySeparator joins subject and service. Service names may not contain
// it, so a key splits unambiguously at its last separator.
const keySeparator = ":"

// Key returns the composite key "{subject}:{service}".
func Key(subject, service string) string {
	return subject + keySeparator + service
}

// ValidateService reports whether service can be used as a credential
// service name.
func ValidateService(service string) error {
	if service == "" {
		return fmt.Errorf("service name is empty")
	}
	if strings.Contains(service, keySeparator) {
		return fmt.Errorf("service name %q must not contain %q", service, keySeparator)
	}
	return nil
}

// Key returns the record's composite key.
func (r Record) Key() string {
	return Key(r.Subject, r.Service)
}

// String implements fmt.Stringer without exposing tokens.
func (r Record) String() string {
	return fmt.Sprintf("credentials.Record{subject=%s service=%s token=[REDACTED] scopes=%s}",
		r.Subject, r.Service, strings.Join(r.Scopes, ","))
}

// GoString keeps %#v from printing token material.
func (r Record) GoString() string {
	return r.String()
}

// Preview returns the first characters of the access token followed by an
// ellipsis, for status displays.
func (r Record) Preview() string {
	const keep = 10
	if len(r.AccessToken) <= keep {
		return strings.Repeat("*", len(r.AccessToken))
	}
	return r.AccessToken[:keep] + "..."
}

func (r Record) validate() error {
	if r.Subject == "" || r.Service == "" {
		return fmt.Errorf("credential record requires subject and service")
	}
	if err := ValidateService(r.Service); err != nil {
		return err
	}
	if r.AccessToken == "" {
		return fmt.Errorf("credential record for %s has no access token", r.Key())
	}
	return nil
}

// Store persists credential records. Put is last-write-wins per key, and a
// successful return means the write is durable for persistent stores.
// Get reports absence with ok=false and a nil error.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, subject, service string) (rec *Record, ok bool, err error)
	Delete(ctx context.Context, subject, service string) error
	List(ctx context.Context, subject string) ([]Record, error)
}
