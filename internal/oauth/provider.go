package oauth

import (
	"fmt"
	"strings"

	"github.com/0xchamin/agent-security-and-identity/internal/credentials"
)

// ProviderConfig describes one identity provider.
type ProviderConfig struct {
	// Name identifies the provider in routes (/login/{name}).
	Name string `yaml:"name"`

	// Service is the credential key the resulting token is stored under.
	// Defaults to Name.
	Service string `yaml:"service,omitempty"`

	ClientID     string   `yaml:"clientId"`
	ClientSecret string   `yaml:"clientSecret,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
	RedirectURL  string   `yaml:"redirectUrl"`

	// Issuer enables OpenID Connect discovery. When set, endpoints that are
	// left empty are filled from the issuer's metadata.
	Issuer string `yaml:"issuer,omitempty"`

	AuthURL     string `yaml:"authUrl,omitempty"`
	TokenURL    string `yaml:"tokenUrl,omitempty"`
	UserInfoURL string `yaml:"userInfoUrl,omitempty"`

	// TrustedIssuer, when set, must equal the iss claim of any ID token the
	// provider returns. Signatures are still not verified.
	TrustedIssuer string `yaml:"trustedIssuer,omitempty"`

	// Next names a provider whose login starts immediately after this one
	// succeeds, for the same subject.
	Next string `yaml:"next,omitempty"`
}

// ServiceKey returns the credential service key.
func (p ProviderConfig) ServiceKey() string {
	if p.Service != "" {
		return p.Service
	}
	return p.Name
}

// Validate checks that the provider can start a flow.
func (p ProviderConfig) Validate() error {
	var problems []string
	if p.Name == "" {
		problems = append(problems, "name is required")
	}
	if p.Name != "" {
		if err := credentials.ValidateService(p.ServiceKey()); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if p.ClientID == "" {
		problems = append(problems, "clientId is required")
	}
	if p.RedirectURL == "" {
		problems = append(problems, "redirectUrl is required")
	}
	if p.Issuer == "" && (p.AuthURL == "" || p.TokenURL == "") {
		problems = append(problems, "either issuer or both authUrl and tokenUrl are required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("provider %q: %s", p.Name, strings.Join(problems, "; "))
	}
	return nil
}
