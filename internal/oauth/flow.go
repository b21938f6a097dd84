package oauth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/oauth2"

	"github.com/0xchamin/agent-security-and-identity/internal/credentials"
	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
	pkgoauth "github.com/0xchamin/agent-security-and-identity/pkg/oauth"
)

// FlowState is the state of one login attempt.
type FlowState string

const (
	StateIdle             FlowState = "idle"
	StateAwaitingCallback FlowState = "awaiting_callback"
	StateExchanging       FlowState = "exchanging"
	StateAuthorized       FlowState = "authorized"
	StateFailed           FlowState = "failed"
)

// DefaultSubject is used when no identity can be resolved for a login.
const DefaultSubject = "default_user"

// Result describes a completed login.
type Result struct {
	State    FlowState
	Provider string
	Service  string
	Subject  string
	Token    *pkgoauth.Token
	Claims   *pkgoauth.IDTokenClaims

	// Next is the provider to chain into, if configured.
	Next string
}

// Flow runs authorization-code-with-PKCE logins for a set of providers and
// writes the resulting credentials to a credentials.Store.
type Flow struct {
	providers      map[string]ProviderConfig
	sessions       SessionStore
	creds          credentials.Store
	client         *pkgoauth.Client
	now            func() time.Time
	defaultSubject string
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithOAuthClient sets the client used for discovery, userinfo and the
// token endpoint.
func WithOAuthClient(c *pkgoauth.Client) FlowOption {
	return func(f *Flow) {
		f.client = c
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) FlowOption {
	return func(f *Flow) {
		f.now = now
	}
}

// WithDefaultSubject sets the subject used when none can be resolved.
func WithDefaultSubject(subject string) FlowOption {
	return func(f *Flow) {
		f.defaultSubject = subject
	}
}

// NewFlow validates the providers and builds a Flow.
func NewFlow(providers []ProviderConfig, sessions SessionStore, creds credentials.Store, opts ...FlowOption) (*Flow, error) {
	if sessions == nil || creds == nil {
		return nil, errors.New("oauth flow requires a session store and a credential store")
	}
	f := &Flow{
		providers:      make(map[string]ProviderConfig, len(providers)),
		sessions:       sessions,
		creds:          creds,
		client:         pkgoauth.NewClient(),
		now:            time.Now,
		defaultSubject: DefaultSubject,
	}
	for _, opt := range opts {
		opt(f)
	}

	for _, p := range providers {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := f.providers[p.Name]; dup {
			return nil, fmt.Errorf("provider %q configured twice", p.Name)
		}
		f.providers[p.Name] = p
	}
	for _, p := range f.providers {
		if p.Next != "" {
			if _, ok := f.providers[p.Next]; !ok {
				return nil, fmt.Errorf("provider %q chains to unknown provider %q", p.Name, p.Next)
			}
		}
	}
	return f, nil
}

// Providers returns the configured provider names, sorted.
func (f *Flow) Providers() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider returns the configuration for name.
func (f *Flow) Provider(name string) (ProviderConfig, bool) {
	p, ok := f.providers[name]
	return p, ok
}

// ProviderForService returns the name of the provider whose credentials are
// stored under service. A provider named after the service is preferred;
// otherwise the first matching name in sorted order wins.
func (f *Flow) ProviderForService(service string) (string, bool) {
	if p, ok := f.providers[service]; ok && p.ServiceKey() == service {
		return p.Name, true
	}
	for _, name := range f.Providers() {
		if f.providers[name].ServiceKey() == service {
			return name, true
		}
	}
	return "", false
}

// Begin starts a login with provider and returns the URL to send the user
// to. subject may be empty; when set it becomes the credential owner
// regardless of what the provider reports.
func (f *Flow) Begin(ctx context.Context, provider, subject string) (string, error) {
	p, ok := f.providers[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	cfg, _, err := f.oauth2Config(ctx, p)
	if err != nil {
		return "", err
	}

	pkce, err := pkgoauth.GeneratePKCE()
	if err != nil {
		return "", err
	}
	state, err := pkgoauth.GenerateState()
	if err != nil {
		return "", err
	}

	sess := &AuthSession{
		State:     state,
		Provider:  p.Name,
		PKCE:      *pkce,
		Scopes:    p.Scopes,
		Subject:   subject,
		CreatedAt: f.now(),
	}
	if err := f.sessions.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("failed to save authorization session: %w", err)
	}

	logging.Info("OAuth", "Login %s -> %s: provider=%s state=%s",
		StateIdle, StateAwaitingCallback, p.Name, logging.TruncateID(state))

	return cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(pkce.CodeVerifier)), nil
}

// Complete finishes the login identified by state. The session is consumed
// whatever the outcome.
func (f *Flow) Complete(ctx context.Context, provider, code, state string) (*Result, error) {
	p, ok := f.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	sess, err := f.sessions.Take(ctx, state)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, f.fail(p.Name, ErrStateMismatch)
		}
		return nil, f.fail(p.Name, fmt.Errorf("failed to load authorization session: %w", err))
	}
	if sess.Provider != p.Name {
		logging.Warn("OAuth", "Callback for provider %s presented a state issued for %s", p.Name, sess.Provider)
		return nil, f.fail(p.Name, ErrStateMismatch)
	}

	logging.Debug("OAuth", "Login %s -> %s: provider=%s", StateAwaitingCallback, StateExchanging, p.Name)

	if code == "" {
		return nil, f.fail(p.Name, &TokenExchangeError{Provider: p.Name, Code: "invalid_request", Description: "missing authorization code"})
	}

	cfg, userInfoURL, err := f.oauth2Config(ctx, p)
	if err != nil {
		return nil, f.fail(p.Name, &TokenExchangeError{Provider: p.Name, Err: err})
	}

	httpCtx := context.WithValue(ctx, oauth2.HTTPClient, f.client.HTTPClient())
	raw, err := cfg.Exchange(httpCtx, code, oauth2.VerifierOption(sess.PKCE.CodeVerifier))
	if err != nil {
		return nil, f.fail(p.Name, exchangeError(p.Name, err))
	}
	token := pkgoauth.TokenFromOAuth2(raw)

	claims, err := f.identityClaims(p, token)
	if err != nil {
		return nil, f.fail(p.Name, err)
	}

	subject := f.resolveSubject(ctx, sess, claims, userInfoURL, token.AccessToken)

	scopes := token.Scopes()
	if len(scopes) == 0 {
		scopes = sess.Scopes
	}
	rec := credentials.Record{
		Subject:     subject,
		Service:     p.ServiceKey(),
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		IDToken:     token.IDToken,
		Scopes:      scopes,
		IssuedAt:    f.now(),
	}
	if err := f.creds.Put(ctx, rec); err != nil {
		return nil, f.fail(p.Name, fmt.Errorf("failed to store credential: %w", err))
	}

	logging.Info("OAuth", "Login %s -> %s: provider=%s subject=%s", StateExchanging, StateAuthorized, p.Name, subject)

	return &Result{
		State:    StateAuthorized,
		Provider: p.Name,
		Service:  p.ServiceKey(),
		Subject:  subject,
		Token:    token,
		Claims:   claims,
		Next:     p.Next,
	}, nil
}

func (f *Flow) fail(provider string, err error) error {
	logging.Warn("OAuth", "Login -> %s: provider=%s reason=%v", StateFailed, provider, err)
	return err
}

// oauth2Config builds the x/oauth2 configuration, discovering endpoints
// from the issuer when they are not configured.
func (f *Flow) oauth2Config(ctx context.Context, p ProviderConfig) (*oauth2.Config, string, error) {
	authURL, tokenURL, userInfoURL := p.AuthURL, p.TokenURL, p.UserInfoURL
	if p.Issuer != "" && (authURL == "" || tokenURL == "" || userInfoURL == "") {
		md, err := f.client.DiscoverMetadata(ctx, p.Issuer)
		if err != nil {
			if authURL == "" || tokenURL == "" {
				return nil, "", err
			}
		} else {
			if authURL == "" {
				authURL = md.AuthorizationEndpoint
			}
			if tokenURL == "" {
				tokenURL = md.TokenEndpoint
			}
			if userInfoURL == "" {
				userInfoURL = md.UserinfoEndpoint
			}
		}
	}

	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
		Scopes:       p.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
			// client_id travels in the form body, as public clients require.
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, userInfoURL, nil
}

// identityClaims decodes the ID token, if any. Signatures are not verified;
// only the optional trusted-issuer check is applied.
func (f *Flow) identityClaims(p ProviderConfig, token *pkgoauth.Token) (*pkgoauth.IDTokenClaims, error) {
	if token.IDToken == "" {
		return nil, nil
	}
	claims, err := pkgoauth.DecodeIDTokenClaims(token.IDToken)
	if err != nil {
		if p.TrustedIssuer != "" {
			return nil, fmt.Errorf("%w: %v", ErrIssuerMismatch, err)
		}
		logging.Warn("OAuth", "Ignoring undecodable id token from %s: %v", p.Name, err)
		return nil, nil
	}
	if p.TrustedIssuer != "" && claims.Issuer != p.TrustedIssuer {
		return nil, fmt.Errorf("%w: got %q", ErrIssuerMismatch, claims.Issuer)
	}
	return claims, nil
}

// resolveSubject picks the credential owner: the subject carried by the
// session, then ID token claims, then the userinfo endpoint, then the
// configured default.
func (f *Flow) resolveSubject(ctx context.Context, sess *AuthSession, claims *pkgoauth.IDTokenClaims, userInfoURL, accessToken string) string {
	if sess.Subject != "" {
		return sess.Subject
	}
	if name := claims.Username(); name != "" {
		return name
	}
	if userInfoURL != "" {
		info, err := f.client.FetchUserInfo(ctx, userInfoURL, accessToken)
		if err != nil {
			logging.Warn("OAuth", "Userinfo lookup failed: %v", err)
		} else {
			for _, k := range []string{"preferred_username", "login", "email", "sub"} {
				if v, ok := info[k].(string); ok && v != "" {
					return v
				}
			}
		}
	}
	return f.defaultSubject
}

func exchangeError(provider string, err error) *TokenExchangeError {
	te := &TokenExchangeError{Provider: provider, Err: err}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		te.Code = re.ErrorCode
		te.Description = re.ErrorDescription
	}
	return te
}
