package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xchamin/agent-security-and-identity/internal/audit"
	"github.com/0xchamin/agent-security-and-identity/internal/credentials"
	"github.com/0xchamin/agent-security-and-identity/internal/dispatch"
	"github.com/0xchamin/agent-security-and-identity/internal/oauth"
	"github.com/0xchamin/agent-security-and-identity/internal/toolsession"
)

type fakeDispatcher struct {
	subject string
	query   string
	out     *dispatch.Outcome
	err     error
}

func (f *fakeDispatcher) Handle(_ context.Context, subject, query string) (*dispatch.Outcome, error) {
	f.subject, f.query = subject, query
	return f.out, f.err
}

func (f *fakeDispatcher) Service() string { return "github" }

type fixture struct {
	handler    http.Handler
	creds      *credentials.MemoryStore
	sink       *audit.MemorySink
	dispatcher *fakeDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, []oauth.ProviderConfig{
		{
			Name:        "github",
			ClientID:    "client",
			AuthURL:     "https://github.example/authorize",
			TokenURL:    "https://github.example/token",
			RedirectURL: "http://localhost:8000/callback/github",
		},
		{
			Name:        "gitlab",
			ClientID:    "client",
			AuthURL:     "https://gitlab.example/authorize",
			TokenURL:    "https://gitlab.example/token",
			RedirectURL: "http://localhost:8000/callback/gitlab",
		},
	})
}

func newFixtureWith(t *testing.T, providers []oauth.ProviderConfig) *fixture {
	t.Helper()
	creds := credentials.NewMemoryStore()
	sessions := oauth.NewMemorySessionStore(time.Minute)
	t.Cleanup(func() { sessions.Close() })

	flow, err := oauth.NewFlow(providers, sessions, creds)
	require.NoError(t, err)

	f := &fixture{creds: creds, sink: audit.NewMemorySink(), dispatcher: &fakeDispatcher{}}
	f.handler = New(flow, creds, f.dispatcher, f.sink).Handler()
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestIndexListsProviders(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `href="/login/github"`)
	assert.Contains(t, rr.Body.String(), `href="/login/gitlab"`)
}

func TestLoginRouteIsMounted(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/login/github?user=acme", "")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), "https://github.example/authorize?"))
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTokenStatus(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/token/status?user=sarah", "")
	require.Equal(t, http.StatusOK, rr.Code)
	status := decode[TokenStatus](t, rr)
	assert.False(t, status.HasToken)
	assert.Equal(t, "github", status.Service)

	require.NoError(t, f.creds.Put(context.Background(), credentials.Record{
		Subject: "sarah", Service: "github", AccessToken: "gho_1234567890abcdef", Scopes: []string{"repo"},
	}))

	rr = f.do(http.MethodGet, "/token/status?user=sarah", "")
	status = decode[TokenStatus](t, rr)
	assert.True(t, status.HasToken)
	assert.Equal(t, "gho_123456...", status.TokenPreview)
	assert.NotContains(t, rr.Body.String(), "gho_1234567890abcdef")

	rr = f.do(http.MethodGet, "/token/status?user=sarah&service=gitlab", "")
	assert.False(t, decode[TokenStatus](t, rr).HasToken)
}

func TestTokenStatus_DefaultUser(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/token/status", "")
	assert.Equal(t, oauth.DefaultSubject, decode[TokenStatus](t, rr).User)
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		out        *dispatch.Outcome
		err        error
		wantStatus int
		wantResult string
		wantError  string
		wantLogin  string
	}{
		{
			name:       "success",
			body:       `{"query":"find mcp repos","user_id":"acme"}`,
			out:        &dispatch.Outcome{Status: audit.StatusSuccess, ToolName: "search_repositories", Result: "[...]"},
			wantStatus: http.StatusOK,
			wantResult: "[...]",
		},
		{
			name:       "no tool",
			body:       `{"query":"weather?","user_id":"acme"}`,
			out:        &dispatch.Outcome{Status: audit.StatusNoTool, ToolName: "none"},
			wantStatus: http.StatusOK,
			wantResult: dispatch.NoToolMessage,
		},
		{
			name:       "no credential",
			body:       `{"query":"who am i","user_id":"acme"}`,
			out:        &dispatch.Outcome{Status: audit.StatusError, ToolName: "none"},
			err:        toolsession.ErrNoCredential,
			wantStatus: http.StatusUnauthorized,
			wantError:  "sign in first",
			wantLogin:  "/login/github?user=acme",
		},
		{
			name:       "tool failure",
			body:       `{"query":"file a bug","user_id":"acme"}`,
			out:        &dispatch.Outcome{Status: audit.StatusError, ToolName: "create_issue"},
			err:        &toolsession.ToolInvocationError{Tool: "create_issue", Detail: "forbidden"},
			wantStatus: http.StatusBadGateway,
			wantError:  "forbidden",
		},
		{
			name:       "model down",
			body:       `{"query":"x"}`,
			err:        errors.New("connection refused"),
			wantStatus: http.StatusBadGateway,
			wantError:  "connection refused",
		},
		{
			name:       "missing query",
			body:       `{"user_id":"acme"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "query is required",
		},
		{
			name:       "malformed body",
			body:       `not json`,
			wantStatus: http.StatusBadRequest,
			wantError:  "must be JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.dispatcher.out, f.dispatcher.err = tt.out, tt.err

			rr := f.do(http.MethodPost, "/query", tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)
			resp := decode[QueryResponse](t, rr)
			assert.Equal(t, tt.wantResult, resp.Result)
			if tt.wantError != "" {
				assert.Contains(t, resp.Error, tt.wantError)
			}
			assert.Equal(t, tt.wantLogin, resp.LoginURL)
		})
	}
}

func TestQuery_LoginURLNamesProviderForService(t *testing.T) {
	tests := []struct {
		name      string
		providers []oauth.ProviderConfig
		wantLogin string
	}{
		{
			name: "provider named differently from service",
			providers: []oauth.ProviderConfig{{
				Name: "gh", Service: "github", ClientID: "client",
				AuthURL: "https://github.example/authorize", TokenURL: "https://github.example/token",
				RedirectURL: "http://localhost:8000/callback/gh",
			}},
			wantLogin: "/login/gh?user=acme",
		},
		{
			name: "no provider stores the service",
			providers: []oauth.ProviderConfig{{
				Name: "keycloak", ClientID: "client",
				AuthURL: "https://sso.example/authorize", TokenURL: "https://sso.example/token",
				RedirectURL: "http://localhost:8000/callback/keycloak",
			}},
			wantLogin: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixtureWith(t, tt.providers)
			f.dispatcher.err = toolsession.ErrNoCredential

			rr := f.do(http.MethodPost, "/query", `{"query":"who am i","user_id":"acme"}`)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			resp := decode[QueryResponse](t, rr)
			assert.Equal(t, tt.wantLogin, resp.LoginURL)
			if tt.wantLogin != "" {
				assert.Equal(t, http.StatusFound, f.do(http.MethodGet, tt.wantLogin, "").Code)
			}
		})
	}
}

func TestQuery_DefaultUser(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.out = &dispatch.Outcome{Status: audit.StatusNoTool}

	f.do(http.MethodPost, "/query", `{"query":"hello"}`)
	assert.Equal(t, oauth.DefaultSubject, f.dispatcher.subject)
	assert.Equal(t, "hello", f.dispatcher.query)
}

func TestQuery_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/query", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, u := range []string{"acme", "sarah", "acme"} {
		require.NoError(t, f.sink.Append(ctx, audit.NewEntry(u, "q-"+u, "none", nil, audit.StatusNoTool, "", 0)))
	}

	rr := f.do(http.MethodGet, "/audit", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]audit.Entry](t, rr), 3)

	rr = f.do(http.MethodGet, "/audit?user=acme", "")
	entries := decode[[]audit.Entry](t, rr)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "acme", e.UserID)
	}

	rr = f.do(http.MethodGet, "/audit?limit=1", "")
	entries = decode[[]audit.Entry](t, rr)
	require.Len(t, entries, 1)
	assert.Equal(t, "q-acme", entries[0].Query)

	rr = f.do(http.MethodGet, "/audit?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAudit_EmptyIsArray(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/audit", "")
	assert.JSONEq(t, "[]", rr.Body.String())
}
