package oauth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, providers ...ProviderConfig) (*mux.Router, *Flow) {
	t.Helper()
	flow, _, _ := newTestFlow(t, providers...)
	r := mux.NewRouter()
	NewHandler(flow).Register(r)
	return r, flow
}

func serve(r http.Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestHandler_LoginRedirects(t *testing.T) {
	fp := newFakeProvider(t)
	r, _ := newTestRouter(t, fp.githubConfig())

	rr := serve(r, "/login/github?user=acme")
	require.Equal(t, http.StatusFound, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), fp.srv.URL+"/authorize?"))

	rr = serve(r, "/login/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_CallbackMissingParams(t *testing.T) {
	fp := newFakeProvider(t)
	r, _ := newTestRouter(t, fp.githubConfig())

	for _, q := range []string{"state=s", "code=c", ""} {
		rr := serve(r, "/callback/github?"+q)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "missing required parameters")
	}
	assert.Zero(t, fp.calls())
}

func TestHandler_CallbackProviderError(t *testing.T) {
	fp := newFakeProvider(t)
	r, _ := newTestRouter(t, fp.githubConfig())

	rr := serve(r, "/callback/github?error=access_denied&error_description=%3Cscript%3E")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.NotContains(t, rr.Body.String(), "<script>")
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestHandler_CallbackInvalidState(t *testing.T) {
	fp := newFakeProvider(t)
	r, _ := newTestRouter(t, fp.githubConfig())

	rr := serve(r, "/callback/github?code=good-code&state=forged")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "expired or invalid")
	assert.Zero(t, fp.calls())
}

func TestHandler_FullLogin(t *testing.T) {
	fp := newFakeProvider(t)
	r, _ := newTestRouter(t, fp.githubConfig())

	login := serve(r, "/login/github?user=acme")
	loc, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)

	rr := serve(r, "/callback/github?code=good-code&state="+url.QueryEscape(loc.Query().Get("state")))
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/success?provider=github&user=acme", rr.Header().Get("Location"))
	assert.NotContains(t, rr.Body.String(), "gho_test_token")

	page := serve(r, "/success?user=%3Cb%3Eacme&provider=github")
	assert.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "&lt;b&gt;acme")
}

func TestHandler_ChainedLogin(t *testing.T) {
	fp := newFakeProvider(t)
	fp.userinfo = map[string]any{"preferred_username": "sarah"}

	kc := fp.githubConfig()
	kc.Name = "keycloak"
	kc.RedirectURL = "http://localhost:8000/callback/keycloak"
	kc.UserInfoURL = fp.srv.URL + "/userinfo"
	kc.Next = "github"
	r, flow := newTestRouter(t, kc, fp.githubConfig())

	login := serve(r, "/login/keycloak")
	loc, _ := url.Parse(login.Header().Get("Location"))

	rr := serve(r, "/callback/keycloak?code=good-code&state="+url.QueryEscape(loc.Query().Get("state")))
	require.Equal(t, http.StatusFound, rr.Code)
	next, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/callback/github", next.Query().Get("redirect_uri"))

	// The chained login stores the GitHub credential under the Keycloak identity.
	done := serve(r, "/callback/github?code=good-code&state="+url.QueryEscape(next.Query().Get("state")))
	require.Equal(t, http.StatusFound, done.Code)
	_, ok, err := flow.creds.Get(t.Context(), "sarah", "github")
	require.NoError(t, err)
	assert.True(t, ok)
}
