package oauth

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

// Handler exposes the flow over HTTP:
//
//	GET /login/{provider}?user=   redirect to the provider
//	GET /callback/{provider}      complete the login
//	GET /success?user=            confirmation page
type Handler struct {
	flow        *Flow
	successPath string
}

// NewHandler creates the HTTP handler for flow.
func NewHandler(flow *Flow) *Handler {
	return &Handler{flow: flow, successPath: "/success"}
}

// Register mounts the handler's routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/login/{provider}", h.HandleLogin).Methods(http.MethodGet)
	r.HandleFunc("/callback/{provider}", h.HandleCallback).Methods(http.MethodGet)
	r.HandleFunc(h.successPath, h.HandleSuccess).Methods(http.MethodGet)
}

// HandleLogin begins a login and redirects the browser.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	subject := r.URL.Query().Get("user")

	authURL, err := h.flow.Begin(r.Context(), provider, subject)
	if err != nil {
		if errors.Is(err, ErrUnknownProvider) {
			renderErrorPage(w, http.StatusNotFound, "Unknown login provider.")
			return
		}
		logging.Error("OAuth", err, "Failed to begin login for provider %s", provider)
		renderErrorPage(w, http.StatusInternalServerError, "Could not start authentication. Please try again.")
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback handles the provider's redirect back after consent.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		// The provider's description is not echoed back to the browser.
		logging.Warn("OAuth", "Callback for %s received error: %s - %s", provider, errParam, q.Get("error_description"))
		renderErrorPage(w, http.StatusBadRequest, "Authentication was denied or failed at the provider.")
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		renderErrorPage(w, http.StatusBadRequest, "Invalid callback: missing required parameters.")
		return
	}

	res, err := h.flow.Complete(r.Context(), provider, code, state)
	if err != nil {
		var te *TokenExchangeError
		switch {
		case errors.Is(err, ErrUnknownProvider):
			renderErrorPage(w, http.StatusNotFound, "Unknown login provider.")
		case errors.Is(err, ErrStateMismatch):
			renderErrorPage(w, http.StatusBadRequest, "Authentication session expired or invalid. Please try again.")
		case errors.As(err, &te), errors.Is(err, ErrIssuerMismatch):
			renderErrorPage(w, http.StatusBadGateway, "Failed to complete authentication with the provider.")
		default:
			renderErrorPage(w, http.StatusInternalServerError, "Failed to complete authentication. Please try again.")
		}
		return
	}

	if res.Next != "" {
		nextURL, err := h.flow.Begin(r.Context(), res.Next, res.Subject)
		if err != nil {
			logging.Error("OAuth", err, "Failed to chain login from %s to %s", res.Provider, res.Next)
			renderErrorPage(w, http.StatusInternalServerError, "Signed in, but could not start the next authorization step.")
			return
		}
		http.Redirect(w, r, nextURL, http.StatusFound)
		return
	}

	v := url.Values{"user": {res.Subject}, "provider": {res.Provider}}
	http.Redirect(w, r, h.successPath+"?"+v.Encode(), http.StatusFound)
}

// HandleSuccess renders the post-login confirmation.
func (h *Handler) HandleSuccess(w http.ResponseWriter, r *http.Request) {
	renderSuccessPage(w, r.URL.Query().Get("user"), r.URL.Query().Get("provider"))
}

// setSecurityHeaders sets recommended security headers for HTML responses.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>%s - agentgate</title>
    <style>
        body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; background: #10131a; color: #e8e8e8;
               display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
        .box { text-align: center; padding: 2.5rem; border: 1px solid #333; border-radius: 12px; max-width: 480px; }
        .accent { color: %s; font-weight: 600; }
        p { color: #a0a0a0; line-height: 1.6; }
    </style>
</head>
<body>
    <div class="box">
        <h1>%s</h1>
        %s
    </div>
</body>
</html>`

func renderSuccessPage(w http.ResponseWriter, user, provider string) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	body := fmt.Sprintf(`<p>Signed in as <span class="accent">%s</span> via %s.</p>
        <p>The agent can now act on your behalf. You can close this window.</p>`,
		html.EscapeString(user), html.EscapeString(provider))
	fmt.Fprintf(w, pageTemplate, "Authentication Successful", "#00d4aa", "Authentication Successful", body)
}

func renderErrorPage(w http.ResponseWriter, status int, message string) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	body := fmt.Sprintf(`<p class="accent">%s</p>`, html.EscapeString(message))
	fmt.Fprintf(w, pageTemplate, "Authentication Failed", "#ff6b6b", "Authentication Failed", body)
}
