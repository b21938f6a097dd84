package server

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/0xchamin/agent-security-and-identity/internal/audit"
	"github.com/0xchamin/agent-security-and-identity/internal/toolsession"
	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

// QueryResponse is the body returned by POST /query.
type QueryResponse struct {
	Result   string       `json:"result,omitempty"`
	Status   audit.Status `json:"status,omitempty"`
	ToolName string       `json:"tool_name,omitempty"`
	AuditID  string       `json:"audit_id,omitempty"`
	Error    string       `json:"error,omitempty"`
	LoginURL string       `json:"login_url,omitempty"`
}

// TokenStatus is the body returned by GET /token/status.
type TokenStatus struct {
	User         string   `json:"user"`
	Service      string   `json:"service"`
	HasToken     bool     `json:"has_token"`
	TokenPreview string   `json:"token_preview,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>agentgate</title></head>
<body>
<h1>agentgate</h1>
<p>Sign in to let the agent act on your behalf.</p>
<ul>
{{- range .}}
<li><a href="/login/{{.}}">Sign in with {{.}}</a></li>
{{- else}}
<li>No login providers are configured.</li>
{{- end}}
</ul>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if err := indexTemplate.Execute(w, s.flow.Providers()); err != nil {
		logging.Error("HTTP", err, "Failed to render index page")
	}
}

func (s *Server) handleTokenStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := TokenStatus{User: s.subject(q.Get("user")), Service: q.Get("service")}
	if status.Service == "" {
		status.Service = s.dispatcher.Service()
	}

	rec, ok, err := s.creds.Get(r.Context(), status.User, status.Service)
	if err != nil {
		logging.Error("HTTP", err, "Failed to read credential for %s", status.User)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "credential store unavailable"})
		return
	}
	if ok {
		status.HasToken = true
		status.TokenPreview = rec.Preview()
		status.Scopes = rec.Scopes
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, QueryResponse{Error: "request body must be JSON with a query field"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, QueryResponse{Error: "query is required"})
		return
	}
	subject := s.subject(req.UserID)

	out, err := s.dispatcher.Handle(r.Context(), subject, req.Query)
	if err != nil {
		resp := QueryResponse{Error: err.Error()}
		if out != nil {
			resp.Status, resp.ToolName, resp.AuditID = out.Status, out.ToolName, out.AuditID
		}
		status := http.StatusBadGateway
		if errors.Is(err, toolsession.ErrNoCredential) {
			status = http.StatusUnauthorized
			resp.Error = "no credential for " + s.dispatcher.Service() + "; sign in first"
			if provider, ok := s.flow.ProviderForService(s.dispatcher.Service()); ok {
				resp.LoginURL = "/login/" + url.PathEscape(provider) + "?" + url.Values{"user": {subject}}.Encode()
			}
		}
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Result:   out.Message(),
		Status:   out.Status,
		ToolName: out.ToolName,
		AuditID:  out.AuditID,
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := audit.DefaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	var (
		entries []audit.Entry
		err     error
	)
	if user := q.Get("user"); user != "" {
		entries, err = s.sink.ForUser(r.Context(), user, limit)
	} else {
		entries, err = s.sink.Recent(r.Context(), limit)
	}
	if err != nil {
		logging.Error("HTTP", err, "Failed to read audit log")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "audit log unavailable"})
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("HTTP", "Failed to write response: %v", err)
	}
}
