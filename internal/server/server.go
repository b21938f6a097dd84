package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/0xchamin/agent-security-and-identity/internal/audit"
	"github.com/0xchamin/agent-security-and-identity/internal/credentials"
	"github.com/0xchamin/agent-security-and-identity/internal/dispatch"
	"github.com/0xchamin/agent-security-and-identity/internal/oauth"
	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

// maxQueryBody bounds POST /query request bodies.
const maxQueryBody = 64 << 10

// Dispatcher runs agent requests.
type Dispatcher interface {
	Handle(ctx context.Context, subject, query string) (*dispatch.Outcome, error)
	Service() string
}

// Server holds the dependencies of the HTTP surface.
type Server struct {
	flow           *oauth.Flow
	creds          credentials.Store
	dispatcher     Dispatcher
	sink           audit.Sink
	defaultSubject string
}

// New creates a Server.
func New(flow *oauth.Flow, creds credentials.Store, dispatcher Dispatcher, sink audit.Sink) *Server {
	return &Server{
		flow:           flow,
		creds:          creds,
		dispatcher:     dispatcher,
		sink:           sink,
		defaultSubject: oauth.DefaultSubject,
	}
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	oauth.NewHandler(s.flow).Register(r)
	r.HandleFunc("/token/status", s.handleTokenStatus).Methods(http.MethodGet)
	r.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	r.HandleFunc("/audit", s.handleAudit).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Use(logRequests)
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.Debug("HTTP", "%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// subject returns the user named by the request or the default subject.
func (s *Server) subject(name string) string {
	if name == "" {
		return s.defaultSubject
	}
	return name
}
