package toolsession

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/0xchamin/agent-security-and-identity/internal/credentials"
	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

// DefaultInitTimeout covers process start-up plus the protocol handshake.
const DefaultInitTimeout = 30 * time.Second

// ClientFactory starts a tool provider for def with the given environment
// and returns an unconnected MCP client for it.
type ClientFactory func(ctx context.Context, def ServerDefinition, env []string) (client.MCPClient, error)

// StdioClientFactory launches def.Command as a subprocess speaking MCP over
// stdin/stdout.
func StdioClientFactory(_ context.Context, def ServerDefinition, env []string) (client.MCPClient, error) {
	c, err := client.NewStdioMCPClient(def.Command, env, def.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", def.Command, err)
	}
	return c, nil
}

// Manager opens tool sessions for users from their stored credentials.
type Manager struct {
	creds       credentials.Store
	mu          sync.RWMutex
	servers     map[string]ServerDefinition
	factory     ClientFactory
	initTimeout time.Duration
	clientInfo  mcp.Implementation
}

// Option configures a Manager.
type Option func(*Manager)

// WithClientFactory replaces the process launcher.
func WithClientFactory(f ClientFactory) Option {
	return func(m *Manager) {
		m.factory = f
	}
}

// WithInitTimeout sets the handshake timeout used when the caller's
// context has no deadline.
func WithInitTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.initTimeout = d
	}
}

// WithClientInfo sets the implementation info sent during the handshake.
func WithClientInfo(name, version string) Option {
	return func(m *Manager) {
		m.clientInfo = mcp.Implementation{Name: name, Version: version}
	}
}

// NewManager creates a Manager for the given server definitions.
func NewManager(creds credentials.Store, defs []ServerDefinition, opts ...Option) (*Manager, error) {
	m := &Manager{
		creds:       creds,
		servers:     make(map[string]ServerDefinition, len(defs)),
		factory:     StdioClientFactory,
		initTimeout: DefaultInitTimeout,
		clientInfo:  mcp.Implementation{Name: "agentgate", Version: "dev"},
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		m.servers[d.Service] = d
	}
	return m, nil
}

// Services lists the services with a tool server definition.
func (m *Manager) Services() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.servers))
	for s := range m.servers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open starts a tool session for subject against service. The credential
// is read first; without one no process is started.
func (m *Manager) Open(ctx context.Context, subject, service string) (*Session, error) {
	rec, found, err := m.creds.Get(ctx, subject, service)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}
	if !found {
		logging.Info("ToolSession", "No %s credential for %s, not starting tool server", service, subject)
		return nil, fmt.Errorf("%w: %s has not authorized %s", ErrNoCredential, subject, service)
	}

	m.mu.RLock()
	def, ok := m.servers[service]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}

	s := &Session{subject: subject, service: service, state: StateOpening}
	logging.Debug("ToolSession", "Opening %s session for %s: %s %v", service, subject, def.Command, def.Args)

	c, err := m.factory(ctx, def, def.environment(rec.AccessToken))
	if err != nil {
		s.state = StateClosed
		return nil, &SessionInitError{Service: service, Err: err}
	}

	initCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && m.initTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, m.initTimeout)
		defer cancel()
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = m.clientInfo
	req.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err := c.Initialize(initCtx, req); err != nil {
		if closeErr := c.Close(); closeErr != nil {
			logging.Debug("ToolSession", "Error closing failed %s client: %v", service, closeErr)
		}
		s.state = StateClosed
		logging.Error("ToolSession", err, "Handshake with %s tool server failed", service)
		return nil, &SessionInitError{Service: service, Err: err}
	}

	s.client = c
	s.state = StateReady
	logging.Info("ToolSession", "Tool session ready: service=%s subject=%s", service, subject)
	return s, nil
}
