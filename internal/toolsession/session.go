package toolsession

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

// State is the lifecycle state of a Session.
type State string

const (
	StateClosed  State = "closed"
	StateOpening State = "opening"
	StateReady   State = "ready"
	StateInCall  State = "in_call"
	StateClosing State = "closing"
)

// Session is one live channel to a tool provider. It is owned by a single
// request and performs at most one call at a time.
type Session struct {
	subject string
	service string

	mu     sync.Mutex
	state  State
	client client.MCPClient
	tools  map[string]mcp.Tool
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Service returns the service the session was opened for.
func (s *Session) Service() string {
	return s.service
}

// acquire moves Ready to InCall.
func (s *Session) acquire() (client.MCPClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return nil, fmt.Errorf("%w: session is %s", ErrNotReady, s.state)
	}
	s.state = StateInCall
	return s.client, nil
}

// release returns InCall to Ready unless the session was closed meanwhile.
func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInCall {
		s.state = StateReady
	}
}

// ListTools discovers the provider's tool catalog.
func (s *Session) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	c, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer s.release()

	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	catalog := make(map[string]mcp.Tool, len(res.Tools))
	for _, t := range res.Tools {
		catalog[t.Name] = t
	}
	s.mu.Lock()
	s.tools = catalog
	s.mu.Unlock()

	logging.Debug("ToolSession", "Discovered %d tools from %s", len(res.Tools), s.service)
	return res.Tools, nil
}

// CallTool invokes a tool. Arguments are checked against the schema from
// the last ListTools before anything is sent. The session stays Ready after
// a failed call.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	c, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer s.release()

	s.mu.Lock()
	tool, known := s.tools[name]
	catalogLoaded := s.tools != nil
	s.mu.Unlock()

	if catalogLoaded && !known {
		return nil, &ToolInvocationError{Tool: name, Detail: "tool not offered by provider"}
	}
	if known {
		if err := ValidateArguments(tool, args); err != nil {
			return nil, &ToolInvocationError{Tool: name, Detail: err.Error()}
		}
	}

	res, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, &ToolInvocationError{Tool: name, Err: err}
	}
	if res.IsError {
		return res, &ToolInvocationError{Tool: name, Detail: ResultText(res)}
	}
	return res, nil
}

// Close terminates the session and its process. It is safe to call more
// than once and from a deferred statement after cancellation.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateClosing {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosing
	c := s.client
	s.client = nil
	s.mu.Unlock()

	var err error
	if c != nil {
		err = c.Close()
	}

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	logging.Debug("ToolSession", "Tool session closed: service=%s subject=%s", s.service, s.subject)
	return err
}
