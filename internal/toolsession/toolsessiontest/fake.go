// Package toolsessiontest provides an in-process stand-in for a tool
// provider, for tests that must not spawn subprocesses.
package toolsessiontest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/0xchamin/agent-security-and-identity/internal/toolsession"
)

// NewGitHubServer returns an MCP server exposing a small subset of the
// GitHub tools with canned results.
func NewGitHubServer() *server.MCPServer {
	s := server.NewMCPServer("fake-github", "1.0.0", server.WithToolCapabilities(true))

	s.AddTool(mcp.NewTool("search_repositories",
		mcp.WithDescription("Search for GitHub repositories"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("perPage", mcp.Description("Results per page")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, _ := req.GetArguments()["query"].(string)
		return mcp.NewToolResultText(fmt.Sprintf(`{"total_count":2,"items":[{"full_name":"acme/%s-one"},{"full_name":"acme/%s-two"}]}`, q, q)), nil
	})

	s.AddTool(mcp.NewTool("get_me",
		mcp.WithDescription("Get details of the authenticated user"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(`{"login":"octocat"}`), nil
	})

	s.AddTool(mcp.NewTool("create_issue",
		mcp.WithDescription("Create a new issue in a GitHub repository"),
		mcp.WithString("owner", mcp.Required()),
		mcp.WithString("repo", mcp.Required()),
		mcp.WithString("title", mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("Resource not accessible by integration"), nil
	})

	return s
}

// NewEmptyServer returns an MCP server with no tools.
func NewEmptyServer() *server.MCPServer {
	return server.NewMCPServer("empty", "1.0.0", server.WithToolCapabilities(true))
}

// Recorder captures every launch the factory performs.
type Recorder struct {
	mu       sync.Mutex
	launches [][]string
	clients  []*trackedClient
}

// Launches returns the environment of each launch.
func (r *Recorder) Launches() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.launches...)
}

// Open reports how many launched clients have not been closed.
func (r *Recorder) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.clients {
		if !c.isClosed() {
			n++
		}
	}
	return n
}

// Factory returns a ClientFactory serving every launch from srv.
func (r *Recorder) Factory(srv *server.MCPServer) toolsession.ClientFactory {
	return func(ctx context.Context, def toolsession.ServerDefinition, env []string) (client.MCPClient, error) {
		c, err := client.NewInProcessClient(srv)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			return nil, err
		}
		tc := &trackedClient{MCPClient: c}
		r.mu.Lock()
		r.launches = append(r.launches, env)
		r.clients = append(r.clients, tc)
		r.mu.Unlock()
		return tc, nil
	}
}

// TokenFrom extracts the value of name from a launch environment.
func TokenFrom(env []string, name string) string {
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, name+"="); ok {
			return v
		}
	}
	return ""
}

type trackedClient struct {
	client.MCPClient
	mu     sync.Mutex
	closed bool
}

func (c *trackedClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.MCPClient.Close()
}

func (c *trackedClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
