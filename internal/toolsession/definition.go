package toolsession

import (
	"fmt"
	"sort"

	"github.com/0xchamin/agent-security-and-identity/internal/credentials"
)

// ServerDefinition describes how to launch the tool provider for a service.
type ServerDefinition struct {
	Service string   `yaml:"service"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`

	// TokenEnv is the environment variable that receives the access token.
	TokenEnv string `yaml:"tokenEnv"`

	// Env holds additional static variables for the process.
	Env map[string]string `yaml:"env,omitempty"`
}

// GitHubServer is the stock definition for the GitHub MCP server.
func GitHubServer() ServerDefinition {
	return ServerDefinition{
		Service:  "github",
		Command:  "npx",
		Args:     []string{"-y", "@modelcontextprotocol/server-github"},
		TokenEnv: "GITHUB_PERSONAL_ACCESS_TOKEN",
	}
}

// Validate checks that the definition can be launched.
func (d ServerDefinition) Validate() error {
	if d.Service == "" {
		return fmt.Errorf("tool server definition requires a service")
	}
	if err := credentials.ValidateService(d.Service); err != nil {
		return fmt.Errorf("tool server %q: %w", d.Service, err)
	}
	if d.Command == "" {
		return fmt.Errorf("tool server %q requires a command", d.Service)
	}
	if d.TokenEnv == "" {
		return fmt.Errorf("tool server %q requires tokenEnv", d.Service)
	}
	return nil
}

// environment renders the process environment. The token is the only
// credential passed; static variables cannot override it.
func (d ServerDefinition) environment(token string) []string {
	keys := make([]string, 0, len(d.Env))
	for k := range d.Env {
		if k != d.TokenEnv {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		env = append(env, k+"="+d.Env[k])
	}
	return append(env, d.TokenEnv+"="+token)
}
