package config

import (
	"path/filepath"
	"time"

	"github.com/0xchamin/agent-security-and-identity/internal/audit"
	"github.com/0xchamin/agent-security-and-identity/internal/dispatch"
	"github.com/0xchamin/agent-security-and-identity/internal/llm"
	"github.com/0xchamin/agent-security-and-identity/internal/oauth"
	"github.com/0xchamin/agent-security-and-identity/internal/toolsession"
)

const (
	DefaultHost              = "localhost"
	DefaultPort              = 8000
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second

	DefaultAuditFileName = "audit.json"
)

// GetDefaultConfig returns the configuration used when no file exists.
// Paths are placed inside configDir.
func GetDefaultConfig(configDir string) Config {
	cfg := Config{}
	applyDefaults(&cfg, configDir)
	return cfg
}

// applyDefaults fills every unset field.
func applyDefaults(cfg *Config, configDir string) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Credentials.Path == "" {
		cfg.Credentials.Path = filepath.Join(configDir, "credentials.json")
	}

	if cfg.Sessions.Driver == "" {
		cfg.Sessions.Driver = SessionDriverMemory
	}
	if cfg.Sessions.TTL == 0 {
		cfg.Sessions.TTL = oauth.DefaultSessionTTL
	}

	if len(cfg.ToolServers) == 0 {
		cfg.ToolServers = []toolsession.ServerDefinition{toolsession.GitHubServer()}
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = llm.ProviderOllama
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = llm.DefaultTimeout
	}

	if cfg.Audit.Driver == "" {
		cfg.Audit.Driver = audit.DriverFile
	}
	if cfg.Audit.Path == "" && cfg.Audit.Driver == audit.DriverFile {
		cfg.Audit.Path = filepath.Join(configDir, DefaultAuditFileName)
	}
	if cfg.Audit.PreviewLength == 0 {
		cfg.Audit.PreviewLength = audit.DefaultPreviewLength
	}

	if cfg.Dispatch.Service == "" {
		cfg.Dispatch.Service = dispatch.DefaultService
	}
}
