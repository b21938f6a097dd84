package config

import (
	"time"

	"github.com/0xchamin/agent-security-and-identity/internal/audit"
	"github.com/0xchamin/agent-security-and-identity/internal/llm"
	"github.com/0xchamin/agent-security-and-identity/internal/oauth"
	"github.com/0xchamin/agent-security-and-identity/internal/toolsession"
)

// Config is the top-level configuration structure for agentgate.
type Config struct {
	Server      ServerConfig                   `yaml:"server"`
	Logging     LoggingConfig                  `yaml:"logging"`
	Providers   []oauth.ProviderConfig         `yaml:"providers,omitempty"`
	Credentials CredentialsConfig              `yaml:"credentials"`
	Sessions    SessionsConfig                 `yaml:"sessions"`
	ToolServers []toolsession.ServerDefinition `yaml:"toolServers,omitempty"`
	LLM         llm.Config                     `yaml:"llm"`
	Audit       audit.Config                   `yaml:"audit"`
	Dispatch    DispatchConfig                 `yaml:"dispatch"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Host              string        `yaml:"host,omitempty"`              // Host to bind to (default: localhost)
	Port              int           `yaml:"port,omitempty"`              // Port to listen on (default: 8000)
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout,omitempty"` // default: 10s
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout,omitempty"`   // default: 15s
}

// LoggingConfig defines log level, format and the optional log file.
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`
	Format     string `yaml:"format,omitempty"` // text or json
	File       string `yaml:"file,omitempty"`   // empty logs to stderr
	MaxSizeMB  int    `yaml:"maxSizeMB,omitempty"`
	MaxBackups int    `yaml:"maxBackups,omitempty"`
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// CredentialsConfig locates the credential snapshot.
type CredentialsConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Session table drivers.
const (
	SessionDriverMemory = "memory"
	SessionDriverRedis  = "redis"
)

// SessionsConfig configures the pending-login table.
type SessionsConfig struct {
	Driver string            `yaml:"driver,omitempty"`
	TTL    time.Duration     `yaml:"ttl,omitempty"`
	Redis  oauth.RedisConfig `yaml:"redis,omitempty"`
}

// DispatchConfig configures the agent loop.
type DispatchConfig struct {
	// Service is the credential service the agent acts against.
	Service string `yaml:"service,omitempty"`
}
