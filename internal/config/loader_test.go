package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xchamin/agent-security-and-identity/internal/audit"
	"github.com/0xchamin/agent-security-and-identity/internal/oauth"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, configFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, configFileName))
	require.NoError(t, err)

	assert.Equal(t, GetDefaultConfig(dir), cfg)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "credentials.json"), cfg.Credentials.Path)
	assert.Equal(t, filepath.Join(dir, DefaultAuditFileName), cfg.Audit.Path)
	assert.Equal(t, oauth.DefaultSessionTTL, cfg.Sessions.TTL)
	assert.Equal(t, "github", cfg.Dispatch.Service)
	require.Len(t, cfg.ToolServers, 1)
	assert.Equal(t, "GITHUB_PERSONAL_ACCESS_TOKEN", cfg.ToolServers[0].TokenEnv)
}

func TestLoad_DefaultPathUsesHomeDir(t *testing.T) {
	home := t.TempDir()
	original := osUserHomeDir
	defer func() { osUserHomeDir = original }()
	osUserHomeDir = func() (string, error) { return home, nil }

	path, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "agentgate", "agentgate.yaml"), path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "agentgate", "credentials.json"), cfg.Credentials.Path)
}

func TestLoad_FullFileWithEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENTGATE_TEST_SECRET", "s3cret")
	require.NoError(t, os.WriteFile(filepath.Join(dir, envFileName), []byte("AGENTGATE_TEST_CLIENT_ID=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("AGENTGATE_TEST_CLIENT_ID") })

	path := writeConfig(t, dir, `
server:
  port: 9000
logging:
  level: debug
  format: json
providers:
  - name: keycloak
    clientId: agent
    issuer: http://localhost:8080/realms/demo
    redirectUrl: http://localhost:9000/callback/keycloak
    next: github
  - name: github
    clientId: ${AGENTGATE_TEST_CLIENT_ID}
    clientSecret: ${AGENTGATE_TEST_SECRET}
    authUrl: https://github.com/login/oauth/authorize
    tokenUrl: https://github.com/login/oauth/access_token
    redirectUrl: http://localhost:9000/callback/github
    scopes: [repo, read:user]
sessions:
  driver: redis
  ttl: 5m
  redis:
    addr: localhost:6379
audit:
  driver: sqlite
  path: file:audit.db
  previewLength: 80
llm:
  provider: openai
  model: gpt-4o-mini
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, "json", cfg.Logging.Format)
	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "github", cfg.Providers[0].Next)
	assert.Equal(t, "from-dotenv", cfg.Providers[1].ClientID)
	assert.Equal(t, "s3cret", cfg.Providers[1].ClientSecret)
	assert.Equal(t, []string{"repo", "read:user"}, cfg.Providers[1].Scopes)
	assert.Equal(t, SessionDriverRedis, cfg.Sessions.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, "localhost:6379", cfg.Sessions.Redis.Addr)
	assert.Equal(t, audit.DriverSQLite, cfg.Audit.Driver)
	assert.Equal(t, 80, cfg.Audit.PreviewLength)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "server: [unterminated")

	_, err := Load(path)
	var ce *ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrorTypeParse, ce.ErrorType)
	assert.Equal(t, path, ce.FilePath)
}

func TestLoad_InvalidConfiguration(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
sessions:
  driver: redis
audit:
  driver: postgres
`)

	_, err := Load(path)
	var ce *ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrorTypeValidation, ce.ErrorType)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.Contains(t, fields, "sessions.redis.addr")
	assert.Contains(t, fields, "audit.driver")
}
