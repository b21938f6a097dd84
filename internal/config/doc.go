// Package config provides configuration management for agentgate.
//
// Configuration is read from a single YAML file, agentgate.yaml. The default
// location is ~/.config/agentgate/agentgate.yaml; commands accept --config to
// point elsewhere. A missing file is not an error: every section has a
// default suitable for a local run against GitHub and Ollama.
//
// # Secrets
//
// Before the file is parsed, a .env file next to it (and one in the working
// directory) is loaded into the process environment, and ${VAR} references
// in the YAML are expanded. Client secrets and API keys therefore never need
// to be written into agentgate.yaml itself:
//
//	providers:
//	  - name: github
//	    clientId: ${GITHUB_CLIENT_ID}
//	    clientSecret: ${GITHUB_CLIENT_SECRET}
//	    authUrl: https://github.com/login/oauth/authorize
//	    tokenUrl: https://github.com/login/oauth/access_token
//	    userInfoUrl: https://api.github.com/user
//	    redirectUrl: http://localhost:8000/callback/github
//	    scopes: [repo, read:user]
//
// # Sections
//
//   - server: listen address and timeouts of the HTTP surface
//   - logging: level, format and optional rotating log file
//   - providers: OAuth providers (see oauth.ProviderConfig)
//   - credentials: location of the credential snapshot
//   - sessions: pending-login table driver (memory or redis) and TTL
//   - toolServers: MCP tool processes per service
//   - llm: language model backend used for tool selection
//   - audit: audit sink driver and preview length
//   - dispatch: service the agent acts against
package config
