package config

import (
	"fmt"
	"strings"

	"github.com/0xchamin/agent-security-and-identity/internal/audit"
	"github.com/0xchamin/agent-security-and-identity/internal/llm"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{Field: field, Value: val, Message: message})
}

// validateOneOf records an error unless value is one of allowed.
func (ve *ValidationErrors) validateOneOf(field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	ve.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")), value)
}

// Validate checks the configuration after defaults have been applied.
func (c Config) Validate() error {
	var errs ValidationErrors

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs.Add("server.port", "must be between 0 and 65535", c.Server.Port)
	}
	errs.validateOneOf("logging.format", c.Logging.Format, "text", "json")

	names := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		field := fmt.Sprintf("providers[%d]", i)
		if err := p.Validate(); err != nil {
			errs.Add(field, err.Error())
		}
		if names[p.Name] {
			errs.Add(field+".name", "is duplicated", p.Name)
		}
		names[p.Name] = true
	}
	for i, p := range c.Providers {
		if p.Next != "" && !names[p.Next] {
			errs.Add(fmt.Sprintf("providers[%d].next", i), "names an unknown provider", p.Next)
		}
	}

	errs.validateOneOf("sessions.driver", c.Sessions.Driver, SessionDriverMemory, SessionDriverRedis)
	if c.Sessions.Driver == SessionDriverRedis && c.Sessions.Redis.Addr == "" {
		errs.Add("sessions.redis.addr", "is required for the redis driver")
	}
	if c.Sessions.TTL < 0 {
		errs.Add("sessions.ttl", "must not be negative", c.Sessions.TTL)
	}

	services := make(map[string]bool, len(c.ToolServers))
	for i, d := range c.ToolServers {
		if err := d.Validate(); err != nil {
			errs.Add(fmt.Sprintf("toolServers[%d]", i), err.Error())
		}
		services[d.Service] = true
	}
	if !services[c.Dispatch.Service] {
		errs.Add("dispatch.service", "has no tool server", c.Dispatch.Service)
	}

	errs.validateOneOf("llm.provider", c.LLM.Provider, llm.ProviderOllama, llm.ProviderOpenAI)

	errs.validateOneOf("audit.driver", c.Audit.Driver, audit.DriverFile, audit.DriverSQLite, audit.DriverMemory)
	if c.Audit.Driver != audit.DriverMemory && c.Audit.Path == "" {
		errs.Add("audit.path", "is required for the "+c.Audit.Driver+" driver")
	}
	if c.Audit.PreviewLength < 0 {
		errs.Add("audit.previewLength", "must not be negative", c.Audit.PreviewLength)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
