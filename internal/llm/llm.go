// Package llm is the boundary to the language model that picks tools.
// Backends take a single prompt and return the model's raw text.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DefaultOllamaModel = "qwen2.5:7b"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultTimeout     = 60 * time.Second
)

// Completer produces a completion for a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Config selects and configures a backend.
type Config struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model,omitempty"`
	BaseURL     string        `yaml:"baseUrl,omitempty"`
	APIKey      string        `yaml:"apiKey,omitempty"`
	Temperature float64       `yaml:"temperature,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// New builds the configured backend.
func New(cfg Config) (Completer, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	switch cfg.Provider {
	case "", ProviderOllama:
		return NewOllama(cfg, httpClient)
	case ProviderOpenAI:
		return NewOpenAI(cfg, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
