package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

// Ollama completes prompts with a local Ollama model.
type Ollama struct {
	model       string
	temperature float64
	llm         *ollama.LLM
}

// NewOllama creates an Ollama backend. An empty BaseURL uses the Ollama
// default (http://localhost:11434 or $OLLAMA_HOST).
func NewOllama(cfg Config, httpClient *http.Client) (*Ollama, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	opts := []ollama.Option{ollama.WithModel(model), ollama.WithHTTPClient(httpClient)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	l, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &Ollama{model: model, temperature: cfg.Temperature, llm: l}, nil
}

func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	logging.Debug("LLM", "Sending %d character prompt to ollama model %s", len(prompt), o.model)
	out, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt, llms.WithTemperature(o.temperature))
	if err != nil {
		return "", fmt.Errorf("ollama completion failed: %w", err)
	}
	return out, nil
}
