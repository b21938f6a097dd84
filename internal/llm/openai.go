package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

// OpenAI completes prompts with any OpenAI-compatible chat endpoint.
type OpenAI struct {
	model       string
	temperature float32
	client      *openai.Client
}

// NewOpenAI creates an OpenAI-compatible backend.
func NewOpenAI(cfg Config, httpClient *http.Client) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = httpClient

	return &OpenAI{
		model:       model,
		temperature: float32(cfg.Temperature),
		client:      openai.NewClientWithConfig(clientConfig),
	}, nil
}

func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	logging.Debug("LLM", "Sending %d character prompt to openai model %s", len(prompt), o.model)
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
