package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SelectsBackend(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, c)

	c, err = New(Config{Provider: ProviderOpenAI, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, c)

	_, err = New(Config{Provider: ProviderOpenAI})
	assert.Error(t, err, "api key is required")

	_, err = New(Config{Provider: "palm"})
	assert.Error(t, err)
}

func TestCompleterFunc(t *testing.T) {
	var c Completer = CompleterFunc(func(_ context.Context, p string) (string, error) {
		return "echo: " + p, nil
	})
	out, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)
}

func TestOpenAI_Complete(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "test-model", req.Model)
		if len(req.Messages) > 0 {
			gotPrompt = req.Messages[0].Content
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"test-model",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"tool_name\":\"none\",\"arguments\":{}}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAI(Config{APIKey: "sk-test", Model: "test-model", BaseURL: srv.URL + "/v1"}, srv.Client())
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "pick a tool")
	require.NoError(t, err)
	assert.Equal(t, `{"tool_name":"none","arguments":{}}`, out)
	assert.Equal(t, "pick a tool", gotPrompt)
}

func TestOpenAI_CompleteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAI(Config{APIKey: "sk-bad", BaseURL: srv.URL + "/v1"}, srv.Client())
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "x")
	assert.Error(t, err)
}

func TestOllama_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"qwen2.5:7b","created_at":"2026-01-01T00:00:00Z",` +
			`"message":{"role":"assistant","content":"{\"tool_name\":\"get_me\",\"arguments\":{}}"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	c, err := NewOllama(Config{BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "who am i")
	require.NoError(t, err)
	assert.Contains(t, out, `"tool_name":"get_me"`)
}

func TestOllama_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := NewOllama(Config{BaseURL: srv.URL}, http.DefaultClient)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "x")
	assert.Error(t, err)
}
