package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/chzyer/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xchamin/agent-security-and-identity/internal/audit"
	"github.com/0xchamin/agent-security-and-identity/internal/credentials"
	"github.com/0xchamin/agent-security-and-identity/internal/dispatch"
	"github.com/0xchamin/agent-security-and-identity/internal/toolsession"
)

type stubHandler struct {
	queries []string
	outcome func(query string) (*dispatch.Outcome, error)
}

func (s *stubHandler) Handle(_ context.Context, _, query string) (*dispatch.Outcome, error) {
	s.queries = append(s.queries, query)
	return s.outcome(query)
}

func (s *stubHandler) Service() string { return "github" }

func TestRunQuery(t *testing.T) {
	h := &stubHandler{outcome: func(string) (*dispatch.Outcome, error) {
		return &dispatch.Outcome{Status: audit.StatusSuccess, ToolName: "get_me", Result: `{"login":"octocat"}`}, nil
	}}
	var buf bytes.Buffer

	require.NoError(t, runQuery(context.Background(), &buf, h, "acme", "who am i", false))
	assert.Contains(t, buf.String(), "get_me")
	assert.Contains(t, buf.String(), "octocat")
}

func TestRunQuery_NoTool(t *testing.T) {
	h := &stubHandler{outcome: func(string) (*dispatch.Outcome, error) {
		return &dispatch.Outcome{Status: audit.StatusNoTool, ToolName: "none"}, nil
	}}
	var buf bytes.Buffer

	require.NoError(t, runQuery(context.Background(), &buf, h, "acme", "weather?", false))
	assert.Equal(t, dispatch.NoToolMessage+"\n", buf.String())
}

func TestRunQuery_NoCredential(t *testing.T) {
	h := &stubHandler{outcome: func(string) (*dispatch.Outcome, error) {
		return &dispatch.Outcome{Status: audit.StatusError}, toolsession.ErrNoCredential
	}}
	var buf bytes.Buffer

	err := runQuery(context.Background(), &buf, h, "acme", "who am i", false)
	assert.Equal(t, ExitCodeAuthRequired, getExitCode(err))
	assert.Contains(t, buf.String(), "/login/github?user=acme")
}

type scriptedReader struct {
	lines []string
	errs  []error
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line, err := r.lines[0], r.errs[0]
	r.lines, r.errs = r.lines[1:], r.errs[1:]
	return line, err
}

func TestRunChat(t *testing.T) {
	h := &stubHandler{outcome: func(q string) (*dispatch.Outcome, error) {
		if q == "fail" {
			return nil, errors.New("model unavailable")
		}
		return &dispatch.Outcome{Status: audit.StatusSuccess, ToolName: "get_me", Result: "ok:" + q}, nil
	}}
	in := &scriptedReader{
		lines: []string{"hello", "", "x", "fail", "again", "exit", "never"},
		errs:  []error{nil, nil, readline.ErrInterrupt, nil, nil, nil, nil},
	}
	var buf bytes.Buffer

	require.NoError(t, runChat(context.Background(), in, &buf, h, "acme"))
	assert.Equal(t, []string{"hello", "fail", "again"}, h.queries)
	assert.Contains(t, buf.String(), "ok:hello")
	assert.Contains(t, buf.String(), "model unavailable")
	assert.Contains(t, buf.String(), "Goodbye!")
}

func TestRunChat_EOF(t *testing.T) {
	h := &stubHandler{}
	var buf bytes.Buffer
	require.NoError(t, runChat(context.Background(), &scriptedReader{}, &buf, h, "acme"))
	assert.Empty(t, h.queries)
}

func TestReadAndRenderAudit(t *testing.T) {
	ctx := context.Background()
	sink := audit.NewMemorySink()
	require.NoError(t, sink.Append(ctx, audit.NewEntry("acme", "find mcp repos", "search_repositories",
		map[string]any{"query": "mcp"}, audit.StatusSuccess, "acme/mcp-one", 0)))
	failed := audit.NewEntry("sarah", "file a bug", "create_issue", nil, audit.StatusError, "", 0)
	failed.Error = "tool create_issue failed: forbidden"
	require.NoError(t, sink.Append(ctx, failed))

	entries, err := readAudit(ctx, sink, "", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var buf bytes.Buffer
	require.NoError(t, renderAudit(&buf, entries, "table"))
	out := buf.String()
	assert.Contains(t, out, "search_repositories")
	assert.Contains(t, out, "acme/mcp-one")
	assert.Contains(t, out, "forbidden")

	entries, err = readAudit(ctx, sink, "sarah", 10)
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, renderAudit(&buf, entries, "json"))
	var decoded []audit.Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "sarah", decoded[0].UserID)

	_, err = readAudit(ctx, sink, "", 0)
	assert.Error(t, err)
	assert.Error(t, renderAudit(&buf, entries, "yaml"))

	buf.Reset()
	require.NoError(t, renderAudit(&buf, nil, "table"))
	assert.Contains(t, buf.String(), "No audit entries found")
}

func TestCredentialsListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := credentials.NewMemoryStore()
	require.NoError(t, store.Put(ctx, credentials.Record{
		Subject: "sarah", Service: "github", AccessToken: "gho_abcdefghijklmnop",
		Scopes: []string{"repo"}, IssuedAt: time.Now(),
	}))

	records, err := store.List(ctx, "")
	require.NoError(t, err)
	var buf bytes.Buffer
	renderCredentials(&buf, records)
	assert.Contains(t, buf.String(), "gho_abcdef...")
	assert.NotContains(t, buf.String(), "gho_abcdefghijklmnop")

	buf.Reset()
	require.NoError(t, deleteCredential(ctx, &buf, store, "sarah", "github"))
	assert.Contains(t, buf.String(), "sarah:github")

	_, ok, err := store.Get(ctx, "sarah", "github")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, deleteCredential(ctx, &buf, store, "sarah", "github"))

	buf.Reset()
	renderCredentials(&buf, nil)
	assert.Contains(t, buf.String(), "No credentials stored")
}
