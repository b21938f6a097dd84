// Package selector asks a language model to map a natural-language request
// onto one tool from a discovered catalog.
//
// Model output is untrusted text. Anything that is not a well-formed JSON
// object naming a catalog tool is coerced to the "none" selection rather
// than reported as an error.
package selector

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"

	"github.com/0xchamin/agent-security-and-identity/internal/llm"
	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

// NoTool is the tool name meaning no tool applies.
const NoTool = "none"

// Selection is the selector's decision.
type Selection struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// None returns the no-tool selection.
func None() Selection {
	return Selection{ToolName: NoTool, Arguments: map[string]any{}}
}

// IsNone reports whether no tool was selected.
func (s Selection) IsNone() bool {
	return s.ToolName == NoTool
}

const promptTemplate = `You are a tool selector for an assistant that acts on a user's behalf.
Pick the single best tool for the user's request and fill in its arguments.

Available tools:
{{- range .Tools }}
- {{ .Name }} (params: {{ keys .InputSchema.Properties | sortAlpha | join ", " | default "none" }}): {{ .Description | default "no description" | trunc 300 }}
{{- end }}

User request: {{ .Query }}

Respond with ONLY a JSON object of the form:
{"tool_name": "<tool name>", "arguments": {"<param>": <value>}}
If no tool fits the request, respond with:
{"tool_name": "{{ .None }}", "arguments": {}}`

// Selector chooses tools with a language model.
type Selector struct {
	model  llm.Completer
	prompt *template.Template
}

// New creates a Selector backed by model.
func New(model llm.Completer) *Selector {
	return &Selector{
		model:  model,
		prompt: template.Must(template.New("select").Funcs(sprig.TxtFuncMap()).Parse(promptTemplate)),
	}
}

// Prompt renders the selection prompt for query over tools.
func (s *Selector) Prompt(query string, tools []mcp.Tool) (string, error) {
	var buf bytes.Buffer
	err := s.prompt.Execute(&buf, struct {
		Query string
		Tools []mcp.Tool
		None  string
	}{Query: query, Tools: tools, None: NoTool})
	if err != nil {
		return "", fmt.Errorf("failed to render selection prompt: %w", err)
	}
	return buf.String(), nil
}

// Select returns the tool to run for query. An empty catalog yields None
// without consulting the model. Errors are returned only when the model
// itself cannot be reached.
func (s *Selector) Select(ctx context.Context, query string, tools []mcp.Tool) (Selection, error) {
	if len(tools) == 0 {
		return None(), nil
	}

	prompt, err := s.Prompt(query, tools)
	if err != nil {
		return None(), err
	}

	out, err := s.model.Complete(ctx, prompt)
	if err != nil {
		return None(), err
	}

	sel := Parse(out, tools)
	logging.Debug("Selector", "Selected tool %q for query", sel.ToolName)
	return sel, nil
}

// Parse extracts a Selection from raw model output, validating the tool
// name against tools.
func Parse(output string, tools []mcp.Tool) Selection {
	obj, ok := firstJSONObject(output)
	if !ok {
		logging.Debug("Selector", "No JSON object in model output")
		return None()
	}

	name := gjson.Get(obj, "tool_name")
	if name.Type != gjson.String || name.Str == NoTool {
		return None()
	}
	if !inCatalog(name.Str, tools) {
		logging.Warn("Selector", "Model chose %q, which is not in the catalog", name.Str)
		return None()
	}

	args := map[string]any{}
	if a := gjson.Get(obj, "arguments"); a.Exists() && a.Type != gjson.Null {
		m, isMap := a.Value().(map[string]any)
		if !a.IsObject() || !isMap {
			return None()
		}
		args = m
	}
	return Selection{ToolName: name.Str, Arguments: args}
}

func inCatalog(name string, tools []mcp.Tool) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// firstJSONObject returns the first balanced, well-formed JSON object in s.
// Each byte is scanned once. When an object is not valid JSON the objects
// nested in it are tried in order of their opening brace, and an unclosed
// brace ends the search.
func firstJSONObject(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		pairs, end := scanObject(s, start)
		sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
		for _, p := range pairs {
			if candidate := s[p[0] : p[1]+1]; gjson.Valid(candidate) {
				return candidate, true
			}
		}
		if end < 0 {
			return "", false
		}
		start = end
	}
	return "", false
}

// scanObject walks from the brace at start to the one closing it, skipping
// braces inside JSON strings. It returns every brace pair closed on the way
// and the closing index, or -1 when start is never closed.
func scanObject(s string, start int) (pairs [][2]int, end int) {
	var open []int
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			open = append(open, i)
		case c == '}':
			o := open[len(open)-1]
			open = open[:len(open)-1]
			pairs = append(pairs, [2]int{o, i})
			if len(open) == 0 {
				return pairs, i
			}
		}
	}
	return pairs, -1
}
