package toolsession

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ValidateArguments checks args against the tool's input schema: every
// required parameter must be present, and when the schema lists its
// properties no other parameter may appear.
func ValidateArguments(tool mcp.Tool, args map[string]any) error {
	var missing []string
	for _, name := range tool.InputSchema.Required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}

	var unknown []string
	if len(tool.InputSchema.Properties) > 0 {
		for name := range args {
			if _, ok := tool.InputSchema.Properties[name]; !ok {
				unknown = append(unknown, name)
			}
		}
	}

	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required parameter(s): "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		parts = append(parts, "unknown parameter(s): "+strings.Join(unknown, ", "))
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}

// ResultText concatenates the text content of a tool result.
func ResultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	var parts []string
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
