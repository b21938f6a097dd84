package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/0xchamin/agent-security-and-identity/internal/audit"
	strutil "github.com/0xchamin/agent-security-and-identity/pkg/strings"
)

var (
	auditUser   string
	auditLimit  int
	auditOutput string
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent agent requests from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer application.Close()

			entries, err := readAudit(cmd.Context(), application.Services().Audit, auditUser, auditLimit)
			if err != nil {
				return err
			}
			return renderAudit(cmd.OutOrStdout(), entries, auditOutput)
		},
	}
	cmd.Flags().StringVarP(&auditUser, "user", "u", "", "Only show entries for this user")
	cmd.Flags().IntVarP(&auditLimit, "limit", "n", audit.DefaultLimit, "Maximum number of entries")
	cmd.Flags().StringVarP(&auditOutput, "output", "o", "table", "Output format (table|json)")
	return cmd
}

func readAudit(ctx context.Context, sink audit.Sink, user string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("--limit must be positive")
	}
	if user != "" {
		return sink.ForUser(ctx, user, limit)
	}
	return sink.Recent(ctx, limit)
}

func renderAudit(out io.Writer, entries []audit.Entry, format string) error {
	switch format {
	case "json":
		if entries == nil {
			entries = []audit.Entry{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "table":
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	if len(entries) == 0 {
		fmt.Fprintf(out, "%s\n", text.FgYellow.Sprint("No audit entries found"))
		return nil
	}

	t := newTable(out)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("TIME"),
		text.FgHiCyan.Sprint("USER"),
		text.FgHiCyan.Sprint("QUERY"),
		text.FgHiCyan.Sprint("TOOL"),
		text.FgHiCyan.Sprint("STATUS"),
		text.FgHiCyan.Sprint("RESULT"),
	})
	for _, e := range entries {
		detail := e.ResultPreview
		if e.Error != "" {
			detail = e.Error
		}
		t.AppendRow(table.Row{
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.UserID,
			strutil.OneLine(e.Query, 40),
			e.ToolName,
			statusColor(e.Status).Sprint(string(e.Status)),
			strutil.OneLine(detail, 60),
		})
	}
	t.Render()
	return nil
}

func statusColor(s audit.Status) text.Color {
	switch s {
	case audit.StatusSuccess:
		return text.FgGreen
	case audit.StatusError:
		return text.FgRed
	default:
		return text.FgYellow
	}
}

// newTable creates a new table with standard styling
func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}
