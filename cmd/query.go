package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/0xchamin/agent-security-and-identity/internal/audit"
	"github.com/0xchamin/agent-security-and-identity/internal/dispatch"
	"github.com/0xchamin/agent-security-and-identity/internal/oauth"
	"github.com/0xchamin/agent-security-and-identity/internal/toolsession"
)

var queryUser string

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <request>",
		Short: "Run a single natural-language request as a user",
		Long: `Runs one request through the agent: the tool server is started with the
user's stored credential, a tool is chosen by the language model and
invoked, and the outcome is written to the audit log.

Exits with code 2 when the user has not signed in to the service yet.`,
		Example: `  agentgate query --user acme "Find repositories about MCP"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer application.Close()

			return runQuery(cmd.Context(), cmd.OutOrStdout(), application.Services().Dispatcher, queryUser, args[0], !quiet)
		},
	}
	cmd.Flags().StringVarP(&queryUser, "user", "u", oauth.DefaultSubject, "User the agent acts for")
	return cmd
}

type requestHandler interface {
	Handle(ctx context.Context, subject, query string) (*dispatch.Outcome, error)
	Service() string
}

func runQuery(ctx context.Context, out io.Writer, d requestHandler, user, query string, progress bool) error {
	var s *spinner.Spinner
	if progress {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
		s.Suffix = " Working on it..."
		s.Start()
	}

	outcome, err := d.Handle(ctx, user, query)

	if s != nil {
		s.Stop()
	}
	if err != nil {
		if errors.Is(err, toolsession.ErrNoCredential) {
			fmt.Fprintf(out, "%s %s has not signed in to %s. Run 'agentgate serve' and open /login/%s?user=%s\n",
				text.FgYellow.Sprint("!"), user, d.Service(), d.Service(), user)
		}
		return err
	}

	printOutcome(out, outcome)
	return nil
}

func printOutcome(out io.Writer, o *dispatch.Outcome) {
	if o.Status != audit.StatusNoTool {
		fmt.Fprintf(out, "%s %s\n", text.FgHiBlue.Sprint("Tool:"), o.ToolName)
	}
	fmt.Fprintln(out, o.Message())
}
