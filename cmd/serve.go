package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the agentgate HTTP server",
		Long: `Starts the HTTP server that hosts the login flow and the agent API.

Routes:
  GET  /login/{provider}      sign in with a provider (?user= names the account)
  GET  /callback/{provider}   OAuth redirect target
  GET  /token/status          whether a user has a credential
  POST /query                 run a request: {"query": "...", "user_id": "..."}
  GET  /audit                 recent audit entries (?user=, ?limit=)

The server stops gracefully on SIGINT or SIGTERM. When run under systemd
with Type=notify, readiness is reported through sd_notify.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := newApplication(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer application.Close()

			return application.Serve(ctx)
		},
	}
}
