package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xchamin/agent-security-and-identity/internal/app"
	"github.com/0xchamin/agent-security-and-identity/internal/toolsession"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates the user has no credential for the service.
	ExitCodeAuthRequired = 2
)

var (
	configPath string
	debug      bool
	quiet      bool
)

// rootCmd represents the base command for the agentgate application.
var rootCmd = &cobra.Command{
	Use:   "agentgate",
	Short: "Let an AI agent act on your behalf with delegated OAuth credentials",
	Long: `agentgate runs an AI agent that acts against third-party APIs such as
GitHub on a user's behalf, without holding the user's long-term credentials.

Users sign in through an OAuth Authorization Code flow with PKCE; the
resulting access token is stored per user and per service. Requests in
natural language are then routed to MCP tools, which run with exactly that
token, and every request is recorded in an audit log.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "agentgate version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if errors.Is(err, toolsession.ErrNoCredential) {
		return ExitCodeAuthRequired
	}
	return ExitCodeError
}

// newApplication bootstraps the application from the global flags.
func newApplication(ctx context.Context) (*app.Application, error) {
	return app.NewApplication(ctx, app.NewConfig(debug, quiet, configPath))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default is $HOME/.config/agentgate/agentgate.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output and progress indicators")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newCredentialsCmd())
}
