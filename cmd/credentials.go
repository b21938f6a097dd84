package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/0xchamin/agent-security-and-identity/internal/credentials"
	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Inspect and revoke stored credentials",
		Long: `Lists and deletes the access tokens stored for users. Tokens are never
printed in full; only a short preview is shown.`,
	}
	cmd.AddCommand(newCredentialsListCmd(), newCredentialsDeleteCmd())
	return cmd
}

func newCredentialsListCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer application.Close()

			records, err := application.Services().Credentials.List(cmd.Context(), user)
			if err != nil {
				return err
			}
			renderCredentials(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Only list credentials of this user")
	return cmd
}

func newCredentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <user> <service>",
		Aliases: []string{"rm"},
		Short:   "Delete the credential a user holds for a service",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer application.Close()

			return deleteCredential(cmd.Context(), cmd.OutOrStdout(), application.Services().Credentials, args[0], args[1])
		},
	}
}

func deleteCredential(ctx context.Context, out io.Writer, store credentials.Store, user, service string) error {
	_, ok, err := store.Get(ctx, user, service)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no credential stored for %s", credentials.Key(user, service))
	}
	if err := store.Delete(ctx, user, service); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	logging.Audit("CLI", "credential_deleted", "subject", user, "service", service)
	fmt.Fprintf(out, "%s Deleted credential %s\n", text.FgGreen.Sprint("✓"), credentials.Key(user, service))
	return nil
}

func renderCredentials(out io.Writer, records []credentials.Record) {
	if len(records) == 0 {
		fmt.Fprintf(out, "%s\n", text.FgYellow.Sprint("No credentials stored"))
		return
	}

	t := newTable(out)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("USER"),
		text.FgHiCyan.Sprint("SERVICE"),
		text.FgHiCyan.Sprint("TOKEN"),
		text.FgHiCyan.Sprint("SCOPES"),
		text.FgHiCyan.Sprint("ISSUED"),
	})
	for _, r := range records {
		t.AppendRow(table.Row{
			r.Subject,
			r.Service,
			r.Preview(),
			strings.Join(r.Scopes, " "),
			r.IssuedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	t.Render()
}
