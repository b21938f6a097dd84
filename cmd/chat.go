package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/0xchamin/agent-security-and-identity/internal/oauth"
)

var chatUser string

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session with the agent",
		Long: `Starts a prompt where each line is sent to the agent as a request for
the given user. Type 'exit' or press Ctrl+D to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer application.Close()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:            text.FgHiCyan.Sprintf("%s> ", chatUser),
				HistoryFile:       filepath.Join(os.TempDir(), ".agentgate_history"),
				InterruptPrompt:   "^C",
				EOFPrompt:         "exit",
				HistorySearchFold: true,
			})
			if err != nil {
				return fmt.Errorf("failed to create readline instance: %w", err)
			}
			defer rl.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Chatting as %s. Type 'exit' to quit.\n", chatUser)
			return runChat(cmd.Context(), rl, rl.Stdout(), application.Services().Dispatcher, chatUser)
		},
	}
	cmd.Flags().StringVarP(&chatUser, "user", "u", oauth.DefaultSubject, "User the agent acts for")
	return cmd
}

type lineReader interface {
	Readline() (string, error)
}

// runChat reads requests until EOF, exit or cancellation. Failed requests
// are reported and the loop continues.
func runChat(ctx context.Context, in lineReader, out io.Writer, d requestHandler, user string) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		switch input {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		if err := runQuery(ctx, out, d, user, input, false); err != nil {
			fmt.Fprintf(out, "%s %v\n", text.FgRed.Sprint("Error:"), err)
		}
		fmt.Fprintln(out)
	}
}
