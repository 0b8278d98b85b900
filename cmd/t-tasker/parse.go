package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smixs/t-tasker/internal/logutil"
	"github.com/smixs/t-tasker/parser"
)

// parse runs the extraction pipeline once and prints the intent, without
// touching Telegram or Todoist. Useful for prompt and taxonomy tuning.
func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <message>",
		Short: "Parse a message into a task intent and print it as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			orch, err := orchestratorFromViper(logger)
			if err != nil {
				return err
			}

			lang, _ := cmd.Flags().GetString("lang")
			author, _ := cmd.Flags().GetString("forward-author")

			intent, err := orch.Process(cmd.Context(), parser.Message{
				Text:          strings.Join(args, " "),
				Language:      lang,
				ForwardAuthor: author,
				Forwarded:     author != "",
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(intent, "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().String("lang", "ru", "User language hint (ru|en).")
	cmd.Flags().String("forward-author", "", "Treat the message as forwarded from this author.")

	return cmd
}
