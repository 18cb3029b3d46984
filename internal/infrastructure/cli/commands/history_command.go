package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/infrastructure/cli/helpers"
)

// NewHistoryCommand creates the history command with all subcommands
func NewHistoryCommand(env *Env) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect execution history",
	}

	historyCmd.AddCommand(
		newHistoryListCommand(env),
		newHistoryClearCommand(env),
		newHistoryExportCommand(env),
	)
	return historyCmd
}

// newHistoryListCommand creates the 'history list' subcommand
func newHistoryListCommand(env *Env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent executions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := env.Container.History.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to retrieve history records: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), MsgNoHistoryRecorded)
				return nil
			}
			for _, rec := range records {
				helpers.RenderRecord(cmd.OutOrStdout(), rec)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", DefaultHistoryLimit, "Max entries to show (0 for all)")
	return cmd
}

// newHistoryClearCommand creates the 'history clear' subcommand
func newHistoryClearCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.Container.History.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgHistoryCleared)
			return nil
		},
	}
}

// newHistoryExportCommand creates the 'history export' subcommand
func newHistoryExportCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Export history to a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, domain.SecureFilePermissions)
			if err != nil {
				return err
			}
			n, err := env.Container.History.ExportJSON(cmd.Context(), file)
			if cerr := file.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("failed to export history to %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", n, path)
			return nil
		},
	}
}
