package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/doeshing/replybot/assets"
	"github.com/doeshing/replybot/internal/infrastructure/cli/helpers"
)

// NewBotCommand creates the bot command with all subcommands
func NewBotCommand(env *Env) *cobra.Command {
	botCmd := &cobra.Command{
		Use:   "bot",
		Short: "Install and inspect the reply bot",
	}

	botCmd.AddCommand(
		newBotDownloadCommand(env),
		newBotInfoCommand(env),
		newBotCheckCommand(env),
		newBotDeleteCommand(env),
		newBotValidateCommand(env),
		newBotExampleCommand(),
	)
	return botCmd
}

// newBotDownloadCommand creates the 'bot download' subcommand
func newBotDownloadCommand(env *Env) *cobra.Command {
	var sha string

	cmd := &cobra.Command{
		Use:   "download [url]",
		Short: "Download, validate and install a bot over HTTPS",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := env.Container.Config.Bot.URL
			if len(args) == 1 {
				url = args[0]
			}
			if url == "" {
				return errors.New(ErrNoBotURL)
			}
			info, err := env.Container.Repository.DownloadBot(cmd.Context(), url, sha)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed bot %s\n", info.Hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&sha, "sha256", "", "Expected SHA-256 of the script (hex)")
	return cmd
}

// newBotInfoCommand creates the 'bot info' subcommand
func newBotInfoCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the installed bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := env.Container.Repository
			info, ok, err := repo.InstalledBotInfo(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), MsgNoBotInstalled)
				return nil
			}
			var size int64
			if st, err := os.Stat(repo.Path()); err == nil {
				size = st.Size()
			}
			helpers.RenderBotInfo(cmd.OutOrStdout(), info, size, repo.Path())
			return nil
		},
	}
}

// newBotCheckCommand creates the 'bot check' subcommand
func newBotCheckCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report whether the remote bot differs from the installed one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if env.Container.Repository.CheckForUpdates(cmd.Context()) {
				fmt.Fprintln(cmd.OutOrStdout(), "Update available.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgBotUpToDate)
			return nil
		},
	}
}

// newBotDeleteCommand creates the 'bot delete' subcommand
func newBotDeleteCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove the installed bot and its metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.Container.Repository.DeleteBot(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgBotDeleted)
			return nil
		},
	}
}

// newBotValidateCommand creates the 'bot validate' subcommand
func newBotValidateCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Run the static validator against a local script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			outcome := env.Container.Validator.Check(raw)
			if !outcome.Valid {
				helpers.RenderValidation(cmd.OutOrStdout(), outcome)
				return fmt.Errorf("validation failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgScriptValid)
			return nil
		},
	}
}

// newBotExampleCommand creates the 'bot example' subcommand
func newBotExampleCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "example",
		Short:       "Print a reference bot script",
		Annotations: noContainer(),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(assets.ExampleBotJS)
			return err
		},
	}
}

// readSource reads path, or stdin when path is "-".
func readSource(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		raw, err := io.ReadAll(stdin)
		return string(raw), err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(raw), nil
}
