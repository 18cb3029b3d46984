package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/replybot/internal/infrastructure/cli/commands"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
	// LogOutput receives structured logs; nil means stderr.
	LogOutput io.Writer
}

// NewRootCmd wires the cobra root command. The container is built lazily
// once flags are parsed so --config and --debug take effect.
func NewRootCmd(ctx context.Context, opts Options) *cobra.Command {
	env := &commands.Env{Verbose: opts.Verbose, LogOutput: opts.LogOutput}

	root := &cobra.Command{
		Use:   "replybot",
		Short: "replybot - scripted notification auto-replies",
		Long:  "replybot downloads a JavaScript bot, runs it in a sandbox for every notification and dispatches its reply decision.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if commands.SkipsContainer(cmd) {
				return nil
			}
			return env.Open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return env.Close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetContext(ctx)

	root.PersistentFlags().StringVar(&env.ConfigPath, "config", "", "Config file (default ~/.replybot/config.yaml, or $REPLYBOT_CONFIG)")
	root.PersistentFlags().BoolVar(&env.Verbose, "debug", opts.Verbose, "Enable debug logging and diagnostics capture")

	root.AddCommand(
		commands.NewBotCommand(env),
		commands.NewRunCommand(env),
		commands.NewUpdateCommand(env),
		commands.NewHistoryCommand(env),
		commands.NewStorageCommand(env),
		commands.NewAttachmentsCommand(env),
		commands.NewConfigCommand(env),
		commands.NewDoctorCommand(env),
		commands.NewVersionCommand(),
	)
	return root
}
