package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/replybot/internal/application/update"
	"github.com/doeshing/replybot/internal/domain"
)

// NewUpdateCommand creates the update command
func NewUpdateCommand(env *Env) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Re-download the bot when the configured URL serves a new version",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := env.Container
			// An explicit invocation does not need auto_update.
			svc := *c.UpdateService
			svc.Enabled = c.Config.Bot.Enabled

			out := cmd.OutOrStdout()
			if !watch {
				outcome, info, err := svc.Run(cmd.Context())
				reportUpdate(out, outcome, info, err)
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = c.Config.Bot.UpdateInterval
			}
			err := svc.Watch(cmd.Context(), interval, func(outcome update.Outcome, info domain.BotInfo, err error) {
				reportUpdate(out, outcome, info, err)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep checking every --interval until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", DefaultWatchInterval, "Time between checks in --watch mode (default from bot.update_interval)")
	return cmd
}

func reportUpdate(out io.Writer, outcome update.Outcome, info domain.BotInfo, err error) {
	switch outcome {
	case update.OutcomeUpdated:
		fmt.Fprintf(out, "Updated bot to %s\n", info.Hash)
	case update.OutcomeUpToDate:
		fmt.Fprintln(out, MsgBotUpToDate)
	case update.OutcomeSkipped:
		fmt.Fprintln(out, "Update skipped: bot disabled or bot.url not configured.")
	case update.OutcomeDeferred:
		fmt.Fprintf(out, "Update deferred: %v\n", err)
	default:
		fmt.Fprintf(out, "Update failed: %v\n", err)
	}
}
