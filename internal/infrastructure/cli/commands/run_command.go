package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/infrastructure/dispatch"
)

type notificationFlags struct {
	file    string
	id      int
	app     string
	title   string
	body    string
	isGroup bool
}

// NewRunCommand creates the run command
func NewRunCommand(env *Env) *cobra.Command {
	var flags notificationFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Handle one notification and print the decision as a JSON line",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := flags.snapshot(cmd)
			if err != nil {
				return err
			}

			c := env.Container
			svc := c.ReplyService(dispatch.NewJSONLines(cmd.OutOrStdout()))
			decision, err := svc.Handle(cmd.Context(), snapshot, c.Diagnostics)

			if c.Diagnostics.Enabled() {
				fmt.Fprint(cmd.ErrOrStderr(), c.Diagnostics.String())
			}
			if decision.Cause != nil && env.Verbose {
				var botErr *domain.BotError
				if errors.As(decision.Cause, &botErr) {
					fmt.Fprintln(cmd.ErrOrStderr(), botErr.DetailedMessage())
				}
			}
			if c.Config.History.Enabled {
				cutoff := time.Now().AddDate(0, 0, -c.Config.History.RetainDays)
				if _, err := c.History.Prune(cmd.Context(), cutoff); err != nil {
					c.Logger.Warn("history prune failed", map[string]interface{}{"error": err.Error()})
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&flags.file, "notification", "", "Notification JSON file ('-' for stdin)")
	cmd.Flags().IntVar(&flags.id, "id", 1, "Notification id")
	cmd.Flags().StringVar(&flags.app, "app", DefaultNotificationApp, "Source app package")
	cmd.Flags().StringVar(&flags.title, "title", "", "Notification title (usually the sender)")
	cmd.Flags().StringVar(&flags.body, "body", "", "Notification text")
	cmd.Flags().BoolVar(&flags.isGroup, "group", false, "Notification comes from a group conversation")
	return cmd
}

func (f notificationFlags) snapshot(cmd *cobra.Command) (domain.NotificationSnapshot, error) {
	if f.file == "" {
		return domain.NotificationSnapshot{
			ID:         f.id,
			AppPackage: f.app,
			Title:      f.title,
			Body:       f.body,
			PostedAt:   time.Now(),
			IsGroup:    f.isGroup,
		}, nil
	}
	if cmd.Flags().Changed("title") || cmd.Flags().Changed("body") || cmd.Flags().Changed("app") {
		return domain.NotificationSnapshot{}, errors.New(ErrNotificationInput)
	}
	raw, err := readSource(cmd.InOrStdin(), f.file)
	if err != nil {
		return domain.NotificationSnapshot{}, err
	}
	snapshot, err := domain.ParseNotificationJSON([]byte(raw))
	if err != nil {
		return domain.NotificationSnapshot{}, fmt.Errorf("parse notification: %w", err)
	}
	if snapshot.PostedAt.IsZero() {
		snapshot.PostedAt = time.Now()
	}
	return snapshot, nil
}
