package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/replybot/internal/infrastructure/cli/helpers"
)

// NewAttachmentsCommand creates the attachments command
func NewAttachmentsCommand(env *Env) *cobra.Command {
	attachmentsCmd := &cobra.Command{
		Use:   "attachments",
		Short: "Manage the attachments directory",
	}

	var olderThan time.Duration
	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete attachment files older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := env.Container
			if !cmd.Flags().Changed("older-than") {
				olderThan = c.Config.Attachments.Retention
			}
			result, err := c.Attachments.Cleanup(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d files from %s, freed %s\n",
				result.Removed, c.Attachments.Dir(), helpers.Size(result.FreedBytes))
			return nil
		},
	}
	cleanCmd.Flags().DurationVar(&olderThan, "older-than", DefaultAttachmentAge, "Age threshold (default from attachments.retention)")

	attachmentsCmd.AddCommand(cleanCmd)
	return attachmentsCmd
}
