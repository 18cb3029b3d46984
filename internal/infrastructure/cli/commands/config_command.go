package commands

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/replybot/internal/infrastructure/config"
)

// NewConfigCommand creates the config command with all subcommands
func NewConfigCommand(env *Env) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect replybot configuration",
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, err := yaml.Marshal(env.Container.Config)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(raw)
				return err
			},
		},
		&cobra.Command{
			Use:   "diff",
			Short: "Show differences from the default configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				diff := cmp.Diff(config.Defaults(), env.Container.Config)
				if diff == "" {
					fmt.Fprintln(cmd.OutOrStdout(), MsgNoDifferencesFromDefault)
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), diff)
				return nil
			},
		},
		&cobra.Command{
			Use:         "path",
			Short:       "Print the config file location",
			Annotations: noContainer(),
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), config.NewFileLoader(env.ConfigPath).Path())
				return nil
			},
		},
	)
	return configCmd
}
