package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStorageCommand creates the storage command; it edits the values bots see through Android.storage* and localStorage.
func NewStorageCommand(env *Env) *cobra.Command {
	storageCmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect and edit bot storage",
	}

	storageCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored keys and values",
			RunE: func(cmd *cobra.Command, args []string) error {
				host := env.Container.HostAPI
				keys, err := host.StorageKeys(cmd.Context())
				if err != nil {
					return err
				}
				if len(keys) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), MsgStorageEmpty)
					return nil
				}
				for _, key := range keys {
					value, _, err := host.StorageGet(cmd.Context(), key)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, value)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, ok, err := env.Container.HostAPI.StorageGet(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("key %q not found", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Store a value",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return env.Container.HostAPI.StorageSet(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "rm <key>",
			Short: "Remove a value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return env.Container.HostAPI.StorageRemove(cmd.Context(), args[0])
			},
		},
	)
	return storageCmd
}
