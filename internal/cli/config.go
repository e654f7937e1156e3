package cli

import (
	"github.com/spf13/cobra"

	"neuroatlas/pkg/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the neuroatlas configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a configuration file with default values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			if err := config.CreateDefaultConfigFile(args[0]); err != nil {
				return err
			}
			logger.Info("wrote default config", "path", args[0])
			return nil
		},
	}

	cmd.AddCommand(initCmd)
	return cmd
}
