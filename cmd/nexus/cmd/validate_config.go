package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grafbase/nexus/internal/config"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Parse and validate the configuration file without starting the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config: %w", err)
		}
		defer f.Close()

		if _, err := config.LoadConfig(f); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "config OK")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateConfigCmd)
}
