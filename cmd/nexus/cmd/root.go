package cmd

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Nexus federates MCP tool servers and LLM providers behind a single endpoint",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Overload(); err != nil {
			log.Println("no .env file found, continuing with process environment only")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "nexus.toml", "path to the TOML configuration file")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalln(err.Error())
	}
}
