package main

import (
	"fmt"
	"os"

	"github.com/quarrydocs/quarry/internal/cli"
	"github.com/quarrydocs/quarry/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "quarry",
		Short: "Quarry CLI - Document search for AI agents",
		Long: `Quarry CLI provides commands to index and search documents.

Environment variables:
  QUARRY_API_TOKEN   API token for authentication (optional for servers without auth)
  QUARRY_API_URL     API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "API token for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.DocCmd())
	rootCmd.AddCommand(client.KBCmd())
	rootCmd.AddCommand(client.SettingsCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
