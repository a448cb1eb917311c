package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fulfiller/pkg/config"
)

var settingsPath string

// Execute runs the CLI.
func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fulfiller",
		Short: "Marketplace stars fulfillment pipeline",
		Long: `fulfiller automates delivery of Telegram star gifts for marketplace
orders: it validates incoming orders, collects the buyer's username in chat,
splits the purchased total into gift denominations, and sends the gifts one
at a time with pacing.`,
	}

	cmd.PersistentFlags().StringVar(&settingsPath, "settings", "fulfiller/settings.yaml",
		"Path to the YAML settings file")

	cmd.AddCommand(newReplayCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLotsCmd())
	cmd.AddCommand(newEnableCmd())
	cmd.AddCommand(newDisableCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func loadSettings() (config.Settings, error) {
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}
