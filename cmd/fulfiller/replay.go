package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fulfiller/internal/replay"
)

func newReplayCmd() *cobra.Command {
	var eventsFile string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run a recorded event journal offline",
		Long: `Reads an events JSONL file and pushes every order and message event
through the full pipeline with logged (non-transmitting) collaborators.
Useful for regression-checking dialogue and decomposition behavior against
recorded traffic.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			runner := replay.NewRunner(settings)
			dispatched, err := runner.Run(cmd.Context(), eventsFile)
			if err != nil {
				return fmt.Errorf("replay failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d events from %s\n", dispatched, eventsFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventsFile, "events", "", "Path to events JSONL file (required)")
	_ = cmd.MarkFlagRequired("events")

	return cmd
}
