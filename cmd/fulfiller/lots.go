package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"fulfiller/pkg/config"
)

func newLotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lots",
		Short: "Manage the lot → stars mapping",
	}
	cmd.AddCommand(newLotsListCmd())
	cmd.AddCommand(newLotsSetCmd())
	cmd.AddCommand(newLotsRemoveCmd())
	return cmd
}

func withStore(fn func() error) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if err := config.Load(settings.StorePath); err != nil {
		return err
	}
	return fn()
}

func newLotsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List fulfillable lots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func() error {
				snap, err := config.GetSnapshot()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Fulfillment enabled: %v\n", snap.Enabled)
				if len(snap.Lots) == 0 {
					fmt.Fprintln(out, "No lots configured")
					return nil
				}

				lotIDs := make([]string, 0, len(snap.Lots))
				for lotID := range snap.Lots {
					lotIDs = append(lotIDs, lotID)
				}
				sort.Strings(lotIDs)
				for _, lotID := range lotIDs {
					fmt.Fprintf(out, "  %-20s %d stars\n", lotID, snap.Lots[lotID])
				}
				return nil
			})
		},
	}
}

func newLotsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <lot-id> <stars>",
		Short: "Map a lot to a stars-per-unit amount",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stars, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid stars amount %q: %w", args[1], err)
			}
			return withStore(func() error {
				if err := config.UpdateLot(args[0], stars); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Lot %s → %d stars\n", args[0], stars)
				return nil
			})
		},
	}
}

func newLotsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <lot-id>",
		Short: "Remove a lot from the mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func() error {
				if err := config.RemoveLot(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Lot %s removed\n", args[0])
				return nil
			})
		},
	}
}

func newEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Enable order fulfillment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func() error {
				if err := config.SetEnabled(true); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Fulfillment enabled")
				return nil
			})
		},
	}
}

func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Disable order fulfillment (orders are ignored)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func() error {
				if err := config.SetEnabled(false); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Fulfillment disabled")
				return nil
			})
		},
	}
}
