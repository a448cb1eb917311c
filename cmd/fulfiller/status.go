package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fulfiller/pkg/persistence"
)

func newStatusCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show delivery history totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			if err := persistence.Initialize(settings.DBPath); err != nil {
				return err
			}
			defer func() { _ = persistence.Close() }()

			ops := persistence.Ops()
			stats, err := ops.GetStats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deliveries: %d\n", stats.TotalDeliveries)
			fmt.Fprintf(out, "Stars sent: %d\n", stats.TotalStars)
			fmt.Fprintf(out, "Gifts sent: %d\n", stats.TotalGiftsSent)
			fmt.Fprintf(out, "Failures:   %d\n", stats.TotalFailures)

			if recent <= 0 {
				return nil
			}
			records, err := ops.ListRecentDeliveries(recent)
			if err != nil {
				return err
			}
			if len(records) > 0 {
				fmt.Fprintf(out, "\nRecent deliveries:\n")
			}
			for _, record := range records {
				fmt.Fprintf(out, "  %s  order %-10s  %4d stars  ok=%d fail=%d  %s\n",
					record.CompletedAt.Format("2006-01-02 15:04"),
					record.OrderID, record.Stars,
					record.SuccessCount, record.FailureCount, record.Recipient)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 0, "Also list the N most recent deliveries")

	return cmd
}
