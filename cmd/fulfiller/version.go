package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fulfiller/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "fulfiller %s\n", strings.TrimSpace(version.Version))
			if c := strings.TrimSpace(version.Commit); c != "" && c != "none" {
				fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", c)
			}
			if d := strings.TrimSpace(version.Date); d != "" && d != "unknown" {
				fmt.Fprintf(cmd.OutOrStdout(), "date: %s\n", d)
			}
			return nil
		},
	}
}
