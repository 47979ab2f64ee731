package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPruneLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-logs",
		Short: "Delete activity log entries older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, err := buildServices(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer svc.close()

			n, err := svc.logs.Prune(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d entries older than %d days\n", n, cfg.LogRetentionDays)
			return nil
		},
	}
}
