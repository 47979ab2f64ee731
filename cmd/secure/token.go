package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-secure/pkg/principal"
)

func newTokenCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for a principal",
		Long:  "Mint a session token for a principal. Send it as a bearer token or in the X-Session-Token header.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pid, err := principal.ParseID(id)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			svc, err := buildServices(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer svc.close()

			p, err := svc.principals.Get(cmd.Context(), pid)
			if err != nil {
				return err
			}
			token, exp, err := svc.sessions.Encode(p.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, token)
			fmt.Fprintf(out, "# principal %s (%s), expires %s\n", p.ID, p.Username, exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "principal", "", "principal id")
	_ = cmd.MarkFlagRequired("principal")
	return cmd
}
