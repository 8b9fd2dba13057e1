package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTopCmd() *cobra.Command {
	var domain string
	var n int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "List top-N memories by activation",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			rows, err := svc.Top(cmd.Context(), domain, n)
			if err != nil {
				return err
			}
			for _, m := range rows {
				fmt.Printf("%.3f  %-30s  %s\n", m.Activation, m.ID, m.Title)
			}
			fmt.Printf("top ok: %d entries\n", len(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "general", "domain to list")
	cmd.Flags().IntVar(&n, "n", 10, "number of entries")
	return cmd
}
