package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialise the store and report counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			stats, err := svc.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("init ok: %d memories across %d domains\n", stats.TotalMemories, len(stats.ByDomain))
			return nil
		},
	}
}
