package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print totals by domain and pattern type",
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
			for domain, count := range stats.ByDomain {
				fmt.Printf("domain %-20s %d\n", domain, count)
			}
			for pt, count := range stats.ByPatternType {
				fmt.Printf("pattern_type %-20s %d\n", pt, count)
			}
			fmt.Printf("stats ok: %d total memories, activation sum %.2f\n", stats.TotalMemories, stats.ActivationSum)
			return nil
		},
	}
}
