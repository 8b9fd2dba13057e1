package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var domains string
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Query the store with free text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			var hints []string
			if domains != "" {
				hints = strings.Split(domains, ",")
			}
			result, err := svc.Retrieve(cmd.Context(), args[0], hints)
			if err != nil {
				return err
			}
			for _, hit := range result.Hits {
				fmt.Printf("%.3f  %-30s  %s\n", hit.Score, hit.Memory.ID, hit.Memory.Title)
			}
			fmt.Printf("query ok: %d hits, degraded=%v\n", len(result.Hits), result.DegradedQuery)
			return nil
		},
	}
	cmd.Flags().StringVar(&domains, "domains", "", "comma-separated domain hints")
	return cmd
}
