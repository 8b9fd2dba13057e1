package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLowActivationCmd() *cobra.Command {
	var domains string
	var threshold float64
	cmd := &cobra.Command{
		Use:   "low-activation",
		Short: "Report (never delete) entries below an activation threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			var domainList []string
			if domains != "" {
				domainList = strings.Split(domains, ",")
			}
			report, err := svc.LowActivation(cmd.Context(), domainList, threshold)
			if err != nil {
				return err
			}
			for _, r := range report {
				fmt.Printf("%-20s %-30s %.3f\n", r.Domain, r.ID, r.Activation)
			}
			fmt.Printf("low-activation ok: %d entries below %.3f\n", len(report), threshold)
			return nil
		},
	}
	cmd.Flags().StringVar(&domains, "domains", "general", "comma-separated domains to scan")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.1, "activation threshold")
	return cmd
}
