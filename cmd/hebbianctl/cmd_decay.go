package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDecayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decay",
		Short: "Apply the configured daily decay factor across all rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.Decay(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("decay ok")
			return nil
		},
	}
}
