package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeprecateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deprecate <old-id> <new-id>",
		Short: "Deprecate old-id in favour of new-id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.Deprecate(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("deprecate ok: %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}
