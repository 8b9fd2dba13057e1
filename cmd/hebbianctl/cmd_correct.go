package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCorrectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "correct <correction-id> <corrected-id>",
		Short: "Mark correction-id as a correction of corrected-id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.MarkCorrection(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("correct ok: %s corrects %s\n", args[0], args[1])
			return nil
		},
	}
}
