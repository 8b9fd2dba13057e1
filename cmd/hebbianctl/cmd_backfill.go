package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBackfillEmbeddingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-embeddings",
		Short: "Compute embeddings for active memories missing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			n, err := svc.BackfillEmbeddings(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("backfill-embeddings ok: %d repaired\n", n)
			return nil
		},
	}
}
