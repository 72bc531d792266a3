package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the system template catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			cat, err := loadCatalog()
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			n, err := cat.Seed(ctx, db, nil, slog.Default())
			if err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}
			fmt.Printf("Seeded %d of %d templates\n", n, len(cat.Templates))
			return nil
		},
	}
}
