package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wakti/whoopsync/internal/migrations/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.Apply(ctx, pool); err != nil {
				return fmt.Errorf("applying migrations: %w", err)
			}

			fmt.Println("migrations applied")
			return nil
		},
	}
}
