package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenshield/skillcore/pkg/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	Long: `migrate opens the configured database, applying any migrations that
have not yet run, then exits. Useful for running schema upgrades ahead of
a deployment without starting the daemon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := storage.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		defer repo.Close()

		fmt.Printf("database at %s is up to date\n", cfg.DatabasePath)
		return nil
	},
}
