package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentcore/internal/store/pg"
)

func migrateCmd() *cobra.Command {
	var migrationsDir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply pending Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.PostgresDSN == "" {
				return fmt.Errorf("migrate: AGENTCORE_POSTGRES_DSN is not set")
			}
			if err := pg.Migrate(cfg.Database.PostgresDSN, migrationsDir); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&migrationsDir, "dir", "migrations", "directory of numbered SQL migration files")
	return cmd
}
