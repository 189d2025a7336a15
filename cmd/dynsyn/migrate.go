package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/dynsyn/internal/database"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the state store schema migrations to MySQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loadConfig() > %w", err)
			}

			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("database.Open() > %w", err)
			}
			version, err := database.Migrate(db, cfg.Database.Database)
			if err != nil {
				return fmt.Errorf("database.Migrate() > %w", err)
			}

			_, _ = color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "schema of %s is at version %d\n", cfg.Database.Database, version)
			return nil
		},
	}
}
