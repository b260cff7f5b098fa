package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clausehound/citex/internal/infrastructure/database/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var (
		migrationsPath string
		down           int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			dbURL := postgres.BuildDSN(cfg.Database)

			if down > 0 {
				if err := postgres.RollbackMigration(dbURL, migrationsPath, down); err != nil {
					return err
				}
			} else {
				if err := postgres.RunMigrations(dbURL, migrationsPath); err != nil {
					return err
				}
			}

			version, dirty, err := postgres.MigrationVersion(dbURL, migrationsPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}

	cmd.Flags().StringVar(&migrationsPath, "path", "migrations", "directory containing migration files")
	cmd.Flags().IntVar(&down, "down", 0, "roll back this many migrations instead of applying")
	return cmd
}
