package main

import (
	"errors"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/teresa-solution/tenant-payment-service/internal/config"
)

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var forceVersion int
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply payment schema migrations",
		SilenceUsage: true,
	}
	config.RegisterFlags(root)

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *migrate.Migrate) error {
					log.Info().Msg("Applying migrations...")
					if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
						return err
					}
					log.Info().Msg("Migrations applied successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert all migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *migrate.Migrate) error {
					log.Info().Msg("Reverting migrations...")
					if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
						return err
					}
					log.Info().Msg("Migrations reverted successfully")
					return nil
				})
			},
		},
	)

	forceCmd := &cobra.Command{
		Use:   "force",
		Short: "Force the recorded migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migrate.Migrate) error {
				log.Info().Int("version", forceVersion).Msg("Forcing migration version...")
				if err := m.Force(forceVersion); err != nil {
					return err
				}
				log.Info().Msg("Migration version forced successfully")
				return nil
			})
		},
	}
	forceCmd.Flags().IntVar(&forceVersion, "version", 1, "Version to force")
	root.AddCommand(forceCmd)

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

func withMigrator(cmd *cobra.Command, fn func(m *migrate.Migrate) error) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}

	// Connect to the database
	pgxConfig, err := pgx.ParseConfig(cfg.DSN())
	if err != nil {
		return err
	}
	db := stdlib.OpenDB(*pgxConfig)
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.Migrations.Path, "postgres", driver)
	if err != nil {
		return err
	}
	return fn(m)
}
