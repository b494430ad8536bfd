package main

import (
	"database/sql"
	"os"

	"github.com/golang-migrate/migrate/v4"
	migratePsql "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/config"
)

func main() {
	cfg := config.LoadMigrateConfig()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the queue service database schema",
		SilenceUsage: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "apply all pending migrations",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withMigrate(cfg, func(m *migrate.Migrate) error {
					return ignoreNoChange(m.Up())
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "roll back every migration",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withMigrate(cfg, func(m *migrate.Migrate) error {
					return ignoreNoChange(m.Down())
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "print the applied schema version",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withMigrate(cfg, func(m *migrate.Migrate) error {
					version, dirty, err := m.Version()
					if errors.Is(err, migrate.ErrNilVersion) {
						logger.Info("no migration applied")
						return nil
					}
					if err != nil {
						return err
					}
					logger.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("schema version")
					return nil
				})
			},
		},
	)

	if err := root.Execute(); err != nil {
		logger.WithError(err).Error("migration failed")
		os.Exit(1)
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func withMigrate(cfg *config.MigrateConfig, fn func(m *migrate.Migrate) error) error {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer db.Close()

	driver, err := migratePsql.WithInstance(db, &migratePsql.Config{})
	if err != nil {
		return errors.Wrap(err, "migrate: postgres driver")
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationsPath, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "migrate: load migrations")
	}
	return fn(m)
}
