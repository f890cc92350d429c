package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/magicjournal/server/internal/config"
	"github.com/magicjournal/server/internal/db"
	"github.com/magicjournal/server/internal/repository"
	"github.com/magicjournal/server/internal/service"
	"github.com/spf13/cobra"
)

type dbFlags struct {
	driver     string
	connection string
}

// bind registers --driver and --dsn, defaulting to DB_DRIVER / DB_CONNECTION
func (f *dbFlags) bind(cmd *cobra.Command) {
	_ = godotenv.Load()

	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	connection := os.Getenv("DB_CONNECTION")
	if connection == "" {
		connection = config.DefaultDBConnection
	}

	cmd.PersistentFlags().StringVar(&f.driver, "driver", driver, "database driver (sqlite or pgx)")
	cmd.PersistentFlags().StringVar(&f.connection, "dsn", connection, "database connection string")
}

func (f *dbFlags) open() (*sqlx.DB, error) {
	database, err := db.Init(f.driver, f.connection)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

func MigrateCmd() *cobra.Command {
	flags := &dbFlags{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect database migrations",
	}
	flags.bind(cmd)

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(flags, func(database *sqlx.DB) error {
					return db.RunMigrations(database.DB, flags.driver)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(flags, func(database *sqlx.DB) error {
					return db.MigrateDown(database.DB, flags.driver)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print applied and pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(flags, func(database *sqlx.DB) error {
					return db.MigrationStatus(database.DB, flags.driver)
				})
			},
		},
	)
	return cmd
}

func SeedCmd() *cobra.Command {
	flags := &dbFlags{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Migrate and write the habit catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(flags, func(database *sqlx.DB) error {
				err := db.RunMigrations(database.DB, flags.driver)
				if err != nil {
					return err
				}
				habits := service.NewHabitService(repository.NewHabitRepository(database))
				err = habits.SeedCatalog(context.Background())
				if err != nil {
					return err
				}
				fmt.Println("habit catalog seeded")
				return nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func withDB(flags *dbFlags, fn func(database *sqlx.DB) error) error {
	database, err := flags.open()
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	return fn(database)
}
