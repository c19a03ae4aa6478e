package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/database/seeders"
	"github.com/shashiranjanraj/storefront/pkg/database"
	"github.com/shashiranjanraj/storefront/pkg/migration"
)

// withDB runs fn against a database opened from configuration. Database
// commands need nothing else booted.
func withDB(ctx context.Context, fn func(*gorm.DB) error) error {
	cfg, flush, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer flush()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)
	return fn(db)
}

func printNames(verb string, names []string) {
	if len(names) == 0 {
		fmt.Println("Nothing to do.")
		return
	}
	for _, n := range names {
		fmt.Printf("%s: %s\n", verb, n)
	}
}

// storefront migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(db *gorm.DB) error {
			ran, err := migration.New(db).Run(cmd.Context())
			printNames("Migrated", ran)
			return err
		})
	},
}

// storefront migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(db *gorm.DB) error {
			rolled, err := migration.New(db).Rollback(cmd.Context())
			printNames("Rolled back", rolled)
			return err
		})
	},
}

// storefront migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(db *gorm.DB) error {
			states, err := migration.New(db).Status(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "RAN\tBATCH\tMIGRATION")
			for _, s := range states {
				ran, batch := "No", "-"
				if s.Ran {
					ran, batch = "Yes", fmt.Sprint(s.Batch)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", ran, batch, s.Name)
			}
			return w.Flush()
		})
	},
}

// storefront seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run all database seeders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(db *gorm.DB) error {
			ran, err := seeders.RunAll(cmd.Context(), db)
			printNames("Seeded", ran)
			return err
		})
	},
}
