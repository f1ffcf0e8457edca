package main

import (
	"github.com/aussiebroadwan/storefront/internal/storefront/app"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply store migrations",
		Long: `Apply schema migrations (SQLite) or create indexes (MongoDB) for the
configured STORE_DRIVER, then exit.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := app.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	logger := app.NewLogger(cfg)
	ctx := cmd.Context()

	cmd.Printf("Migrating %s store...\n", cfg.StoreDriver)
	db, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(ctx) }()

	cmd.Println("Migrations completed successfully")
	return nil
}
