package main

import (
	"github.com/aussiebroadwan/storefront/internal/storefront/app"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server. The server applies store migrations on
startup and shuts down gracefully on SIGINT or SIGTERM.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := app.LoadConfig()

	application, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return oops.Code("APP_INIT_FAILED").Wrap(err)
	}

	return application.Run()
}
