package main

import (
	"fmt"
	"os"

	"github.com/replygate/replygate/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the entitlement server",
	Long: `Start the ReplyGate HTTP server.

The server will:
  - Load configuration from replygate.yaml (or --config)
  - Or load configuration from REPLYGATE_* environment variables
  - Connect to the database and run migrations
  - Serve the device entitlement API and Google Play webhook

Environment variables (for Docker deployments):
  REPLYGATE_DATABASE_DSN       - Database path (default: replygate.db)
  REPLYGATE_SERVER_PORT        - Server port (default: 8080)
  REPLYGATE_FREE_LIMIT         - Free messages per window (default: 50)
  REPLYGATE_PLAYSTORE_MODE     - Purchase verifier: none, fake, google
  REPLYGATE_LOG_LEVEL          - Log level: debug, info, warn, error

Examples:
  replygate serve
  replygate serve --config=/etc/replygate/replygate.yaml
  REPLYGATE_PLAYSTORE_MODE=fake replygate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err != nil {
		fmt.Println("Running with environment variables (no config file)")
	}

	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
