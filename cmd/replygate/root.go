package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "replygate",
	Short: "Subscription lifecycle and usage metering for freemium messaging apps",
	Long: `ReplyGate tracks per-device entitlements for a freemium messaging app.

It meters free-tier message consumption over a rolling window, verifies
Google Play subscription purchases, and keeps paid entitlements in sync
with real-time developer notifications.

Quick start:
  replygate serve     # Start the HTTP server

Management:
  replygate devices   # Inspect device entitlement records
  replygate validate  # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "replygate.yaml", "config file path")
}
