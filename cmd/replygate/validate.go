package main

import (
	"fmt"

	"github.com/replygate/replygate/config"
	"github.com/spf13/cobra"
)

const checkMark = "\033[32m✓\033[0m"

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the configuration file (or environment variables) and print
the effective settings without starting the server.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Printf("%s Configuration valid\n", checkMark)
	fmt.Printf("  Server:           %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Database:         %s (%s)\n", cfg.Database.DSN, cfg.Database.Driver)
	fmt.Printf("  Free limit:       %d per %s\n", cfg.Entitlement.FreeMessagesPerWindow, cfg.Entitlement.Window)
	fmt.Printf("  Cancel threshold: %d\n", cfg.Entitlement.CancelThreshold)
	fmt.Printf("  Play Store mode:  %s\n", cfg.PlayStore.Mode)
	fmt.Printf("  Redis dedup:      %v\n", cfg.Redis.Enabled)
	fmt.Printf("  Metrics:          %v\n", cfg.Metrics.Enabled)
	return nil
}
