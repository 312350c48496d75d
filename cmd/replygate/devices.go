package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/replygate/replygate/adapters/sqlite"
	"github.com/replygate/replygate/config"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Inspect device entitlement records",
	Long: `Inspect device entitlement records.

Each device has one record tracking its tier, free-window usage, and
any linked Google Play purchase.

Examples:
  replygate devices list
  replygate devices get a1b2c3d4-device-id
  replygate devices events a1b2c3d4-device-id`,
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List device records",
	RunE:  runDevicesList,
}

var devicesGetCmd = &cobra.Command{
	Use:   "get <device-id>",
	Short: "Show a device's entitlement record",
	Args:  cobra.ExactArgs(1),
	RunE:  runDevicesGet,
}

var devicesEventsCmd = &cobra.Command{
	Use:   "events <device-id>",
	Short: "Show a device's subscription event history",
	Args:  cobra.ExactArgs(1),
	RunE:  runDevicesEvents,
}

var devicesListLimit int

func init() {
	rootCmd.AddCommand(devicesCmd)

	devicesCmd.AddCommand(devicesListCmd)
	devicesCmd.AddCommand(devicesGetCmd)
	devicesCmd.AddCommand(devicesEventsCmd)

	devicesListCmd.Flags().IntVar(&devicesListLimit, "limit", 100, "maximum records to list")
}

func runDevicesList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewDeviceStore(db)
	records, err := store.List(context.Background(), devicesListLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No devices found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tTIER\tUSED\tRESETS\tPAID UNTIL\tDISABLED")
	fmt.Fprintln(w, "------\t----\t----\t------\t----------\t--------")

	for _, r := range records {
		paidUntil := "-"
		if r.PaidUntil != nil {
			paidUntil = r.PaidUntil.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%v\n",
			r.DeviceID, r.Tier, r.MessagesUsed,
			r.WindowResetAt.Format(time.RFC3339), paidUntil, r.FreeTierDisabled)
	}

	w.Flush()
	return nil
}

func runDevicesGet(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewDeviceStore(db)
	r, err := store.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("device not found: %s", args[0])
	}

	fmt.Printf("Device:        %s\n", r.DeviceID)
	fmt.Printf("Tier:          %s\n", r.Tier)
	if r.PaidUntil != nil {
		fmt.Printf("Paid until:    %s\n", r.PaidUntil.Format(time.RFC3339))
	}
	if r.PurchaseToken != "" {
		fmt.Printf("Purchase:      %s\n", r.PurchaseToken)
	}
	fmt.Printf("Messages used: %d\n", r.MessagesUsed)
	fmt.Printf("Window resets: %s\n", r.WindowResetAt.Format(time.RFC3339))
	fmt.Printf("Free disabled: %v\n", r.FreeTierDisabled)
	fmt.Printf("Created:       %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:       %s\n", r.UpdatedAt.Format(time.RFC3339))
	fmt.Printf("Version:       %d\n", r.Version)
	return nil
}

func runDevicesEvents(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewEventStore(db)
	events, err := store.ListByDevice(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	if len(events) == 0 {
		fmt.Println("No events found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tSOURCE\tRAW\tID")
	fmt.Fprintln(w, "----\t----\t------\t---\t--")

	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			e.OccurredAt.Format(time.RFC3339), e.Type, e.Source, e.RawNotificationType, e.ID)
	}

	w.Flush()
	return nil
}

func openDatabase() (*sqlite.DB, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}
