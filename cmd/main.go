// expiry-notifier tracks fleet document expiry dates in an xlsx register and
// sends daily digests and threshold alerts.
//
// Usage:
//
//	expiry-notifier serve            # API, cron and Kafka triggers
//	expiry-notifier run [--force]    # one pass now
//	expiry-notifier preview          # render today's digests, send nothing
//	expiry-notifier migrate          # apply database migrations
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "expiry-notifier",
		Short:         "Track document expiry dates and notify recipients",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to the .env file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
