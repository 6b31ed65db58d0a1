package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crop-notifier",
	Short: "Crop Notifier - harvest readiness notifications",
	Long: `Crop Notifier tracks crop growth timers and tells farmers when their
crops are ready to harvest.

It runs three scheduled jobs: a readiness scan every minute, a daily summary
and a nightly cleanup of the notification log.

Run 'crop-notifier serve' to start the API and the scheduler,
'crop-notifier run-job <name>' to run one job once, or
'crop-notifier import' to load a crop catalog.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(runJobCmd)
	rootCmd.AddCommand(tokenCmd)
}
