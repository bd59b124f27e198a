// Package main provides the entry point for the content pipeline agent CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "content_agent",
	Short: "Content pipeline orchestration agent",
	Long:  "Content agent schedules, drafts, enriches, and publishes long-form content for multiple tenants: worker and scheduler daemons plus operator commands for requests and schedules.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
