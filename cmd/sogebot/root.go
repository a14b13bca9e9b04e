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
	Use:   "sogebot",
	Short: "Modular chat bot host with dependency-aware module lifecycle",
	Long: `sogeBot hosts feature modules (systems, games, integrations, overlays)
with persisted settings, permission-scoped values, and dependency-gated
enablement.

Quick start:
  sogebot serve         # Start the module host and admin API

Management:
  sogebot modules       # List and toggle modules
  sogebot settings      # Inspect and change module settings`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "sogebot.yaml", "config file path")
}
