// Package cmd provides the CLI commands for LedgerGate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ledger-Gate/ledgergate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ledgergate",
	Short: "LedgerGate - admission gateway for the financial-health app",
	Long: `LedgerGate is the request-admission gateway in front of the
financial-health application.

Every inbound request runs through an ordered pipeline of guards:
abuse shield, bot filter, per-identity rate limiter, and the auth gate.
Each stage may reject or redirect the request before the application
ever sees it.

Quick start:
  1. Create a config file: ledgergate.yaml
  2. Run: ledgergate start

Configuration:
  Config is loaded from ledgergate.yaml in the current directory,
  $HOME/.ledgergate/, or /etc/ledgergate/.

  Environment variables can override config values with the LEDGERGATE_ prefix.
  Example: LEDGERGATE_SERVER_HTTP_ADDR=:9090

Commands:
  start       Start the gateway server
  hash-token  Generate a hash for a session token
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ledgergate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
