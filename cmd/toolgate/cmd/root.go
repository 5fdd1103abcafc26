// Package cmd provides the CLI commands for ToolGate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "toolgate",
	Short: "ToolGate - MCP tool federation gateway",
	Long: `ToolGate aggregates tools from many MCP upstream servers behind one
call/search/discover surface, so an agent talks to a single gateway
instead of bootstrapping a session with every server it might need.

Quick start:
  1. Create a config file: toolgate.yaml
  2. Run: toolgate start

Configuration:
  Config is loaded from toolgate.yaml in the current directory,
  $HOME/.toolgate/, or /etc/toolgate/.

  Environment variables can override config values with the TOOLGATE_
  prefix. Example: TOOLGATE_LOG_LEVEL=debug

Commands:
  start     Start the gateway and its background refresh loop
  discover  Run a one-shot full discovery build
  search    Search the federated tool index
  version   Print version information`,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./toolgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
