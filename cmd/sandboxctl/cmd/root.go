// Package cmd provides the CLI commands for sandboxctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/Sentinelgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sandboxctl",
	Short: "sandboxctl - userland harness for the sandbox policy engine",
	Long: `sandboxctl drives the sandbox policy engine without a kernel module:
it loads a policy script, attaches it to a credential, and exposes the
VERSION/SETSPEC/NLISTS control surface over HTTP.

Quick start:
  1. Create a config file: sandboxd.yaml
  2. Run: sandboxctl serve

Configuration:
  Config is loaded from sandboxd.yaml in the current directory,
  $HOME/.sandboxd/, or /etc/sandboxd/.

  Environment variables can override config values with the SANDBOXD_ prefix.
  Example: SANDBOXD_SERVER_HTTP_ADDR=127.0.0.1:9090

Commands:
  serve     Start the control-surface HTTP server
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sandboxd.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
