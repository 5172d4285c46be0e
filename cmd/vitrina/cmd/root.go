// Package cmd provides the CLI commands for vitrina.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vitrina-app/vitrina/internal/config"
)

var cfgFile string
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "vitrina",
	Short: "vitrina - marketplace session client and front server",
	Long: `vitrina keeps a marketplace session (access and refresh tokens) on disk,
resolves who the session belongs to, and decides which panel pages it may open.

Quick start:
  1. Point it at the API: VITRINA_BACKEND_BASE_URL=https://api.example.com
  2. Run: vitrina login --username ana
  3. Run: vitrina serve

Configuration:
  Config is loaded from vitrina.yaml in the current directory,
  $HOME/.vitrina/, or /etc/vitrina/.

  Environment variables can override config values with the VITRINA_ prefix.
  Example: VITRINA_SERVER_HTTP_ADDR=127.0.0.1:9090

Commands:
  login       Log in and store the session
  register    Create an account, then log in
  logout      Clear the session and invalidate it on the backend
  whoami      Check the stored session against the backend
  open        Show the guard decision for a page
  api         Send an authorized request to the backend
  serve       Run the front server
  reset       Remove the stored session files
  config      Show the effective configuration
  version     Print version information`,
	SilenceUsage: true,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./vitrina.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func initConfig() {
	config.InitViper(cfgFile)
}
