// Package cmd provides the CLI commands for policyctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/policyforge/decisionengine/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "policyctl",
	Short: "policyctl - policy decision engine CLI",
	Long: `policyctl compiles and exercises policy decision documents locally,
without the (out-of-scope) HTTP surface.

Quick start:
  1. Write a policy document: auth_v1.yaml
  2. Validate it:  policyctl validate auth_v1.yaml
  3. Decide:       policyctl decide auth_v1.yaml --facts '{"amount":100}' --mode hard

Configuration:
  Config is loaded from policyforge.yaml in the current directory,
  $HOME/.policyforge/, or /etc/policyforge/. Environment variables can
  override config values with the POLICYFORGE_ prefix; POLICY_PATH
  (unprefixed) overrides the policy document path specifically.

Commands:
  validate    Compile a policy document and report errors
  decide      Check facts against a policy document and print the decision
  cache       Manage the precompiled policy artifact cache
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./policyforge.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
