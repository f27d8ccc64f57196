// Package cmd provides the CLI commands for deckhand.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.3.1"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "deckhand",
	Short: "Declarative service deployment for your home server",
	Long: `deckhand - declarative service deployment

deckhand renders systemd unit templates against a flat deckhand.env
bindings file, installs the rendered units into the service manager's
discovery directory, and converges the running services to match.

DEPLOYMENT
  deploy                Render, install, enable, and report all services
    --dry-run, -n       Show what would change without touching anything
    --values, -f <file> Apply a YAML values overlay over deckhand.env
    --secrets <file>    Apply a SOPS-encrypted overlay (requires sops)
    --user              Target the per-user service manager

INSPECTION
  status                Show current service states and endpoints
  render [name...]      Print rendered units without installing
  validate              Check every template renders against the bindings
  orphans               List installed units with no backing template
  history [n]           Show recent deployment runs
  doctor                Pre-flight checks - binaries, config, directories

MAINTENANCE
  update                Update deckhand to the latest release`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate("deckhand version {{.Version}}\n")
}
