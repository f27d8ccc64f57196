package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/calebsnider/deckhand/internal/update"
	"github.com/calebsnider/deckhand/internal/ui"
)

var updateCheckOnly bool

// updateCmd represents the update command.
var updateCmd = &cobra.Command{
	Use:     "update",
	Aliases: []string{"upgrade", "selfupdate"},
	Short:   "Update deckhand to the latest release",
	Run:     runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateCheckOnly, "check", false, "Only check for a newer version")

	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	if updateCheckOnly {
		release, available, err := update.CheckForUpdate(ctx, version)
		if err != nil {
			ui.Fatal("Update check failed: %v", err)
		}
		if !available {
			ui.Success("deckhand %s is up to date (%s)", version, update.PlatformInfo())
			return
		}
		ui.Info("New version available: %s (released %s)", release.Version, release.PublishedAt)
		ui.Info("Run 'deckhand update' to install it")
		return
	}

	release, err := update.Update(ctx, version)
	if err != nil {
		ui.Fatal("Update failed: %v", err)
	}
	if release == nil {
		ui.Success("deckhand %s is already the latest version", version)
		return
	}

	ui.Success("Updated to %s", release.Version)
	if release.Changelog != "" {
		ui.Info("\n%s", release.Changelog)
	}
}
