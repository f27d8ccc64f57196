package cmd

import (
	"github.com/spf13/cobra"

	"github.com/calebsnider/deckhand/internal/catalog"
	"github.com/calebsnider/deckhand/internal/ui"
)

var orphansUser bool

// orphansCmd represents the orphans command.
var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List installed units with no backing template",
	Long: `Orphans lists unit files in the install directory that no current
template accounts for - usually services whose template was removed.
deckhand never disables or removes them; that decision stays with you.`,
	Run: runOrphans,
}

func init() {
	orphansCmd.Flags().BoolVar(&orphansUser, "user", false, "Target the per-user service manager")

	rootCmd.AddCommand(orphansCmd)
}

func runOrphans(cmd *cobra.Command, args []string) {
	cfg := loadConfig(orphansUser)

	templates, err := catalog.Discover(cfg.TemplatesDir)
	if err != nil {
		ui.Fatal("%v", err)
	}

	orphans, err := catalog.Orphans(cfg.InstallDir, templates)
	if err != nil {
		ui.Fatal("%v", err)
	}

	if len(orphans) == 0 {
		ui.Success("No orphaned units in %s", cfg.InstallDir)
		return
	}

	ui.Header("Orphaned units in %s:", cfg.InstallDir)
	for _, orphan := range orphans {
		ui.Warning("%s", orphan)
	}
	ui.Info("\nTo retire one: systemctl disable --now <name> && rm %s/<unit>", cfg.InstallDir)
}
