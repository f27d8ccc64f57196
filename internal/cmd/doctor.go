package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/calebsnider/deckhand/internal/catalog"
	"github.com/calebsnider/deckhand/internal/preflight"
	"github.com/calebsnider/deckhand/internal/ui"
	"github.com/calebsnider/deckhand/internal/vars"
)

var doctorUser bool

// doctorCmd represents the doctor command.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Pre-flight checks - binaries, config, directories",
	Run:   runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorUser, "user", false, "Target the per-user service manager")

	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) {
	cfg := loadConfig(doctorUser)
	problems := 0

	ui.Header("=== deckhand doctor ===")

	// Binaries.
	warnings, errors := preflight.CheckAll()
	for _, w := range warnings {
		ui.Warning("%s", w)
	}
	for _, e := range errors {
		ui.Error("%s", e)
		problems++
	}
	if len(warnings) == 0 && len(errors) == 0 {
		ui.Success("All binaries present")
	}

	// Bindings file.
	if bindings, err := vars.Load(cfg.EnvFile); err != nil {
		ui.Error("Bindings: %v", err)
		problems++
	} else {
		ui.Success("Bindings: %d variable(s) in %s", len(bindings), cfg.EnvFile)
	}

	// Templates.
	if templates, err := catalog.Discover(cfg.TemplatesDir); err != nil {
		ui.Error("Templates: %v", err)
		problems++
	} else if len(templates) == 0 {
		ui.Warning("Templates: none found in %s", cfg.TemplatesDir)
	} else {
		ui.Success("Templates: %d service(s) in %s", len(templates), cfg.TemplatesDir)
	}

	// Install directory.
	if info, err := os.Stat(cfg.InstallDir); err != nil {
		ui.Warning("Install dir: %s does not exist yet (deploy will create it)", cfg.InstallDir)
	} else if !info.IsDir() {
		ui.Error("Install dir: %s is not a directory", cfg.InstallDir)
		problems++
	} else {
		ui.Success("Install dir: %s", cfg.InstallDir)
	}

	if problems > 0 {
		ui.Fatal("%d problem(s) found", problems)
	}
	ui.Success("Ready to deploy")
}
