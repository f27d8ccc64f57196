package cmd

import (
	"github.com/spf13/cobra"

	"github.com/calebsnider/deckhand/internal/catalog"
	"github.com/calebsnider/deckhand/internal/report"
	"github.com/calebsnider/deckhand/internal/systemd"
	"github.com/calebsnider/deckhand/internal/ui"
	"github.com/calebsnider/deckhand/internal/vars"
)

var statusUser bool

// statusCmd represents the status command.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current service states and endpoints",
	Long: `Status queries the service manager for each cataloged service and
prints its state with the derived access endpoint. It never mutates
anything: no rendering to disk, no enable, no start.`,
	Run: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusUser, "user", false, "Target the per-user service manager")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig(statusUser)

	bindings, err := vars.Load(cfg.EnvFile)
	if err != nil {
		ui.Fatal("%v", err)
	}

	templates, err := catalog.Discover(cfg.TemplatesDir)
	if err != nil {
		ui.Fatal("%v", err)
	}
	if len(templates) == 0 {
		ui.Info("No service templates found in %s", cfg.TemplatesDir)
		return
	}

	ctx, cancel := signalContext()
	defer cancel()

	manager := systemd.NewClient(statusUser)

	ui.Header("=== Service status ===")
	for _, tmpl := range templates {
		if ctx.Err() != nil {
			ui.Fatal("Cancelled")
		}

		endpoint, ok := report.Endpoint(tmpl.Name, bindings)
		if !ok {
			endpoint = report.UnknownEndpoint
		}

		state, err := manager.IsActive(ctx, tmpl.Name)
		if err != nil {
			state = systemd.StateUnknown
		}

		switch state {
		case systemd.StateActive:
			ui.Success("%s: active (%s)", tmpl.Name, endpoint)
		case systemd.StateFailed:
			ui.Error("%s: failed (%s)", tmpl.Name, endpoint)
		default:
			ui.Warning("%s: %s (%s)", tmpl.Name, state, endpoint)
		}
	}

	orphans, err := catalog.Orphans(cfg.InstallDir, templates)
	if err != nil {
		ui.Warning("Could not check for orphaned units: %v", err)
	}
	for _, orphan := range orphans {
		ui.Warning("%s: orphaned (installed unit has no template)", orphan)
	}
}
