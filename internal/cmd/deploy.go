package cmd

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/calebsnider/deckhand/internal/catalog"
	"github.com/calebsnider/deckhand/internal/history"
	"github.com/calebsnider/deckhand/internal/reconcile"
	"github.com/calebsnider/deckhand/internal/report"
	"github.com/calebsnider/deckhand/internal/ui"
)

var (
	deployDryRun  bool
	deployUser    bool
	deployValues  string
	deploySecrets string
	deploySettle  int
)

// deployCmd represents the deploy command.
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Render, install, and start all services",
	Long: `Deploy runs the full convergence pass:

1. Acquire lock (prevent concurrent runs)
2. Load bindings from deckhand.env plus optional overlays
3. Discover unit templates, in name order
4. Render each template and install it atomically
5. daemon-reload, then enable --now each installed unit
6. Wait a bounded settle delay, query each unit's state once
7. Print the summary and record the run in history

A template that fails to render or install is skipped and reported;
it never blocks deployment of the remaining services. Re-running
converges: unchanged units are rewritten byte-identically and already
running services stay untouched by the manager.`,
	Run: runDeploy,
}

func init() {
	deployCmd.Flags().BoolVarP(&deployDryRun, "dry-run", "n", false, "Show what would change without making changes")
	deployCmd.Flags().BoolVar(&deployUser, "user", false, "Target the per-user service manager")
	deployCmd.Flags().StringVarP(&deployValues, "values", "f", "", "YAML values overlay applied over deckhand.env")
	deployCmd.Flags().StringVar(&deploySecrets, "secrets", "", "SOPS-encrypted overlay applied last")
	deployCmd.Flags().IntVar(&deploySettle, "settle", 2, "Seconds to wait before the status check")

	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) {
	cfg := loadConfig(deployUser)

	rcfg := reconcile.DefaultConfig()
	rcfg.TemplatesDir = cfg.TemplatesDir
	rcfg.InstallDir = cfg.InstallDir
	rcfg.EnvFile = cfg.EnvFile
	rcfg.ValuesFile = deployValues
	rcfg.SecretsFile = deploySecrets
	rcfg.BackupDir = cfg.BackupDir()
	rcfg.UserMode = deployUser
	rcfg.DryRun = deployDryRun
	rcfg.SettleDelay = time.Duration(deploySettle) * time.Second

	if os.Getenv("DECKHAND_DRY_RUN") == "true" {
		rcfg.DryRun = true
	}

	ctx, cancel := signalContext()
	defer cancel()

	started := time.Now()
	ui.Header("=== Starting deployment ===")
	if rcfg.DryRun {
		ui.Warning("DRY RUN MODE - no changes will be made")
	}

	r := reconcile.NewReconciler(rcfg)
	outcome, err := r.Run(ctx)
	if err != nil && outcome == nil {
		ui.Fatal("Deployment failed: %v", err)
	}

	if rcfg.DryRun {
		printPlan(outcome)
	} else {
		report.Print(outcome)
	}

	if err := history.Append(cfg.StateDir, history.NewRecord(outcome, started, rcfg.DryRun)); err != nil {
		ui.Warning("Could not record run history: %v", err)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			ui.Fatal("Deployment cancelled")
		}
		ui.Fatal("Deployment incomplete: %v", err)
	}

	ui.Success("=== Deployment completed in %s ===", outcome.Duration.Round(time.Millisecond))
}

// printPlan prints the dry-run view: per-service pending change instead of
// terminal state.
func printPlan(outcome *reconcile.Outcome) {
	ui.Header("=== Deployment plan (dry run) ===")
	for _, res := range outcome.Results {
		if res.Err != nil {
			ui.Error("%s: would not deploy (%s: %v)", res.Name, res.Failure, res.Err)
			continue
		}
		switch res.Change {
		case catalog.ChangeNew:
			ui.Success("%s: would install (new unit)", res.Name)
		case catalog.ChangeUpdated:
			ui.Warning("%s: would update (unit content changed)", res.Name)
		default:
			ui.Info("%s: unchanged", res.Name)
		}
	}
	for _, orphan := range outcome.Orphans {
		ui.Warning("%s: orphaned (installed unit has no template)", orphan)
	}
}
