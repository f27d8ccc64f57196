package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/calebsnider/deckhand/internal/history"
	"github.com/calebsnider/deckhand/internal/reconcile"
	"github.com/calebsnider/deckhand/internal/ui"
)

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:   "history [n]",
	Short: "Show recent deployment runs",
	Args:  cobra.MaximumNArgs(1),
	Run:   runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	cfg := loadConfig(false)

	limit := 10
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			ui.Fatal("Invalid count: %s", args[0])
		}
		limit = n
	}

	records, err := history.List(cfg.StateDir)
	if err != nil {
		ui.Fatal("%v", err)
	}
	if len(records) == 0 {
		ui.Info("No deployment history yet")
		return
	}
	if len(records) > limit {
		records = records[:limit]
	}

	ui.Header("=== Deployment history ===")
	for _, rec := range records {
		active, failed, skipped := 0, 0, 0
		for _, svc := range rec.Services {
			switch svc.State {
			case reconcile.StateActive:
				active++
			case reconcile.StateFailed:
				failed++
			default:
				skipped++
			}
		}

		label := ""
		if rec.DryRun {
			label = " (dry run)"
		}

		line := fmt.Sprintf("%s%s  %d active, %d failed, %d skipped  [%s]",
			rec.Started.Format("2006-01-02 15:04:05"), label, active, failed, skipped, rec.Duration)
		if failed > 0 {
			ui.Error("%s", line)
		} else {
			ui.Success("%s", line)
		}
	}
}
