package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/calebsnider/deckhand/internal/catalog"
	"github.com/calebsnider/deckhand/internal/template"
	"github.com/calebsnider/deckhand/internal/ui"
	"github.com/calebsnider/deckhand/internal/vars"
)

var validateValues string

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every template renders against the bindings",
	Long: `Validate renders each template in memory and reports unbound
variables per template. Nothing is written and the service manager is
never touched. Exit status is nonzero when any template fails.`,
	Run: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateValues, "values", "f", "", "YAML values overlay applied over deckhand.env")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	cfg := loadConfig(false)

	bindings, err := vars.Load(cfg.EnvFile)
	if err != nil {
		ui.Fatal("%v", err)
	}
	if validateValues != "" {
		overlay, err := vars.FromYAML(validateValues)
		if err != nil {
			ui.Fatal("%v", err)
		}
		bindings = bindings.Merge(overlay)
	}

	templates, err := catalog.Discover(cfg.TemplatesDir)
	if err != nil {
		ui.Fatal("%v", err)
	}
	if len(templates) == 0 {
		ui.Warning("No service templates found in %s", cfg.TemplatesDir)
		return
	}

	failures := 0
	for _, tmpl := range templates {
		_, err := template.Render(tmpl.Text, bindings)
		if err == nil {
			ui.Success("%s", tmpl.Name)
			continue
		}

		failures++
		var unbound *template.UnboundError
		if errors.As(err, &unbound) {
			ui.Error("%s: %v", tmpl.Name, unbound)
		} else {
			ui.Error("%s: %v", tmpl.Name, err)
		}
	}

	if failures > 0 {
		ui.Fatal("%d of %d template(s) failed validation", failures, len(templates))
	}
	ui.Success("All %d template(s) render cleanly", len(templates))
}
