package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/calebsnider/deckhand/internal/catalog"
	"github.com/calebsnider/deckhand/internal/fileutil"
	"github.com/calebsnider/deckhand/internal/template"
	"github.com/calebsnider/deckhand/internal/ui"
	"github.com/calebsnider/deckhand/internal/vars"
)

var (
	renderOutput string
	renderValues string
)

// renderCmd represents the render command.
var renderCmd = &cobra.Command{
	Use:   "render [name...]",
	Short: "Print rendered units without installing them",
	Long: `Render substitutes bindings into unit templates and prints the result.
Nothing is installed and the service manager is never touched.

Examples:
  # Render every template to stdout
  deckhand render

  # Render one service
  deckhand render jellyfin

  # Render all templates into a directory
  deckhand render -o /tmp/rendered`,
	Run: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Output directory (prints to stdout if not set)")
	renderCmd.Flags().StringVarP(&renderValues, "values", "f", "", "YAML values overlay applied over deckhand.env")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) {
	cfg := loadConfig(false)

	bindings, err := vars.Load(cfg.EnvFile)
	if err != nil {
		ui.Fatal("%v", err)
	}
	if renderValues != "" {
		overlay, err := vars.FromYAML(renderValues)
		if err != nil {
			ui.Fatal("%v", err)
		}
		bindings = bindings.Merge(overlay)
	}

	templates, err := catalog.Discover(cfg.TemplatesDir)
	if err != nil {
		ui.Fatal("%v", err)
	}

	selected := filterTemplates(templates, args)
	if len(selected) == 0 {
		ui.Warning("No matching templates")
		return
	}

	failures := 0
	for _, tmpl := range selected {
		text, err := template.Render(tmpl.Text, bindings)
		if err != nil {
			ui.Error("%s: %v", tmpl.Name, err)
			failures++
			continue
		}

		if renderOutput == "" {
			ui.Blue.Printf("--- %s ---\n", tmpl.FileName())
			cmd.Print(text)
			cmd.Println()
			continue
		}

		dest := filepath.Join(renderOutput, tmpl.FileName())
		if err := fileutil.WriteFileAtomic(dest, []byte(text), 0644); err != nil {
			ui.Error("%s: %v", tmpl.Name, err)
			failures++
			continue
		}
		ui.Success("%s → %s", tmpl.Name, dest)
	}

	if failures > 0 {
		ui.Fatal("%d template(s) failed to render", failures)
	}
}

// filterTemplates returns the templates matching the requested names, or all
// templates when no names are given.
func filterTemplates(templates []catalog.Template, names []string) []catalog.Template {
	if len(names) == 0 {
		return templates
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	var selected []catalog.Template
	for _, tmpl := range templates {
		if wanted[tmpl.Name] {
			selected = append(selected, tmpl)
		}
	}
	return selected
}
