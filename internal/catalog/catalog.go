// Package catalog discovers unit templates and installs rendered units.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/calebsnider/deckhand/internal/fileutil"
)

// Template is one discovered service template. The base filename minus its
// extension is the service name; the extension carries through to the
// installed unit (e.g. jellyfin.container installs as jellyfin.container).
type Template struct {
	// Name is the service name.
	Name string
	// Ext is the unit file extension, including the leading dot.
	Ext string
	// Path is the template source file.
	Path string
	// Text is the unrendered unit text.
	Text string
}

// FileName returns the installed unit filename for this template.
func (t Template) FileName() string {
	return t.Name + t.Ext
}

// RenderedUnit is a fully substituted unit paired with its install filename.
type RenderedUnit struct {
	Name     string
	FileName string
	Text     string
}

// Discover reads every template in dir, ordered lexicographically by service
// name so runs are deterministic and reproducible. Dotfiles and
// subdirectories are skipped.
func Discover(dir string) ([]Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template directory: %w", err)
	}

	var templates []Template
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", entry.Name(), err)
		}

		ext := filepath.Ext(entry.Name())
		templates = append(templates, Template{
			Name: strings.TrimSuffix(entry.Name(), ext),
			Ext:  ext,
			Path: path,
			Text: string(content),
		})
	}

	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})

	return templates, nil
}

// Materialize writes the rendered unit into destDir atomically and returns
// the installed path. The write goes to a temp file first and is renamed
// into place, so a concurrent reader of destDir never observes a partial
// unit and a failed write leaves any prior unit intact. Re-running with
// identical input produces byte-identical output at the same path.
func Materialize(unit RenderedUnit, destDir string) (string, error) {
	dest := filepath.Join(destDir, unit.FileName)
	if err := fileutil.WriteFileAtomic(dest, []byte(unit.Text), 0644); err != nil {
		return "", fmt.Errorf("install unit %s: %w", unit.FileName, err)
	}
	return dest, nil
}

// Change classifies what Materialize would do to the install directory.
type Change string

const (
	// ChangeNew means no unit is currently installed under this name.
	ChangeNew Change = "new"
	// ChangeUpdated means an installed unit exists with different content.
	ChangeUpdated Change = "updated"
	// ChangeUnchanged means the installed unit is already byte-identical.
	ChangeUnchanged Change = "unchanged"
)

// PendingChange compares a rendered unit against the installed copy.
func PendingChange(unit RenderedUnit, destDir string) (Change, error) {
	installed, err := os.ReadFile(filepath.Join(destDir, unit.FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return ChangeNew, nil
		}
		return "", fmt.Errorf("read installed unit %s: %w", unit.FileName, err)
	}
	if string(installed) == unit.Text {
		return ChangeUnchanged, nil
	}
	return ChangeUpdated, nil
}

// Orphans lists unit files present in destDir that no template accounts
// for. Orphans are reported, never removed: whether a previously deployed
// service should be disabled is an operator decision.
func Orphans(destDir string, templates []Template) ([]string, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read install directory: %w", err)
	}

	expected := make(map[string]bool, len(templates))
	for _, t := range templates {
		expected[t.FileName()] = true
	}

	var orphans []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !expected[entry.Name()] {
			orphans = append(orphans, entry.Name())
		}
	}

	sort.Strings(orphans)
	return orphans, nil
}
